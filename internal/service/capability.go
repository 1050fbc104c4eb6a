package service

import (
	"context"
	"fmt"

	"barebones/internal/model"
)

// Role forum role, independent of the account's site role
type Role string

const (
	RoleNone        Role = "" // guests
	RoleKeymaster   Role = "keymaster"
	RoleModerator   Role = "moderator"
	RoleParticipant Role = "participant"
	RoleSpectator   Role = "spectator"
	RoleBlocked     Role = "blocked"
)

// Rank orders roles; higher holds more privilege
func (r Role) Rank() int {
	switch r {
	case RoleKeymaster:
		return 4
	case RoleModerator:
		return 3
	case RoleParticipant:
		return 2
	case RoleSpectator:
		return 1
	}
	return 0
}

// Valid reports an assignable role
func (r Role) Valid() bool {
	switch r {
	case RoleKeymaster, RoleModerator, RoleParticipant, RoleSpectator, RoleBlocked:
		return true
	}
	return false
}

// Capability 能力
type Capability string

const (
	CapSpectate          Capability = "spectate"
	CapParticipate       Capability = "participate"
	CapModerate          Capability = "moderate"
	CapThrottle          Capability = "throttle"
	CapViewTrash         Capability = "view_trash"
	CapReadPrivateForums Capability = "read_private_forums"
	CapReadHiddenForums  Capability = "read_hidden_forums"
	CapPublishTopics     Capability = "publish_topics"
	CapEditTopics        Capability = "edit_topics"
	CapEditOthersTopics  Capability = "edit_others_topics"
	CapPublishReplies    Capability = "publish_replies"
	CapEditReplies       Capability = "edit_replies"
	CapEditOthersReplies Capability = "edit_others_replies"
	CapAssignTopicTags   Capability = "assign_topic_tags"
	CapKeepGate          Capability = "keep_gate"
)

func capSet(caps ...Capability) map[Capability]bool {
	m := make(map[Capability]bool, len(caps))
	for _, c := range caps {
		m[c] = true
	}
	return m
}

var roleCaps = map[Role]map[Capability]bool{
	RoleKeymaster: capSet(CapSpectate, CapParticipate, CapModerate, CapThrottle, CapViewTrash,
		CapReadPrivateForums, CapReadHiddenForums, CapPublishTopics, CapEditTopics, CapEditOthersTopics,
		CapPublishReplies, CapEditReplies, CapEditOthersReplies, CapAssignTopicTags, CapKeepGate),
	RoleModerator: capSet(CapSpectate, CapParticipate, CapModerate, CapThrottle, CapViewTrash,
		CapReadPrivateForums, CapReadHiddenForums, CapPublishTopics, CapEditTopics, CapEditOthersTopics,
		CapPublishReplies, CapEditReplies, CapEditOthersReplies, CapAssignTopicTags),
	RoleParticipant: capSet(CapSpectate, CapParticipate, CapReadPrivateForums, CapPublishTopics,
		CapEditTopics, CapPublishReplies, CapEditReplies, CapAssignTopicTags),
	RoleSpectator: capSet(CapSpectate),
	RoleBlocked:   capSet(),
}

// siteRoleMap maps account roles onto forum roles when none is assigned.
// Subscribers take the configured default.
var siteRoleMap = map[model.SiteRole]Role{
	model.SiteAdministrator: RoleKeymaster,
	model.SiteEditor:        RoleModerator,
	model.SiteAuthor:        RoleParticipant,
	model.SiteContributor:   RoleParticipant,
}

// ForumGetter looks forums up for ancestor checks
type ForumGetter interface {
	GetByID(ctx context.Context, id int64) (*model.Forum, error)
}

// Capabilities resolves roles and answers access questions.
type Capabilities struct {
	defaultRole Role
}

// NewCapabilities 创建能力层
func NewCapabilities(defaultRole string) *Capabilities {
	r := Role(defaultRole)
	if !r.Valid() || r == RoleKeymaster {
		r = RoleParticipant
	}
	return &Capabilities{defaultRole: r}
}

// ResolveRole returns the user's effective forum role. Site administrators
// are always keymasters; an explicit assignment comes next; otherwise the
// site role is mapped. Guests have no role.
func (c *Capabilities) ResolveRole(user *model.User) Role {
	if user == nil {
		return RoleNone
	}
	if user.SiteRole == model.SiteAdministrator {
		return RoleKeymaster
	}
	if r := Role(user.ForumRole); r.Valid() {
		return r
	}
	if user.SiteRole == model.SiteSubscriber {
		return c.defaultRole
	}
	if r, ok := siteRoleMap[user.SiteRole]; ok {
		return r
	}
	return RoleSpectator
}

// Can reports whether user holds capability. Spam and deleted accounts keep
// spectate and nothing else.
func (c *Capabilities) Can(user *model.User, capability Capability) bool {
	role := c.ResolveRole(user)
	if !roleCaps[role][capability] {
		return false
	}
	if user != nil && user.IsInactive() {
		return capability == CapSpectate
	}
	return true
}

// IsKeymaster 是否为 keymaster
func (c *Capabilities) IsKeymaster(user *model.User) bool {
	return c.Can(user, CapKeepGate)
}

// Ancestors returns the parents of forum, nearest first.
func Ancestors(ctx context.Context, forums ForumGetter, forum *model.Forum) ([]*model.Forum, error) {
	var chain []*model.Forum
	seen := map[int64]bool{forum.ID: true}
	for pid := forum.ParentID; pid != 0; {
		if seen[pid] {
			return nil, fmt.Errorf("forum %d: parent cycle", pid)
		}
		seen[pid] = true
		parent, err := forums.GetByID(ctx, pid)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			break
		}
		chain = append(chain, parent)
		pid = parent.ParentID
	}
	return chain, nil
}

// EffectiveVisibility is the most restrictive visibility on the chain
func EffectiveVisibility(forum *model.Forum, ancestors []*model.Forum) model.Visibility {
	v := forum.Visibility
	for _, a := range ancestors {
		v = v.MoreRestrictive(a.Visibility)
	}
	return v
}

// CanSee applies the visibility rules to an already resolved visibility.
func (c *Capabilities) CanSee(user *model.User, v model.Visibility) bool {
	if c.IsKeymaster(user) {
		return true
	}
	switch v {
	case model.VisibilityPublic:
		return true
	case model.VisibilityPrivate:
		return c.Can(user, CapReadPrivateForums)
	case model.VisibilityHidden:
		return c.Can(user, CapReadHiddenForums)
	}
	return false
}

// CanViewForum reports whether user may read forum. With checkAncestors the
// most restrictive visibility on the parent chain applies.
func (c *Capabilities) CanViewForum(ctx context.Context, forums ForumGetter, user *model.User, forum *model.Forum, checkAncestors bool) (bool, error) {
	if forum == nil {
		return false, nil
	}
	v := forum.Visibility
	if checkAncestors {
		chain, err := Ancestors(ctx, forums, forum)
		if err != nil {
			return false, err
		}
		v = EffectiveVisibility(forum, chain)
	}
	return c.CanSee(user, v), nil
}

// IsForumClosed reports a closed forum, or with checkAncestors any closed parent.
func IsForumClosed(ctx context.Context, forums ForumGetter, forum *model.Forum, checkAncestors bool) (bool, error) {
	if forum.Status == model.ForumClosed {
		return true, nil
	}
	if !checkAncestors {
		return false, nil
	}
	chain, err := Ancestors(ctx, forums, forum)
	if err != nil {
		return false, err
	}
	for _, a := range chain {
		if a.Status == model.ForumClosed {
			return true, nil
		}
	}
	return false, nil
}
