package service

import (
	"strings"
	"time"

	"barebones/internal/model"
	"barebones/internal/pkg/markup"
)

// authorFor builds the author of a new post. Anonymous details are only
// kept for guests.
func authorFor(user *model.User, ip string, anon model.AnonymousFields) model.Author {
	if user != nil {
		return model.Author{AuthorID: user.ID, AuthorIP: ip}
	}
	return model.Author{
		AnonymousName:    markup.PlainText(anon.Name),
		AnonymousEmail:   strings.ToLower(strings.TrimSpace(anon.Email)),
		AnonymousWebsite: markup.PlainText(anon.Website),
		AuthorIP:         ip,
	}
}

// VisibleStatuses lists the post statuses user may see in listings.
func (c *Capabilities) VisibleStatuses(user *model.User, postType model.PostType) []model.Status {
	out := []model.Status{model.StatusPublish}
	if postType == model.PostTopic {
		out = append(out, model.StatusClosed)
	}
	if c.Can(user, CapModerate) {
		out = append(out, model.StatusPending, model.StatusSpam)
	}
	if c.Can(user, CapViewTrash) {
		out = append(out, model.StatusTrash)
	}
	return out
}

// CanReadPost decides single-post visibility inside an already visible forum.
// Authors may still read their own pending posts.
func (c *Capabilities) CanReadPost(user *model.User, status model.Status, authorID int64) bool {
	switch status {
	case model.StatusPublish, model.StatusClosed:
		return true
	case model.StatusTrash:
		return c.Can(user, CapViewTrash)
	case model.StatusPending:
		if user != nil && authorID != 0 && authorID == user.ID {
			return true
		}
	}
	return c.Can(user, CapModerate)
}

// CanEditPost applies the edit rules: others' posts need the edit_others
// capability, own posts need the edit capability and must be inside the
// edit lock.
func (c *Capabilities) CanEditPost(user *model.User, postType model.PostType, author model.Author, createdAt int64, lockMinutes int, now time.Time) bool {
	if user == nil {
		return false
	}
	own, others := CapEditTopics, CapEditOthersTopics
	if postType == model.PostReply {
		own, others = CapEditReplies, CapEditOthersReplies
	}
	if c.Can(user, others) {
		return true
	}
	if author.AuthorID != user.ID || !c.Can(user, own) {
		return false
	}
	return !pastEditLock(createdAt, lockMinutes, now)
}

// pastEditLock reports whether the edit window has closed. A zero lock
// never closes.
func pastEditLock(createdAt int64, lockMinutes int, now time.Time) bool {
	if lockMinutes <= 0 {
		return false
	}
	return now.Unix()-createdAt > int64(lockMinutes)*60
}
