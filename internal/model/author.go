package model

import (
	"strconv"
	"strings"
)

// Author who wrote a post: a registered user, or an anonymous poster whose
// details are captured at post time only.
type Author struct {
	AuthorID         int64  `db:"author_id" json:"author_id"`
	AnonymousName    string `db:"anonymous_name" json:"anonymous_name,omitempty"`
	AnonymousEmail   string `db:"anonymous_email" json:"-"`
	AnonymousWebsite string `db:"anonymous_website" json:"anonymous_website,omitempty"`
	AuthorIP         string `db:"author_ip" json:"-"`
}

// IsAnonymous 是否匿名
func (a Author) IsAnonymous() bool {
	return a.AuthorID == 0
}

// VoiceKey identifies a distinct participant for voice counts.
func (a Author) VoiceKey() string {
	if a.AuthorID > 0 {
		return "u:" + strconv.FormatInt(a.AuthorID, 10)
	}
	if a.AnonymousEmail != "" {
		return "e:" + strings.ToLower(a.AnonymousEmail)
	}
	return "n:" + strings.ToLower(a.AnonymousName)
}

// ActorKey identifies who is posting for throttling: user id, else IP.
func (a Author) ActorKey() string {
	if a.AuthorID > 0 {
		return "u:" + strconv.FormatInt(a.AuthorID, 10)
	}
	return "ip:" + a.AuthorIP
}
