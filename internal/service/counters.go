package service

import "barebones/internal/model"

// newer reports whether (aTime, aID) is more recent than (bTime, bID). Ids
// are snowflakes so they break ties in creation order.
func newer(aTime, aID, bTime, bID int64) bool {
	if aTime != bTime {
		return aTime > bTime
	}
	return aID > bID
}

// ComputeTopicCounters recounts a topic from its replies. It does no I/O.
func ComputeTopicCounters(topic *model.Topic, replies []model.ReplySnapshot) model.TopicCounters {
	c := model.TopicCounters{
		LastActiveID:   topic.ID,
		LastActiveTime: topic.CreatedAt,
	}
	voices := map[string]struct{}{topic.VoiceKey(): {}}

	var lastTime int64
	for _, r := range replies {
		if r.Status != model.StatusPublish {
			c.ReplyCountHidden++
			continue
		}
		c.ReplyCount++
		voices[r.VoiceKey()] = struct{}{}
		if c.LastReplyID == 0 || newer(r.CreatedAt, r.ID, lastTime, c.LastReplyID) {
			c.LastReplyID = r.ID
			lastTime = r.CreatedAt
		}
	}
	if c.LastReplyID != 0 {
		c.LastActiveID = c.LastReplyID
		c.LastActiveTime = lastTime
	}
	c.VoiceCount = len(voices)
	return c
}

// ComputeForumCounters recounts a forum from its own topics and the already
// updated counters of its direct subforums. It does no I/O.
//
// A category never owns topics: its own counts stay zero and descendants
// only reach it through the total_* fields.
func ComputeForumCounters(forum *model.Forum, topics []model.TopicSnapshot, children []model.ForumCounters) model.ForumCounters {
	c := model.ForumCounters{SubforumCount: len(children)}

	if !forum.IsCategory() {
		for _, t := range topics {
			if !t.Status.IsPublic() {
				c.TopicCountHidden++
				continue
			}
			c.TopicCount++
			c.ReplyCount += t.ReplyCount
			if t.ID > c.LastTopicID {
				c.LastTopicID = t.ID
			}
			if t.LastReplyID > c.LastReplyID {
				c.LastReplyID = t.LastReplyID
			}
			activeID, activeTime := t.LastActiveID, t.LastActiveTime
			if activeID == 0 {
				activeID, activeTime = t.ID, t.CreatedAt
			}
			if newer(activeTime, activeID, c.LastActiveTime, c.LastActiveID) {
				c.LastActiveID, c.LastActiveTime = activeID, activeTime
			}
		}
	}

	c.TotalTopicCount = c.TopicCount
	c.TotalReplyCount = c.ReplyCount
	for _, sub := range children {
		c.TotalTopicCount += sub.TotalTopicCount
		c.TotalReplyCount += sub.TotalReplyCount
		if sub.LastTopicID > c.LastTopicID {
			c.LastTopicID = sub.LastTopicID
		}
		if sub.LastReplyID > c.LastReplyID {
			c.LastReplyID = sub.LastReplyID
		}
		if sub.LastActiveID != 0 && newer(sub.LastActiveTime, sub.LastActiveID, c.LastActiveTime, c.LastActiveID) {
			c.LastActiveID, c.LastActiveTime = sub.LastActiveID, sub.LastActiveTime
		}
	}
	return c
}
