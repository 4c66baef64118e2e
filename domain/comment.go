package domain

import "time"

// Comment is a discussion entry on a task. MentionedUserIDs are resolved by
// the caller before the comment reaches the engine; the engine treats them
// as opaque principal IDs.
type Comment struct {
	ID               string     `json:"id"`
	TaskID           string     `json:"task_id"`
	AuthorID         string     `json:"author_id"`
	Content          string     `json:"content"`
	MentionedUserIDs []string   `json:"mentioned_user_ids,omitempty"`
	DeletedAt        *time.Time `json:"deleted_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

func (c *Comment) IsDeleted() bool {
	return c != nil && c.DeletedAt != nil
}

func (c *Comment) Mentions(principalID string) bool {
	if c == nil {
		return false
	}
	for _, id := range c.MentionedUserIDs {
		if id == principalID {
			return true
		}
	}
	return false
}
