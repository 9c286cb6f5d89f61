// Package model holds the records the API reads from and writes to
// PostgreSQL.
package model

import "time"

// PostStatus mirrors the posts.status column.
type PostStatus string

const (
	PostStatusActive  PostStatus = "ACTIVE"
	PostStatusDeleted PostStatus = "DELETED"
)

// Post is a row of posts. User is only populated by reads that join the
// author.
type Post struct {
	ID        int64      `json:"id"`
	Content   string     `json:"content"`
	UserID    int64      `json:"user_id"`
	Status    PostStatus `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at"`
	User      *User      `json:"user,omitempty"`
}

// PostPage is one page of live posts plus the total number of live posts.
type PostPage struct {
	Rows  []Post `json:"rows"`
	Count int64  `json:"count"`
}
