package models

type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	ImageURL     string
	Bio          string
	Location     string
	CreatedAt    int64
}

type Message struct {
	ID        int64
	UserID    int64
	Text      string
	CreatedAt int64
	Author    string
	Likes     int
}

// Follow is a directed edge: the follower sees the followed user's messages.
type Follow struct {
	FollowerID int64
	FollowedID int64
}

type Like struct {
	UserID    int64
	MessageID int64
}

type Session struct {
	ID        string
	UserID    int64
	ExpiresAt int64
	CreatedAt int64
}

// UserStats are the four counters shown on a profile page.
type UserStats struct {
	Messages  int
	Following int
	Followers int
	Likes     int
}
