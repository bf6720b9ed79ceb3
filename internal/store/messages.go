package store

import (
	"database/sql"
	"time"

	"warbler/internal/models"
)

func CreateMessage(db *sql.DB, userID int64, text string) (int64, error) {
	var id int64
	err := db.QueryRow(`
        INSERT INTO messages (user_id, text, created_at)
        VALUES ($1, $2, $3)
        RETURNING id
    `, userID, text, time.Now().Unix()).Scan(&id)
	return id, err
}

// GetMessage loads a message with its author name and like count.
// Returns sql.ErrNoRows for an unknown id.
func GetMessage(db *sql.DB, id int64) (models.Message, error) {
	var m models.Message
	err := db.QueryRow(`
        SELECT m.id, m.user_id, m.text, m.created_at, u.username,
               (SELECT COUNT(1) FROM likes l WHERE l.message_id = m.id)
          FROM messages m
          JOIN users u ON u.id = m.user_id
         WHERE m.id = $1
    `, id).Scan(&m.ID, &m.UserID, &m.Text, &m.CreatedAt, &m.Author, &m.Likes)
	return m, err
}

// DeleteMessage removes the message and its like edges in one transaction.
func DeleteMessage(db *sql.DB, id int64) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM likes WHERE message_id = $1`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM messages WHERE id = $1`, id); err != nil {
		return err
	}
	return tx.Commit()
}

// ToggleLike flips the like edge: absent -> created, present -> removed.
// Reports whether the message is liked after the call.
func ToggleLike(db *sql.DB, userID, messageID int64) (bool, error) {
	tx, err := db.Begin()
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var n int
	if err := tx.QueryRow(`
        SELECT COUNT(1) FROM likes WHERE user_id = $1 AND message_id = $2
    `, userID, messageID).Scan(&n); err != nil {
		return false, err
	}

	liked := n == 0
	if liked {
		_, err = tx.Exec(`INSERT INTO likes (user_id, message_id) VALUES ($1, $2)`, userID, messageID)
	} else {
		_, err = tx.Exec(`DELETE FROM likes WHERE user_id = $1 AND message_id = $2`, userID, messageID)
	}
	if err != nil {
		return false, err
	}
	return liked, tx.Commit()
}

func HasLiked(db *sql.DB, userID, messageID int64) (bool, error) {
	var n int
	err := db.QueryRow(`
        SELECT COUNT(1) FROM likes WHERE user_id = $1 AND message_id = $2
    `, userID, messageID).Scan(&n)
	return n > 0, err
}

func LikeCount(db *sql.DB, messageID int64) (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(1) FROM likes WHERE message_id = $1`, messageID).Scan(&n)
	return n, err
}

// UserMessages lists a user's messages, most recent first.
func UserMessages(db *sql.DB, userID int64, limit int) ([]models.Message, error) {
	return messageList(db, `
        SELECT m.id, m.user_id, m.text, m.created_at, u.username,
               (SELECT COUNT(1) FROM likes l WHERE l.message_id = m.id)
          FROM messages m
          JOIN users u ON u.id = m.user_id
         WHERE m.user_id = $1
         ORDER BY m.created_at DESC, m.id DESC
         LIMIT $2
    `, userID, int64(limit))
}

// LikedMessages lists the messages a user has liked.
func LikedMessages(db *sql.DB, userID int64) ([]models.Message, error) {
	return messageList(db, `
        SELECT m.id, m.user_id, m.text, m.created_at, u.username,
               (SELECT COUNT(1) FROM likes l WHERE l.message_id = m.id)
          FROM likes k
          JOIN messages m ON m.id = k.message_id
          JOIN users u ON u.id = m.user_id
         WHERE k.user_id = $1
         ORDER BY m.created_at DESC, m.id DESC
         LIMIT $2
    `, userID, 100)
}

// Timeline is the home feed: the user's own messages plus those of everyone
// they follow, most recent first, capped at 100.
func Timeline(db *sql.DB, userID int64) ([]models.Message, error) {
	return messageList(db, `
        SELECT m.id, m.user_id, m.text, m.created_at, u.username,
               (SELECT COUNT(1) FROM likes l WHERE l.message_id = m.id)
          FROM messages m
          JOIN users u ON u.id = m.user_id
         WHERE m.user_id = $1
            OR m.user_id IN (SELECT followed_id FROM follows WHERE follower_id = $2)
         ORDER BY m.created_at DESC, m.id DESC
         LIMIT 100
    `, userID, userID)
}

func messageList(db *sql.DB, query string, args ...any) ([]models.Message, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.UserID, &m.Text, &m.CreatedAt, &m.Author, &m.Likes); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
