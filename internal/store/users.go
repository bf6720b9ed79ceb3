// Package store holds the SQL for users, messages, follows and likes.
// Queries use $n placeholders, which both wired drivers accept.
package store

import (
	"database/sql"
	"strings"

	"warbler/internal/models"
)

func GetUser(db *sql.DB, id int64) (models.User, error) {
	var u models.User
	err := db.QueryRow(`
        SELECT id, username, email, password_hash, image_url, bio, location, created_at
          FROM users
         WHERE id = $1
    `, id).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.ImageURL, &u.Bio, &u.Location, &u.CreatedAt)
	return u, err
}

func GetUserByUsername(db *sql.DB, username string) (models.User, error) {
	var u models.User
	err := db.QueryRow(`
        SELECT id, username, email, password_hash, image_url, bio, location, created_at
          FROM users
         WHERE username = $1
    `, username).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.ImageURL, &u.Bio, &u.Location, &u.CreatedAt)
	return u, err
}

// likeEscaper neutraliza los comodines de LIKE para búsquedas literales.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ListUsers returns all users, or those whose username contains q as a
// literal substring.
func ListUsers(db *sql.DB, q string) ([]models.User, error) {
	rows, err := db.Query(`
        SELECT id, username, email, image_url, bio, location
          FROM users
         WHERE username LIKE '%' || $1 || '%' ESCAPE '\'
         ORDER BY username
    `, likeEscaper.Replace(q))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.ImageURL, &u.Bio, &u.Location); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UserStats collects the four counters on a profile page. Each one is a plain
// cardinality query over the corresponding relation.
func UserStats(db *sql.DB, id int64) (models.UserStats, error) {
	var st models.UserStats
	if err := db.QueryRow(`SELECT COUNT(1) FROM messages WHERE user_id = $1`, id).Scan(&st.Messages); err != nil {
		return st, err
	}
	if err := db.QueryRow(`SELECT COUNT(1) FROM follows WHERE follower_id = $1`, id).Scan(&st.Following); err != nil {
		return st, err
	}
	if err := db.QueryRow(`SELECT COUNT(1) FROM follows WHERE followed_id = $1`, id).Scan(&st.Followers); err != nil {
		return st, err
	}
	if err := db.QueryRow(`SELECT COUNT(1) FROM likes WHERE user_id = $1`, id).Scan(&st.Likes); err != nil {
		return st, err
	}
	return st, nil
}

// Follow creates the directed edge follower -> followed if absent.
func Follow(db *sql.DB, followerID, followedID int64) error {
	_, err := db.Exec(`
        INSERT INTO follows (follower_id, followed_id)
        VALUES ($1, $2)
        ON CONFLICT DO NOTHING
    `, followerID, followedID)
	return err
}

// Unfollow removes the edge if present.
func Unfollow(db *sql.DB, followerID, followedID int64) error {
	_, err := db.Exec(`
        DELETE FROM follows WHERE follower_id = $1 AND followed_id = $2
    `, followerID, followedID)
	return err
}

func IsFollowing(db *sql.DB, followerID, followedID int64) (bool, error) {
	var n int
	err := db.QueryRow(`
        SELECT COUNT(1) FROM follows WHERE follower_id = $1 AND followed_id = $2
    `, followerID, followedID).Scan(&n)
	return n > 0, err
}

func IsFollowedBy(db *sql.DB, userID, followerID int64) (bool, error) {
	return IsFollowing(db, followerID, userID)
}

// Following lists the users that id follows.
func Following(db *sql.DB, id int64) ([]models.User, error) {
	return userEdgeList(db, `
        SELECT u.id, u.username, u.email, u.image_url, u.bio, u.location
          FROM follows f
          JOIN users u ON u.id = f.followed_id
         WHERE f.follower_id = $1
         ORDER BY u.username
    `, id)
}

// Followers lists the users that follow id.
func Followers(db *sql.DB, id int64) ([]models.User, error) {
	return userEdgeList(db, `
        SELECT u.id, u.username, u.email, u.image_url, u.bio, u.location
          FROM follows f
          JOIN users u ON u.id = f.follower_id
         WHERE f.followed_id = $1
         ORDER BY u.username
    `, id)
}

func userEdgeList(db *sql.DB, query string, id int64) ([]models.User, error) {
	rows, err := db.Query(query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.ImageURL, &u.Bio, &u.Location); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UpdateUser saves the editable profile fields.
func UpdateUser(db *sql.DB, u models.User) error {
	_, err := db.Exec(`
        UPDATE users
           SET username = $1, email = $2, image_url = $3, bio = $4, location = $5
         WHERE id = $6
    `, u.Username, u.Email, u.ImageURL, u.Bio, u.Location, u.ID)
	return err
}

// DeleteUser removes the account and everything hanging off it: sessions,
// follow edges in both directions, likes given and received, and messages.
func DeleteUser(db *sql.DB, id int64) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM sessions WHERE user_id = $1`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM follows WHERE follower_id = $1`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM follows WHERE followed_id = $1`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM likes WHERE user_id = $1`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`
        DELETE FROM likes WHERE message_id IN (SELECT id FROM messages WHERE user_id = $1)
    `, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM messages WHERE user_id = $1`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM users WHERE id = $1`, id); err != nil {
		return err
	}
	return tx.Commit()
}
