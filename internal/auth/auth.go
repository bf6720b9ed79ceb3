// internal/auth/auth.go
package auth

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

// DefaultImageURL is used when signup does not provide a profile image.
const DefaultImageURL = "/static/images/default-pic.png"

var (
	ErrMissingFields = errors.New("username, email and password are required")
	ErrInvalidEmail  = errors.New("invalid email address")
	ErrShortPassword = errors.New("password must be at least 6 characters")
	ErrEmailTaken    = errors.New("email already taken")
	ErrUsernameTaken = errors.New("username already taken")
	ErrInvalidLogin  = errors.New("invalid username or password")
	ErrNoSession     = errors.New("session not found")
)

var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// ----------------------------
// Context helpers (para middleware y handlers)
// ----------------------------

type ctxKeyUserID struct{}

func WithUserID(ctx context.Context, uid int64) context.Context {
	return context.WithValue(ctx, ctxKeyUserID{}, uid)
}

func UserIDFrom(ctx context.Context) (int64, bool) {
	v := ctx.Value(ctxKeyUserID{})
	if v == nil {
		return 0, false
	}
	id, _ := v.(int64)
	return id, id != 0
}

// ----------------------------
// Register (signup)
// ----------------------------

// Register validates and creates a user, returning the new user's id.
// The password is stored only as a bcrypt hash.
func Register(db *sql.DB, username, email, password, imageURL string) (int64, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	username = strings.TrimSpace(username)

	if email == "" || username == "" || password == "" {
		return 0, ErrMissingFields
	}
	if !emailRe.MatchString(email) {
		return 0, ErrInvalidEmail
	}
	if len(password) < 6 {
		return 0, ErrShortPassword
	}
	if imageURL == "" {
		imageURL = DefaultImageURL
	}

	// Comprobar duplicados (rápido y con error claro)
	var exists int
	if err := db.QueryRow(`SELECT COUNT(1) FROM users WHERE email = $1`, email).Scan(&exists); err != nil {
		return 0, err
	}
	if exists > 0 {
		return 0, ErrEmailTaken
	}
	if err := db.QueryRow(`SELECT COUNT(1) FROM users WHERE username = $1`, username).Scan(&exists); err != nil {
		return 0, err
	}
	if exists > 0 {
		return 0, ErrUsernameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost) // cost ~10
	if err != nil {
		return 0, err
	}

	var uid int64
	err = db.QueryRow(
		`INSERT INTO users (username, email, password_hash, image_url, created_at)
         VALUES ($1, $2, $3, $4, $5)
         RETURNING id`,
		username, email, string(hash), imageURL, time.Now().Unix(),
	).Scan(&uid)
	// Por si hay condición de carrera con UNIQUE:
	if isUniqueErr(err, "email") {
		return 0, ErrEmailTaken
	}
	if isUniqueErr(err, "username") {
		return 0, ErrUsernameTaken
	}
	if err != nil {
		return 0, err
	}
	return uid, nil
}

// ----------------------------
// Login (crea sesión con UUID y expiración)
// ----------------------------

func Login(db *sql.DB, username, password string, lifetime time.Duration) (string, int64, error) {
	username = strings.TrimSpace(username)

	var uid int64
	var passwdHash string

	err := db.QueryRow(`SELECT id, password_hash FROM users WHERE username = $1`, username).Scan(&uid, &passwdHash)
	if err == sql.ErrNoRows {
		log.Warn().Str("username", username).Msg("auth.Login: no such user")
		return "", 0, ErrInvalidLogin
	}
	if err != nil {
		log.Error().Err(err).Msg("auth.Login: query user")
		return "", 0, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(passwdHash), []byte(password)); err != nil {
		log.Warn().Str("username", username).Msg("auth.Login: bad password") // no revela el hash
		return "", 0, ErrInvalidLogin
	}

	tx, err := db.Begin()
	if err != nil {
		return "", 0, err
	}
	defer tx.Rollback()

	// Limpia sesiones antiguas del usuario
	if _, err := tx.Exec(`DELETE FROM sessions WHERE user_id = $1`, uid); err != nil {
		return "", 0, err
	}

	sid := uuid.New().String()
	now := time.Now()

	if _, err := tx.Exec(`
        INSERT INTO sessions (id, user_id, expires_at, created_at)
        VALUES ($1, $2, $3, $4)
    `, sid, uid, now.Add(lifetime).Unix(), now.Unix()); err != nil {
		return "", 0, err
	}

	if err := tx.Commit(); err != nil {
		return "", 0, err
	}

	log.Info().Str("username", username).Int64("uid", uid).Msg("auth.Login: OK")
	return sid, uid, nil
}

// ----------------------------
// Logout (borra la sesión por ID)
// ----------------------------

func Logout(db *sql.DB, sid string) error {
	_, err := db.Exec(`DELETE FROM sessions WHERE id = $1`, sid)
	return err
}

// ----------------------------
// UserFromSession: valida cookie y devuelve (uid, expires)
// ----------------------------

// UserFromSession resolves a session id to its user. The join guarantees that
// a session whose user no longer exists reads the same as no session at all.
func UserFromSession(db *sql.DB, sid string) (int64, time.Time, error) {
	var uid int64
	var exp int64

	err := db.QueryRow(`
        SELECT s.user_id, s.expires_at
          FROM sessions s
          JOIN users u ON u.id = s.user_id
         WHERE s.id = $1
    `, sid).Scan(&uid, &exp)

	if err == sql.ErrNoRows {
		return 0, time.Time{}, ErrNoSession
	}
	if err != nil {
		return 0, time.Time{}, err
	}
	return uid, time.Unix(exp, 0), nil
}

// CheckPassword verifies a plaintext password against the stored hash of the
// given user. Used by the profile editor to confirm changes.
func CheckPassword(db *sql.DB, uid int64, password string) error {
	var passwdHash string
	err := db.QueryRow(`SELECT password_hash FROM users WHERE id = $1`, uid).Scan(&passwdHash)
	if err == sql.ErrNoRows {
		return ErrInvalidLogin
	}
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(passwdHash), []byte(password)) != nil {
		return ErrInvalidLogin
	}
	return nil
}

// ----------------------------
// Helpers
// ----------------------------

func isUniqueErr(err error, col string) bool {
	// SQLite: "UNIQUE constraint failed: users.email"
	// Postgres: `duplicate key value violates unique constraint "users_email_key"`
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	if !strings.Contains(msg, "unique constraint") && !strings.Contains(msg, "duplicate key") {
		return false
	}
	return strings.Contains(msg, strings.ToLower(col))
}
