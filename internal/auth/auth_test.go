package auth

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warbler/internal/db"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "warbler-test.db")
	d, err := db.Open(dsn)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(d, dsn))
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestRegister_HappyFlow(t *testing.T) {
	d := newTestDB(t)
	assert := assert.New(t)

	uid, err := Register(d, "allison", "allison@allison.com", "allison1", "http://example.com/allison.png")
	require.NoError(t, err)
	assert.Greater(uid, int64(0))

	var hash, image string
	require.NoError(t, d.QueryRow(`SELECT password_hash, image_url FROM users WHERE id = $1`, uid).Scan(&hash, &image))
	assert.NotEqual("allison1", hash, "password must never be stored in plaintext")
	assert.NotEmpty(hash)
	assert.Equal("http://example.com/allison.png", image)
}

func TestRegister_DefaultImage(t *testing.T) {
	d := newTestDB(t)

	uid, err := Register(d, "jackson", "jackson@jackson.com", "jackson1", "")
	require.NoError(t, err)

	var image string
	require.NoError(t, d.QueryRow(`SELECT image_url FROM users WHERE id = $1`, uid).Scan(&image))
	assert.Equal(t, DefaultImageURL, image)
}

func TestRegister_Validation(t *testing.T) {
	d := newTestDB(t)

	cases := []struct {
		name     string
		username string
		email    string
		password string
		wantErr  error
	}{
		{"missing username", "", "a@b.com", "secret1", ErrMissingFields},
		{"missing email", "meh", "", "secret1", ErrMissingFields},
		{"missing password", "meh", "a@b.com", "", ErrMissingFields},
		{"short password", "meh", "a@b.com", "abc", ErrShortPassword},
		{"broken email", "meh", "broken", "secret1", ErrInvalidEmail},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Register(d, tc.username, tc.email, tc.password, "")
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}

	var n int
	require.NoError(t, d.QueryRow(`SELECT COUNT(1) FROM users`).Scan(&n))
	assert.Zero(t, n, "no invalid signup may persist a user row")
}

func TestRegister_Duplicates(t *testing.T) {
	d := newTestDB(t)
	assert := assert.New(t)

	_, err := Register(d, "allison", "allison@allison.com", "allison1", "")
	require.NoError(t, err)

	_, err = Register(d, "allison", "other@other.com", "whatever1", "")
	assert.ErrorIs(err, ErrUsernameTaken)

	_, err = Register(d, "someoneelse", "allison@allison.com", "whatever1", "")
	assert.ErrorIs(err, ErrEmailTaken)
}

func TestLogin_SessionRoundTrip(t *testing.T) {
	d := newTestDB(t)
	assert := assert.New(t)

	uid, err := Register(d, "allison", "allison@allison.com", "allison1", "")
	require.NoError(t, err)

	sid, got, err := Login(d, "allison", "allison1", time.Hour)
	require.NoError(t, err)
	assert.Equal(uid, got)
	assert.NotEmpty(sid)

	sessUID, exp, err := UserFromSession(d, sid)
	require.NoError(t, err)
	assert.Equal(uid, sessUID)
	assert.True(exp.After(time.Now()))
}

func TestLogin_BadCredentials(t *testing.T) {
	d := newTestDB(t)
	assert := assert.New(t)

	_, err := Register(d, "allison", "allison@allison.com", "allison1", "")
	require.NoError(t, err)

	_, _, err = Login(d, "allison", "wrongpassword", time.Hour)
	assert.ErrorIs(err, ErrInvalidLogin)

	_, _, err = Login(d, "nobody", "allison1", time.Hour)
	assert.ErrorIs(err, ErrInvalidLogin)
}

func TestLogout(t *testing.T) {
	d := newTestDB(t)

	_, err := Register(d, "allison", "allison@allison.com", "allison1", "")
	require.NoError(t, err)
	sid, _, err := Login(d, "allison", "allison1", time.Hour)
	require.NoError(t, err)

	require.NoError(t, Logout(d, sid))

	_, _, err = UserFromSession(d, sid)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestUserFromSession_DeletedUser(t *testing.T) {
	d := newTestDB(t)

	uid, err := Register(d, "allison", "allison@allison.com", "allison1", "")
	require.NoError(t, err)
	sid, _, err := Login(d, "allison", "allison1", time.Hour)
	require.NoError(t, err)

	// The user disappears while the session cookie is still out there.
	_, err = d.Exec(`DELETE FROM users WHERE id = $1`, uid)
	require.NoError(t, err)

	_, _, err = UserFromSession(d, sid)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestCheckPassword(t *testing.T) {
	d := newTestDB(t)
	assert := assert.New(t)

	uid, err := Register(d, "allison", "allison@allison.com", "allison1", "")
	require.NoError(t, err)

	assert.NoError(CheckPassword(d, uid, "allison1"))
	assert.ErrorIs(CheckPassword(d, uid, "nope"), ErrInvalidLogin)
	assert.ErrorIs(CheckPassword(d, uid+999, "allison1"), ErrInvalidLogin)
}
