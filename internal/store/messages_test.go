package store

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndGetMessage(t *testing.T) {
	d := newTestDB(t)
	assert := assert.New(t)

	uid := signup(t, d, "allison")
	mid, err := CreateMessage(d, uid, "This message is only a test.")
	require.NoError(t, err)

	m, err := GetMessage(d, mid)
	require.NoError(t, err)
	assert.Equal("This message is only a test.", m.Text)
	assert.Equal(uid, m.UserID)
	assert.Equal("allison", m.Author)
	assert.Zero(m.Likes)

	msgs, err := UserMessages(d, uid, 100)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal("This message is only a test.", msgs[0].Text)

	st, err := UserStats(d, uid)
	require.NoError(t, err)
	assert.Equal(1, st.Messages)
}

func TestGetMessage_Unknown(t *testing.T) {
	d := newTestDB(t)

	_, err := GetMessage(d, 99999999)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestLikeToggle(t *testing.T) {
	d := newTestDB(t)
	assert := assert.New(t)

	u1 := signup(t, d, "allison")
	u2 := signup(t, d, "jackson")

	mid, err := CreateMessage(d, u1, "likable warble")
	require.NoError(t, err)

	liked, err := ToggleLike(d, u2, mid)
	require.NoError(t, err)
	assert.True(liked)

	n, err := LikeCount(d, mid)
	require.NoError(t, err)
	assert.Equal(1, n)

	has, err := HasLiked(d, u2, mid)
	require.NoError(t, err)
	assert.True(has)

	// Toggling again returns the edge set to its prior state.
	liked, err = ToggleLike(d, u2, mid)
	require.NoError(t, err)
	assert.False(liked)

	n, err = LikeCount(d, mid)
	require.NoError(t, err)
	assert.Zero(n)

	st, err := UserStats(d, u2)
	require.NoError(t, err)
	assert.Zero(st.Likes)
}

func TestLikedMessages(t *testing.T) {
	d := newTestDB(t)

	u1 := signup(t, d, "allison")
	u2 := signup(t, d, "jackson")

	mid, err := CreateMessage(d, u1, "likable warble")
	require.NoError(t, err)
	_, err = CreateMessage(d, u1, "plain warble")
	require.NoError(t, err)

	_, err = ToggleLike(d, u2, mid)
	require.NoError(t, err)

	liked, err := LikedMessages(d, u2)
	require.NoError(t, err)
	require.Len(t, liked, 1)
	assert.Equal(t, "likable warble", liked[0].Text)
}

func TestDeleteMessage_RemovesLikes(t *testing.T) {
	d := newTestDB(t)
	assert := assert.New(t)

	u1 := signup(t, d, "allison")
	u2 := signup(t, d, "jackson")

	mid, err := CreateMessage(d, u1, "short-lived warble")
	require.NoError(t, err)
	_, err = ToggleLike(d, u2, mid)
	require.NoError(t, err)

	require.NoError(t, DeleteMessage(d, mid))

	_, err = GetMessage(d, mid)
	assert.ErrorIs(err, sql.ErrNoRows)

	var n int
	require.NoError(t, d.QueryRow(`SELECT COUNT(1) FROM likes WHERE message_id = $1`, mid).Scan(&n))
	assert.Zero(n, "like edges must not outlive the message")
}

func TestTimeline(t *testing.T) {
	d := newTestDB(t)
	assert := assert.New(t)

	foo := signup(t, d, "foo")
	bar := signup(t, d, "bar")

	_, err := CreateMessage(d, foo, "the message by foo")
	require.NoError(t, err)
	_, err = CreateMessage(d, bar, "the message by bar")
	require.NoError(t, err)

	texts := func(t *testing.T, uid int64) []string {
		t.Helper()
		msgs, err := Timeline(d, uid)
		require.NoError(t, err)
		out := make([]string, 0, len(msgs))
		for _, m := range msgs {
			out = append(out, m.Text)
		}
		return out
	}

	// Before following, bar only sees their own message.
	assert.Equal([]string{"the message by bar"}, texts(t, bar))

	require.NoError(t, Follow(d, bar, foo))
	assert.ElementsMatch([]string{"the message by foo", "the message by bar"}, texts(t, bar))

	require.NoError(t, Unfollow(d, bar, foo))
	assert.Equal([]string{"the message by bar"}, texts(t, bar))
}
