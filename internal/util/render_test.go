package util

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRender(t *testing.T) {
	w := httptest.NewRecorder()
	Render(w, "home_anon.html", map[string]any{"Title": "Warbler"})

	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "Sign up now to see warbles")
}

func TestRender_Flash(t *testing.T) {
	w := httptest.NewRecorder()
	Render(w, "home_anon.html", map[string]any{
		"Title": "Warbler",
		"Flash": "Access unauthorized.",
	})

	assert.Contains(t, w.Body.String(), "Access unauthorized.")
	assert.Contains(t, w.Body.String(), "flash-danger")
}

func TestFormatDateTime(t *testing.T) {
	ts := time.Date(2021, time.March, 14, 15, 9, 0, 0, time.Local).Unix()
	assert.Equal(t, "Mar 14, 2021 at 3:09PM", FormatDateTime(ts))
}
