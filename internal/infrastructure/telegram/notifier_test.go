package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDigestPostsForm(t *testing.T) {
	t.Parallel()

	var (
		path   string
		fields map[string]string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		require.NoError(t, r.ParseForm())
		fields = map[string]string{
			"chat_id":    r.PostForm.Get("chat_id"),
			"text":       r.PostForm.Get("text"),
			"parse_mode": r.PostForm.Get("parse_mode"),
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	n := NewNotifier("123:abc", "-100200", WithBaseURL(server.URL+"/"), WithHTTPClient(server.Client()))
	require.NoError(t, n.PublishDigest(context.Background(), "*Tampines*: 1 new development(s)"))

	assert.Equal(t, "/bot123:abc/sendMessage", path)
	assert.Equal(t, "-100200", fields["chat_id"])
	assert.Equal(t, "*Tampines*: 1 new development(s)", fields["text"])
	assert.Equal(t, "Markdown", fields["parse_mode"])
}

func TestPublishDigestReportsAPIErrors(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	n := NewNotifier("t", "c", WithBaseURL(server.URL), WithHTTPClient(server.Client()))
	err := n.PublishDigest(context.Background(), "digest")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestPublishDigestRequiresCredentials(t *testing.T) {
	t.Parallel()

	n := NewNotifier("", "chat")
	assert.False(t, n.Enabled())
	assert.Error(t, n.PublishDigest(context.Background(), "digest"))
}

func TestClipBoundsMessage(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("é", maxMessageRunes+10)
	got := clip(long, maxMessageRunes)
	assert.Equal(t, maxMessageRunes, utf8.RuneCountInString(got))
	assert.Equal(t, "short", clip("short", maxMessageRunes))
}
