package slackbot

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *slack.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return slack.New("xoxb-test", slack.OptionAPIURL(srv.URL+"/"))
}

func TestDirectory_Profile(t *testing.T) {
	t.Run("returns the real name", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/users.profile.get", r.URL.Path)
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "U1", r.Form.Get("user"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"ok":true,"profile":{"real_name":"Ada Lovelace"}}`))
		})

		p, err := NewDirectory(client).Profile(context.Background(), "U1")
		require.NoError(t, err)
		assert.Equal(t, "Ada Lovelace", p.RealName)
	})

	t.Run("api error", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"ok":false,"error":"user_not_found"}`))
		})

		_, err := NewDirectory(client).Profile(context.Background(), "U1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "user_not_found")
	})
}

func TestTopicSink_SetTopic(t *testing.T) {
	t.Run("sends channel and topic", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/conversations.setTopic", r.URL.Path)
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "C1", r.Form.Get("channel"))
			assert.Equal(t, "All clear", r.Form.Get("topic"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"ok":true,"channel":{"id":"C1"}}`))
		})

		require.NoError(t, NewTopicSink(client).SetTopic(context.Background(), "C1", "All clear"))
	})

	t.Run("api error", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"ok":false,"error":"channel_not_found"}`))
		})

		err := NewTopicSink(client).SetTopic(context.Background(), "C1", "x")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "channel_not_found")
	})
}
