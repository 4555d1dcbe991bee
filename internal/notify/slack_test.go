package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSlack answers the handful of Web API methods the transport uses.
type fakeSlack struct {
	mu       sync.Mutex
	calls    []string
	posted   map[string]string // channel -> text
	existing map[string]string // channel name -> id
}

func (f *fakeSlack) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	r.ParseForm()
	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]

	f.mu.Lock()
	f.calls = append(f.calls, method)
	f.mu.Unlock()

	var resp any
	switch method {
	case "conversations.create":
		name := r.FormValue("name")
		if _, ok := f.existing[name]; ok {
			resp = map[string]any{"ok": false, "error": "name_taken"}
			break
		}
		resp = map[string]any{"ok": true, "channel": map[string]any{"id": "CNEW0001", "name": name}}
	case "conversations.list":
		var channels []map[string]any
		for name, id := range f.existing {
			channels = append(channels, map[string]any{"id": id, "name": name})
		}
		resp = map[string]any{"ok": true, "channels": channels, "response_metadata": map[string]any{"next_cursor": ""}}
	case "chat.postMessage":
		f.mu.Lock()
		f.posted[r.FormValue("channel")] = r.FormValue("text")
		f.mu.Unlock()
		resp = map[string]any{"ok": true, "channel": r.FormValue("channel"), "ts": "1700000000.000100"}
	case "users.lookupByEmail":
		if r.FormValue("email") == "missing@example.com" {
			resp = map[string]any{"ok": false, "error": "users_not_found"}
			break
		}
		resp = map[string]any{"ok": true, "user": map[string]any{"id": "U42"}}
	case "conversations.invite":
		resp = map[string]any{"ok": false, "error": "already_in_channel"}
	case "conversations.kick", "conversations.archive":
		resp = map[string]any{"ok": true}
	default:
		resp = map[string]any{"ok": false, "error": "unknown_method"}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func newFakeSlack(t *testing.T) (*SlackTransport, *fakeSlack) {
	t.Helper()
	fake := &fakeSlack{
		posted:   map[string]string{},
		existing: map[string]string{"dias-alerts-chile": "CEXIST01"},
	}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return NewSlackTransport("xoxb-test", nil, slack.OptionAPIURL(srv.URL+"/api/")), fake
}

func TestSlackTransport_CreateTopic(t *testing.T) {
	s, _ := newFakeSlack(t)
	ctx := context.Background()

	id, err := s.CreateTopic(ctx, "dias-alerts-japan")
	require.NoError(t, err)
	assert.Equal(t, "CNEW0001", id)

	id, err = s.CreateTopic(ctx, "dias-alerts-chile")
	require.NoError(t, err)
	assert.Equal(t, "CEXIST01", id)
}

func TestSlackTransport_Publish(t *testing.T) {
	s, fake := newFakeSlack(t)

	id, err := s.Publish(context.Background(), "CNEW0001", Message{Subject: "Alert", Body: "details"})
	require.NoError(t, err)
	assert.Equal(t, "CNEW0001:1700000000.000100", id)
	assert.Equal(t, "*Alert*\n\ndetails", fake.posted["CNEW0001"])
}

func TestSlackTransport_SubscribeAndUnsubscribe(t *testing.T) {
	s, fake := newFakeSlack(t)
	ctx := context.Background()

	handle, err := s.Subscribe(ctx, "CNEW0001", "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, "CNEW0001:U42", handle)

	require.NoError(t, s.Unsubscribe(ctx, handle))
	assert.Contains(t, fake.calls, "conversations.kick")

	_, err = s.Subscribe(ctx, "CNEW0001", "missing@example.com")
	assert.ErrorContains(t, err, "users_not_found")

	assert.Error(t, s.Unsubscribe(ctx, "garbage"))
}

func TestSlackChannelName(t *testing.T) {
	assert.Equal(t, "dias-alerts-japan", slackChannelName("DIAS-Alerts-Japan"))
	long := "dias-alerts-" + strings.Repeat("a", 100)
	assert.Len(t, slackChannelName(long), maxSlackChannelName)
}
