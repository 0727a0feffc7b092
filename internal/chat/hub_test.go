package chat

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(topic string) *Client {
	return &Client{ID: topic + "-conn", Topic: topic, Send: make(chan []byte, 4)}
}

func TestHub_RegisterUnregister(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	c := newClient("u1")

	hub.Register(c)
	assert.Equal(t, 1, hub.ClientCount())
	assert.Equal(t, 1, hub.TopicCount("u1"))

	hub.Unregister(c)
	hub.Unregister(c)
	assert.Equal(t, 0, hub.ClientCount())
	assert.Equal(t, 0, hub.TopicCount("u1"))

	_, open := <-c.Send
	assert.False(t, open)
}

func TestHub_PublishOnlyToTopic(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	alice := newClient("alice")
	bob := newClient("bob")
	hub.Register(alice)
	hub.Register(bob)

	require.NoError(t, hub.Publish("alice", EventMessage, map[string]string{"message": "hi"}))

	select {
	case raw := <-alice.Send:
		var ev Event
		require.NoError(t, json.Unmarshal(raw, &ev))
		assert.Equal(t, EventMessage, ev.Type)
		assert.JSONEq(t, `{"message":"hi"}`, string(ev.Data))
	case <-time.After(time.Second):
		t.Fatal("alice did not receive the event")
	}

	select {
	case <-bob.Send:
		t.Fatal("bob should not receive alice's event")
	default:
	}
}

func TestHub_PublishDropsWhenBufferFull(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	c := &Client{ID: "slow", Topic: "u1", Send: make(chan []byte, 1)}
	hub.Register(c)

	require.NoError(t, hub.Publish("u1", EventMessage, "one"))
	require.NoError(t, hub.Publish("u1", EventMessage, "two"))
	assert.Len(t, c.Send, 1)
}

func TestHub_ServeDeliversOverWebSocket(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.Serve(w, r, r.URL.Query().Get("user"))
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?user=u42"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.TopicCount("u42") == 1 }, time.Second, 10*time.Millisecond)
	require.NoError(t, hub.Publish("u42", EventMessage, map[string]string{"message": "hello"}))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var ev Event
	require.NoError(t, json.Unmarshal(raw, &ev))
	assert.Equal(t, "u42", ev.Topic)

	hub.Close()
	assert.Equal(t, 0, hub.ClientCount())
}

func TestHub_ServeChecksOrigin(t *testing.T) {
	hub := NewHub(zerolog.Nop(), "https://app.example")
	t.Cleanup(hub.Close)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.Serve(w, r, "u1")
	}))
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	tests := []struct {
		name   string
		origin string
		ok     bool
	}{
		{"allowed origin", "https://app.example", true},
		{"no origin header", "", true},
		{"foreign origin", "https://evil.example", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := http.Header{}
			if tt.origin != "" {
				header.Set("Origin", tt.origin)
			}
			conn, resp, err := websocket.DefaultDialer.Dial(url, header)
			if !tt.ok {
				require.Error(t, err)
				require.NotNil(t, resp)
				assert.Equal(t, http.StatusForbidden, resp.StatusCode)
				return
			}
			require.NoError(t, err)
			conn.Close()
		})
	}
}
