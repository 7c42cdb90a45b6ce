package ui

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opschat/shared"
)

type echoResponder struct {
	calls []int // history length per call
}

func (e *echoResponder) Handle(_ context.Context, query string, history []shared.ConversationTurn) string {
	e.calls = append(e.calls, len(history))
	return fmt.Sprintf("reply to: %s", query)
}

func TestChatRoundTrip(t *testing.T) {
	srv := httptest.NewServer(NewServer(&echoResponder{}).Router())
	defer srv.Close()

	res, err := http.Post(srv.URL+"/api/chat", "application/json",
		strings.NewReader(`{"message":"show me issues"}`))
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var body chatResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Equal(t, "reply to: show me issues", body.Reply)

	// The session cookie is set on the first request.
	var found bool
	for _, c := range res.Cookies() {
		if c.Name == sessionCookie && c.Value != "" {
			found = true
		}
	}
	assert.True(t, found, "session cookie not set")
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	srv := httptest.NewServer(NewServer(&echoResponder{}).Router())
	defer srv.Close()

	res, err := http.Post(srv.URL+"/api/chat", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestHistoryPerSession(t *testing.T) {
	responder := &echoResponder{}
	srv := httptest.NewServer(NewServer(responder).Router())
	defer srv.Close()

	jar := newCookieClient(t)
	for _, msg := range []string{"first", "second"} {
		res, err := jar.Post(srv.URL+"/api/chat", "application/json",
			strings.NewReader(fmt.Sprintf(`{"message":%q}`, msg)))
		require.NoError(t, err)
		res.Body.Close()
	}

	res, err := jar.Get(srv.URL + "/api/history")
	require.NoError(t, err)
	defer res.Body.Close()

	var turns []shared.ConversationTurn
	require.NoError(t, json.NewDecoder(res.Body).Decode(&turns))
	require.Len(t, turns, 2)
	assert.Equal(t, "first", turns[0].User)
	assert.Equal(t, "reply to: second", turns[1].Assistant)

	// The second call saw the first turn as history.
	assert.Equal(t, []int{0, 1}, responder.calls)
}

func TestHistoryIsolatedBetweenSessions(t *testing.T) {
	responder := &echoResponder{}
	srv := httptest.NewServer(NewServer(responder).Router())
	defer srv.Close()

	a := newCookieClient(t)
	res, err := a.Post(srv.URL+"/api/chat", "application/json",
		strings.NewReader(`{"message":"hi from a"}`))
	require.NoError(t, err)
	res.Body.Close()

	// A fresh client has its own empty history.
	b := newCookieClient(t)
	res, err = b.Get(srv.URL + "/api/history")
	require.NoError(t, err)
	defer res.Body.Close()

	var turns []shared.ConversationTurn
	require.NoError(t, json.NewDecoder(res.Body).Decode(&turns))
	assert.Empty(t, turns)
}

func TestIndexServed(t *testing.T) {
	srv := httptest.NewServer(NewServer(&echoResponder{}).Router())
	defer srv.Close()

	res, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, res.Header.Get("Content-Type"), "text/html")
}

func newCookieClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}
