package session_client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mcdev12/turfwar/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, status int, body string, check func(r *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}
		if r.URL.Path != RememberMeEndpoint {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", JSONMimeType)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestLookup_SignedIn(t *testing.T) {
	var cookie string
	srv := serve(t, http.StatusOK, `{"id": 12, "capCount": 3, "team": {"color": "#ff0000"}}`, func(r *http.Request) {
		cookie = r.Header.Get(CookieHeader)
	})

	profile, err := NewSessionClient(srv.URL, "abc").Lookup(context.Background())
	require.NoError(t, err)
	require.NotNil(t, profile)

	assert.Equal(t, models.ID("12"), profile.ID)
	assert.Equal(t, 3, profile.RemainingCaptures)
	assert.Equal(t, "#ff0000", profile.Team.Color)
	assert.Equal(t, SessionCookieName+"=abc", cookie)
}

func TestLookup_Anonymous(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
	}{
		{name: "empty body", status: http.StatusOK, body: ""},
		{name: "null", status: http.StatusOK, body: "null"},
		{name: "empty object", status: http.StatusOK, body: "{}"},
		{name: "unauthorized", status: http.StatusUnauthorized, body: "no session"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := serve(t, tc.status, tc.body, nil)
			profile, err := NewSessionClient(srv.URL, "").Lookup(context.Background())
			require.NoError(t, err)
			assert.Nil(t, profile)
		})
	}
}

func TestLookup_ServerError(t *testing.T) {
	srv := serve(t, http.StatusInternalServerError, "boom", nil)
	_, err := NewSessionClient(srv.URL, "").Lookup(context.Background())
	require.Error(t, err)
}

func TestLookup_NegativeAllowanceClamped(t *testing.T) {
	srv := serve(t, http.StatusOK, `{"id": "p1", "capCount": -2, "team": {"color": "blue"}}`, nil)
	profile, err := NewSessionClient(srv.URL, "").Lookup(context.Background())
	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.Equal(t, 0, profile.RemainingCaptures)
}
