package session_client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/mcdev12/turfwar/go/clients"
	"github.com/mcdev12/turfwar/go/internal/models"
)

// SessionClient resolves the player behind the current device session.
type SessionClient struct {
	*clients.BaseClient
}

// NewSessionClient creates a client for the world server at baseURL. When
// sessionToken is set it is sent as the session cookie.
func NewSessionClient(baseURL, sessionToken string) *SessionClient {
	client := &SessionClient{
		BaseClient: clients.NewBaseClient(baseURL),
	}

	client.SetHeader(AcceptHeader, JSONMimeType)
	if sessionToken != "" {
		client.SetHeader(CookieHeader, SessionCookie(sessionToken))
	}

	return client
}

type profileResponse struct {
	ID       models.ID `json:"id"`
	CapCount int       `json:"capCount"`
	Team     *struct {
		Color string `json:"color"`
	} `json:"team"`
}

// Lookup returns the signed-in player's profile. A nil profile with a nil
// error means the session is anonymous.
func (c *SessionClient) Lookup(ctx context.Context) (*models.PlayerProfile, error) {
	body, err := c.Get(ctx, RememberMeEndpoint)
	if err != nil {
		var apiErr *clients.APIError
		if errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up session: %w", err)
	}

	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return nil, nil
	}

	var response profileResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w, raw response: %s", err, string(body))
	}
	if response.ID == "" {
		return nil, nil
	}

	profile := &models.PlayerProfile{
		ID:                response.ID,
		RemainingCaptures: max(response.CapCount, 0),
	}
	if response.Team != nil {
		profile.Team.Color = response.Team.Color
	}
	return profile, nil
}
