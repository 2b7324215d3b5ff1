package session_client

const (
	// API Endpoints
	RememberMeEndpoint = "/auth/rememberme"

	// Cookie issued by the world server's session middleware
	SessionCookieName = "connect.sid"

	// Headers
	CookieHeader = "Cookie"
	AcceptHeader = "Accept"
	JSONMimeType = "application/json"
)

// SessionCookie formats token as the value of a Cookie header.
func SessionCookie(token string) string {
	return SessionCookieName + "=" + token
}
