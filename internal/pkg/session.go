package pkg

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	SessionCookieName = "user_session"
	sessionCookieTTL  = 24 * time.Hour
)

// GenerateNewSessionID - generates a new unique sessionID.
func GenerateNewSessionID() string {
	return uuid.NewString()
}

// EnsureSessionCookie returns the session id of the request. When the cookie is missing or is not a
// valid id, a new session is started and its cookie is set on the response.
func EnsureSessionCookie(writer http.ResponseWriter, req *http.Request) (string, bool) {
	sessionID, cookie := SessionFromRequest(req)
	if cookie == nil {
		return sessionID, false
	}

	http.SetCookie(writer, cookie)

	return sessionID, true
}

// SessionFromRequest resolves the session id of the request. The returned cookie is nil when the
// request already carries a valid session, otherwise it must be sent back to the client.
func SessionFromRequest(req *http.Request) (string, *http.Cookie) {
	if cookie, err := req.Cookie(SessionCookieName); err == nil {
		if _, err = uuid.Parse(cookie.Value); err == nil {
			return cookie.Value, nil
		}
	}

	cookie := NewSessionCookie(GenerateNewSessionID())

	return cookie.Value, cookie
}

func NewSessionCookie(sessionID string) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		Expires:  time.Now().Add(sessionCookieTTL),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}
