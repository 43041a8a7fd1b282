package server

import (
	"net/http"
	"time"

	"gwgp-assistant-backend/internal/store"
)

const (
	// CookieName is the name of the session cookie
	CookieName = "gwgp_session"
	// SessionHeader carries the session ID for clients without cookies
	SessionHeader = "X-Session-Id"
	// DefaultCookieMaxAge applies when no session TTL is configured
	DefaultCookieMaxAge = 30 * time.Minute
)

func sessionCookie(sessionID string, maxAge time.Duration) *http.Cookie {
	if maxAge <= 0 {
		maxAge = DefaultCookieMaxAge
	}
	return &http.Cookie{
		Name:     CookieName,
		Value:    sessionID,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// SetSessionCookie sets the HTTP-only session cookie.
func SetSessionCookie(w http.ResponseWriter, sessionID string, maxAge time.Duration) {
	http.SetCookie(w, sessionCookie(sessionID, maxAge))
}

// ClearSessionCookie removes the session cookie
func ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// GetSessionCookie reads the session ID from the cookie
func GetSessionCookie(r *http.Request) (string, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return "", err
	}
	return cookie.Value, nil
}

// getSessionID looks in the cookie, then the header, then the sessionId
// query parameter. IDs we could not have issued are ignored.
func getSessionID(r *http.Request) string {
	candidates := []string{r.Header.Get(SessionHeader), r.URL.Query().Get("sessionId")}
	if c, err := GetSessionCookie(r); err == nil {
		candidates = append([]string{c}, candidates...)
	}
	for _, sid := range candidates {
		if sid != "" && store.ValidID(sid) {
			return sid
		}
	}
	return ""
}

// getOrCreateSessionID returns the caller's session ID, minting one and
// setting the cookie when there is none. The ID is echoed in the
// X-Session-Id header either way.
func (s *Server) getOrCreateSessionID(w http.ResponseWriter, r *http.Request) string {
	sid := getSessionID(r)
	if sid == "" {
		sid = store.NewID()
		s.log.Debug().Str("session", sid).Str("path", r.URL.Path).Msg("creating new session")
		SetSessionCookie(w, sid, s.cfg.SessionTTL)
	}
	w.Header().Set(SessionHeader, sid)
	return sid
}
