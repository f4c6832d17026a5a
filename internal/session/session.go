// Package session resolves who is shopping: an anonymous visitor tracked by
// cookie, optionally signed in as a customer by the upstream auth proxy.
package session

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/TatisVivas/zakekeSample/internal/domain"
)

const (
	// VisitorCookie names the anonymous visitor cookie.
	VisitorCookie = "merchlab_visitor"

	// CustomerHeader carries the signed-in customer id set by the auth proxy.
	CustomerHeader = "X-Customer-ID"

	visitorMaxAge = 365 * 24 * 60 * 60
)

// Identity is the caller of a storefront request.
type Identity struct {
	VisitorID  string
	CustomerID string
}

// Owner is the cart owner: the customer when signed in, else the visitor.
func (i Identity) Owner() string {
	if i.CustomerID != "" {
		return i.CustomerID
	}
	return i.VisitorID
}

// Manager issues visitor cookies and resolves identities.
type Manager struct {
	secure bool
	newID  func() string
}

func NewManager(secureCookies bool) *Manager {
	return &Manager{secure: secureCookies, newID: uuid.NewString}
}

// EnsureVisitor returns the visitor id from the cookie, issuing a new
// cookie when it is absent or malformed.
func (m *Manager) EnsureVisitor(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(VisitorCookie); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			return c.Value
		}
	}

	id := m.newID()
	http.SetCookie(w, &http.Cookie{
		Name:     VisitorCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   visitorMaxAge,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

// Identify resolves the caller and ensures a visitor cookie exists.
func (m *Manager) Identify(w http.ResponseWriter, r *http.Request) Identity {
	return Identity{
		VisitorID:  m.EnsureVisitor(w, r),
		CustomerID: strings.TrimSpace(r.Header.Get(CustomerHeader)),
	}
}

// RequireBasicAuth guards the vendor-facing catalog API with the vendor
// credentials. Missing credentials reject every request.
func RequireBasicAuth(creds domain.Credentials, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !CheckBasicAuth(creds, r) {
			w.Header().Set("WWW-Authenticate", `Basic realm="merchlab catalog"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CheckBasicAuth compares the request's Basic credentials in constant time.
func CheckBasicAuth(creds domain.Credentials, r *http.Request) bool {
	if !creds.Complete() {
		return false
	}
	user, pass, ok := r.BasicAuth()
	if !ok {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(creds.ClientID)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(creds.ClientSecret)) == 1
	return userOK && passOK
}
