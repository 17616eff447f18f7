package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/wolfman30/patient-portal/internal/identity"
)

type contextKey string

const sessionKey contextKey = "patientSession"

// SessionVerifier validates bearer tokens.
type SessionVerifier interface {
	Verify(token string) (identity.Session, error)
}

// PatientSession requires a valid session token and stores the patient and
// session ids in the request context. Browsers cannot set headers on a
// websocket handshake, so the access_token query parameter is accepted too.
func PatientSession(verifier SessionVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if verifier == nil {
				http.Error(w, "session auth disabled", http.StatusUnauthorized)
				return
			}
			tokenString := bearerToken(r)
			if tokenString == "" {
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}
			session, err := verifier.Verify(tokenString)
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), sessionKey, session)
			ctx = identity.WithPatientID(ctx, session.PatientID)
			ctx = identity.WithSessionID(ctx, session.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionFromContext returns the verified session if present.
func SessionFromContext(ctx context.Context) (identity.Session, bool) {
	session, ok := ctx.Value(sessionKey).(identity.Session)
	return session, ok
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return strings.TrimSpace(r.URL.Query().Get("access_token"))
}
