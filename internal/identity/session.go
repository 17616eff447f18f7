package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidSession = errors.New("identity: invalid session token")

// Session describes an issued login session.
type Session struct {
	Token     string
	ID        string
	PatientID string
	ExpiresAt time.Time
}

// SessionSigner issues and verifies HS256 session tokens.
type SessionSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSessionSigner(secret string, ttl time.Duration) *SessionSigner {
	if secret == "" {
		panic("identity: session secret required")
	}
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	return &SessionSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (s *SessionSigner) WithClock(now func() time.Time) *SessionSigner {
	if now != nil {
		s.now = now
	}
	return s
}

// Issue signs a token whose subject is the patient's card number.
func (s *SessionSigner) Issue(patientID string) (Session, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   patientID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return Session{}, fmt.Errorf("identity: sign session: %w", err)
	}
	return Session{
		Token:     signed,
		ID:        claims.ID,
		PatientID: patientID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Verify parses token and returns the session it describes.
func (s *SessionSigner) Verify(token string) (Session, error) {
	claims := jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !parsed.Valid {
		return Session{}, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	if claims.Subject == "" || claims.ID == "" {
		return Session{}, fmt.Errorf("%w: missing subject or id", ErrInvalidSession)
	}
	var expires time.Time
	if claims.ExpiresAt != nil {
		expires = claims.ExpiresAt.Time
	}
	return Session{Token: token, ID: claims.ID, PatientID: claims.Subject, ExpiresAt: expires}, nil
}
