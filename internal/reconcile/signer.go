package reconcile

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const callbackIssuer = "gitsong"

// CallbackClaims are carried by the token in a callback URL.
type CallbackClaims struct {
	jwt.RegisteredClaims
}

// CallbackSigner issues and validates the token appended to webhook URLs,
// binding each callback to the song that requested it.
type CallbackSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewCallbackSigner creates a signer. Tokens expire after ttl.
func NewCallbackSigner(secret string, ttl time.Duration) (*CallbackSigner, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("callback secret must be at least 32 characters")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("callback token lifetime must be positive")
	}
	return &CallbackSigner{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Sign returns an HS256 token whose subject is songID.
func (s *CallbackSigner) Sign(songID uuid.UUID) (string, error) {
	now := s.now()
	claims := CallbackClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    callbackIssuer,
			Subject:   songID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			ID:        uuid.NewString(),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign callback token: %w", err)
	}
	return token, nil
}

// Validate checks the token and returns the song it was issued for.
func (s *CallbackSigner) Validate(tokenString string) (uuid.UUID, error) {
	if tokenString == "" {
		return uuid.Nil, fmt.Errorf("%w: token is empty", ErrInvalidCallbackToken)
	}

	claims := &CallbackClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithLeeway(time.Minute),
		jwt.WithIssuer(callbackIssuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return uuid.Nil, fmt.Errorf("%w: expired", ErrInvalidCallbackToken)
		}
		return uuid.Nil, fmt.Errorf("%w: %w", ErrInvalidCallbackToken, err)
	}

	songID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: bad subject", ErrInvalidCallbackToken)
	}
	return songID, nil
}
