// Package deviceauth issues and verifies the bearer tokens gate scanners present to the admission
// API. Tokens are HS256 JWTs whose subject is the device id.
package deviceauth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	gperrors "github.com/jrsteele09/go-gate-pass/internal/errors"
)

// Audience is the fixed aud claim of every device token.
const Audience = "gate"

const minSecretLength = 32

var ErrInvalidToken = gperrors.ErrInvalidDeviceToken

// HMACSigner mints and verifies device tokens with a shared HMAC-SHA256 secret.
type HMACSigner struct {
	secret  []byte
	issuer  string
	nowFunc func() time.Time
}

type Option func(*HMACSigner)

func WithNowFunc(now func() time.Time) Option {
	return func(s *HMACSigner) {
		s.nowFunc = now
	}
}

func NewHMACSigner(secret []byte, issuer string, options ...Option) (*HMACSigner, error) {
	if len(secret) < minSecretLength {
		return nil, errors.Errorf("[NewHMACSigner] device token secret must be at least %d bytes", minSecretLength)
	}
	if issuer == "" {
		return nil, errors.New("[NewHMACSigner] issuer is required")
	}
	s := &HMACSigner{
		secret:  append([]byte(nil), secret...),
		issuer:  issuer,
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// Mint returns a signed token for deviceID that expires after ttl.
func (s *HMACSigner) Mint(deviceID string, ttl time.Duration) (string, error) {
	if deviceID == "" {
		return "", errors.New("[HMACSigner.Mint] device id is required")
	}
	if ttl <= 0 {
		return "", errors.New("[HMACSigner.Mint] ttl must be positive")
	}
	now := s.nowFunc()
	claims := jwt.RegisteredClaims{
		Issuer:    s.issuer,
		Subject:   deviceID,
		Audience:  jwt.ClaimStrings{Audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign device token with HMAC")
	}
	return signed, nil
}

// Verify checks signature, issuer, audience and expiry, and returns the device id.
func (s *HMACSigner) Verify(raw string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, s.verificationKey,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(Audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.nowFunc),
	)
	if err != nil {
		return "", gperrors.Wrapf(ErrInvalidToken, "%s", err.Error())
	}
	if claims.Subject == "" {
		return "", gperrors.Wrapf(ErrInvalidToken, "missing subject")
	}
	return claims.Subject, nil
}

func (s *HMACSigner) verificationKey(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, errors.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return s.secret, nil
}
