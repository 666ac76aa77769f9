package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/SkullXA/kaliun-connect-api/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Class identifies what a bearer token is good for. Verification always
// pins the expected class, so a refresh token can never pass as an access
// token and device credentials can never pass as oauth credentials.
type Class string

const (
	ClassDeviceAccess  Class = "device-access"
	ClassDeviceRefresh Class = "device-refresh"
	ClassOAuthAccess   Class = "oauth-access"
	ClassOAuthRefresh  Class = "oauth-refresh"
)

// Claims is the verified payload of a bearer token.
type Claims struct {
	Subject   string // installation id for device classes, user id for oauth classes
	Class     Class
	ExpiresAt time.Time
}

// Issuer creates and verifies signed bearer tokens with a single
// process-wide HS256 secret.
type Issuer struct {
	secret  []byte
	baseURL string
}

func NewIssuer(cfg *config.Config) *Issuer {
	return &Issuer{
		secret:  []byte(cfg.JWTSecret),
		baseURL: cfg.BaseURL,
	}
}

// Issue signs a token for subject with the given class and lifetime.
func (i *Issuer) Issue(subject string, class Class, ttl time.Duration) (string, time.Time, error) {
	expiresAt := time.Now().Add(ttl)
	claims := jwt.MapClaims{
		"sub":   subject,
		"class": string(class),
		"exp":   expiresAt.Unix(),
		"iat":   time.Now().Unix(),
		"iss":   i.baseURL,
		"jti":   uuid.New().String(),
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: %v", ErrTokenGeneration, err)
	}
	return signed, expiresAt, nil
}

// Verify checks signature and expiry and that the token carries the
// expected class. Returns ErrExpiredToken for an otherwise-valid expired
// token and ErrInvalidToken for everything else; a verify failure is never
// fatal to the caller.
func (i *Issuer) Verify(tokenString string, want Class) (*Claims, error) {
	parsed, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	subject, _ := claims["sub"].(string)
	class, _ := claims["class"].(string)
	if subject == "" || Class(class) != want {
		return nil, ErrInvalidToken
	}

	exp, ok := claims["exp"].(float64)
	if !ok {
		return nil, ErrInvalidToken
	}

	return &Claims{
		Subject:   subject,
		Class:     Class(class),
		ExpiresAt: time.Unix(int64(exp), 0),
	}, nil
}
