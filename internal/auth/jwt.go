package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/strefethen/timer-hub-go/internal/config"
)

// TokenPayload represents the validated payload data carried by the
// single operator token this service accepts (§ AMBIENT STACK auth
// note: "a single long-lived operator token", no device-pairing flow).
type TokenPayload struct {
	Sub string
}

var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
)

type tokenClaims struct {
	jwt.RegisteredClaims
}

// GenerateOperatorToken mints a long-lived bearer token for sub (an
// operator identifier, e.g. "cli" or an admin's name). There is no
// self-service issuance endpoint; an operator runs `timer-hub
// -mint-token` offline and distributes the result out of band.
func GenerateOperatorToken(cfg config.Config, sub string) (string, error) {
	now := time.Now()
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			Issuer:    "timer-hub",
			Audience:  []string{"timer-hub-operator"},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(cfg.JWTTokenExpirySec) * time.Second)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.JWTSecret))
}

// VerifyToken parses and validates the JWT.
func VerifyToken(cfg config.Config, token string) (TokenPayload, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithAudience("timer-hub-operator"),
		jwt.WithIssuer("timer-hub"),
	)

	claims := &tokenClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(_ *jwt.Token) (any, error) {
		return []byte(cfg.JWTSecret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return TokenPayload{}, ErrTokenExpired
		}
		return TokenPayload{}, ErrTokenInvalid
	}
	if parsed == nil || !parsed.Valid {
		return TokenPayload{}, ErrTokenInvalid
	}

	if claims.Subject == "" {
		return TokenPayload{}, ErrTokenInvalid
	}

	return TokenPayload{Sub: claims.Subject}, nil
}
