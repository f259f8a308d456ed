package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/golang-jwt/jwt/v5/request"
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-orders/pkg/config"
	"github.com/angelmondragon/storefront-orders/pkg/enums"
)

const clockSkew = 30 * time.Second

var (
	signingMethod = jwt.SigningMethodHS256

	// ErrNoCredentials is returned when the request carries no token at all.
	ErrNoCredentials = errors.New("missing credentials")

	errSecretRequired = errors.New("jwt secret is required")
)

// Accepts "Bearer <token>" and, for older clients, the bare token.
var tokenExtractor = request.MultiExtractor{
	request.BearerExtractor{},
	request.HeaderExtractor{"Authorization"},
}

// MintAccessToken issues a signed JWT for the payload using the configured TTL.
func MintAccessToken(cfg config.JWTConfig, now time.Time, payload AccessTokenPayload) (string, error) {
	if cfg.Secret == "" {
		return "", errSecretRequired
	}
	if cfg.Issuer == "" {
		return "", errors.New("jwt issuer is required")
	}
	if cfg.ExpirationMinutes <= 0 {
		return "", errors.New("jwt expiration minutes must be positive")
	}

	jti := strings.TrimSpace(payload.JTI)
	if jti == "" {
		jti = uuid.NewString()
	}
	claims := AccessTokenClaims{
		CustomerID: payload.CustomerID,
		VendorID:   payload.VendorID,
		Role:       payload.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject(payload),
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(cfg.ExpirationMinutes) * time.Minute)),
			ID:        jti,
		},
	}
	if err := claims.Validate(); err != nil {
		return "", err
	}

	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}

// ParseAccessToken validates the JWT string and returns typed claims.
func ParseAccessToken(cfg config.JWTConfig, tokenString string) (*AccessTokenClaims, error) {
	if cfg.Secret == "" {
		return nil, errSecretRequired
	}
	claims := &AccessTokenClaims{}
	if _, err := newParser(cfg).ParseWithClaims(tokenString, claims, keyFunc(cfg)); err != nil {
		return nil, err
	}
	return claims, nil
}

// ParseRequest pulls the token from the Authorization header and validates
// it. A request without a token yields ErrNoCredentials.
func ParseRequest(cfg config.JWTConfig, r *http.Request) (*AccessTokenClaims, error) {
	if cfg.Secret == "" {
		return nil, errSecretRequired
	}
	claims := &AccessTokenClaims{}
	_, err := request.ParseFromRequest(r, tokenExtractor, keyFunc(cfg),
		request.WithClaims(claims),
		request.WithParser(newParser(cfg)),
	)
	if errors.Is(err, request.ErrNoTokenInRequest) {
		return nil, ErrNoCredentials
	}
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func newParser(cfg config.JWTConfig) *jwt.Parser {
	return jwt.NewParser(
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockSkew),
	)
}

func keyFunc(cfg config.JWTConfig) jwt.Keyfunc {
	return func(token *jwt.Token) (any, error) {
		if token.Method != signingMethod {
			return nil, fmt.Errorf("unexpected signing method %s", token.Header["alg"])
		}
		return []byte(cfg.Secret), nil
	}
}

func subject(payload AccessTokenPayload) string {
	switch {
	case payload.Role == enums.RoleVendor && payload.VendorID != nil:
		return fmt.Sprintf("vendor:%d", *payload.VendorID)
	case payload.CustomerID != 0:
		return fmt.Sprintf("customer:%d", payload.CustomerID)
	default:
		return string(payload.Role)
	}
}
