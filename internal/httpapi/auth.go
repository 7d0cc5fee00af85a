package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// RoleService allows player commands issued on behalf of chat users.
	RoleService = "service"
	// RoleAdmin allows operator commands; it implies RoleService.
	RoleAdmin = "admin"

	claimsContextKey    = "auth_claims"
	bearerPrefix        = "Bearer "
	authorizationHeader = "Authorization"
)

var errUnexpectedSigningMethod = errors.New("unexpected signing method")

// Claims are the bearer token claims accepted by the API.
type Claims struct {
	jwt.RegisteredClaims
	Roles []string `json:"roles"`
}

// HasRole reports whether the claims grant role. Admin tokens satisfy every role.
func (claims *Claims) HasRole(role string) bool {
	return slices.Contains(claims.Roles, RoleAdmin) || slices.Contains(claims.Roles, role)
}

// Authenticator signs and verifies HS256 bearer tokens.
type Authenticator struct {
	signingKey []byte
	issuer     string
	now        func() time.Time
}

// NewAuthenticator builds an Authenticator. now may be nil.
func NewAuthenticator(signingKey string, issuer string, now func() time.Time) (*Authenticator, error) {
	if strings.TrimSpace(signingKey) == "" {
		return nil, fmt.Errorf("jwt signing key is required")
	}
	if now == nil {
		now = time.Now
	}
	return &Authenticator{signingKey: []byte(signingKey), issuer: issuer, now: now}, nil
}

// Issue signs a token for subject carrying roles, valid for ttl.
func (authenticator *Authenticator) Issue(subject string, roles []string, ttl time.Duration) (string, error) {
	issuedAt := authenticator.now()
	claims := Claims{
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    authenticator.issuer,
			Subject:   subject,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(authenticator.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign jwt: %w", err)
	}
	return signed, nil
}

// Verify parses a signed token and checks issuer and expiry.
func (authenticator *Authenticator) Verify(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(
		raw, claims,
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("%w: %v", errUnexpectedSigningMethod, token.Header["alg"])
			}
			return authenticator.signingKey, nil
		},
		jwt.WithIssuer(authenticator.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(authenticator.now),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// Middleware rejects requests without a valid bearer token and stores the claims on the context.
func (authenticator *Authenticator) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		header := ctx.GetHeader(authorizationHeader)
		if !strings.HasPrefix(header, bearerPrefix) {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing bearer token"))
			return
		}
		claims, err := authenticator.Verify(strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix)))
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("unauthorized", "invalid bearer token"))
			return
		}
		ctx.Set(claimsContextKey, claims)
		ctx.Next()
	}
}

func requireRole(role string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		claims := getClaims(ctx)
		if claims == nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
			return
		}
		if !claims.HasRole(role) {
			ctx.AbortWithStatusJSON(http.StatusForbidden, errorResponse("forbidden", fmt.Sprintf("role %q required", role)))
			return
		}
		ctx.Next()
	}
}

func getClaims(ctx *gin.Context) *Claims {
	claimsValue, ok := ctx.Get(claimsContextKey)
	if !ok {
		return nil
	}
	claims, _ := claimsValue.(*Claims)
	return claims
}
