package transport

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Authorizer verifies the authorization header of a Streamable HTTP request.
type Authorizer interface {
	// Authorize returns an error if the request must be rejected.
	Authorize(authorization string) error
}

// AuthorizerFunc adapts an ordinary function to the Authorizer.
type AuthorizerFunc func(authorization string) error

// Authorize See: Authorizer#Authorize
func (f AuthorizerFunc) Authorize(authorization string) error {
	return f(authorization)
}

// DefaultAuthorizer returns an Authorizer that accepts every request.
func DefaultAuthorizer() Authorizer {
	return AuthorizerFunc(func(string) error { return nil })
}

// compatibility check
var _ Authorizer = (*JWTAuthorizer)(nil)

// JWTAuthorizer accepts requests bearing a JWT signed with a shared HMAC secret.
type JWTAuthorizer struct {
	secret     []byte
	parserOpts []jwt.ParserOption
}

const bearerPrefix = "Bearer "

// Authorize See: Authorizer#Authorize
func (a *JWTAuthorizer) Authorize(authorization string) error {
	if len(authorization) < len(bearerPrefix) || !strings.EqualFold(authorization[:len(bearerPrefix)], bearerPrefix) {
		return ErrMissingBearerToken
	}
	tokenString := strings.TrimSpace(authorization[len(bearerPrefix):])
	if tokenString == "" {
		return ErrMissingBearerToken
	}
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return a.secret, nil
	}, a.parserOpts...)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid {
		return ErrInvalidToken
	}
	return nil
}

type jwtAuthorizerOptions struct {
	issuer   string
	audience string
}

// JWTAuthorizerOption configures the JWTAuthorizer.
type JWTAuthorizerOption func(*jwtAuthorizerOptions)

// JWTAuthorizerWithIssuer requires the `iss` claim to match.
func JWTAuthorizerWithIssuer(issuer string) JWTAuthorizerOption {
	return func(o *jwtAuthorizerOptions) {
		o.issuer = issuer
	}
}

// JWTAuthorizerWithAudience requires the `aud` claim to contain the audience.
func JWTAuthorizerWithAudience(audience string) JWTAuthorizerOption {
	return func(o *jwtAuthorizerOptions) {
		o.audience = audience
	}
}

// NewJWTAuthorizer returns a new JWTAuthorizer verifying HS256, HS384 and HS512 tokens against secret.
func NewJWTAuthorizer(secret []byte, options ...JWTAuthorizerOption) *JWTAuthorizer {
	opts := &jwtAuthorizerOptions{}
	for _, opt := range options {
		opt(opts)
	}
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{
			jwt.SigningMethodHS256.Alg(),
			jwt.SigningMethodHS384.Alg(),
			jwt.SigningMethodHS512.Alg(),
		}),
	}
	if opts.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(opts.issuer))
	}
	if opts.audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(opts.audience))
	}
	return &JWTAuthorizer{
		secret:     secret,
		parserOpts: parserOpts,
	}
}
