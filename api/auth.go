package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	gojwt "github.com/golang-jwt/jwt/v5"

	"github.com/kbukum/reconflow/errors"
)

var signingMethods = map[string]*gojwt.SigningMethodHMAC{
	"HS256": gojwt.SigningMethodHS256,
	"HS384": gojwt.SigningMethodHS384,
	"HS512": gojwt.SigningMethodHS512,
}

// ctxClaims is the gin context key holding verified claims.
const ctxClaims = "claims"

// Claims carried by API tokens. Subject identifies the caller and is
// recorded as the actor on ticket resolutions and feedback.
type Claims struct {
	gojwt.RegisteredClaims
	Scope string `json:"scope,omitempty"`
}

// Tokens issues and verifies HMAC-signed JWTs.
type Tokens struct {
	method *gojwt.SigningMethodHMAC
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokens creates a token service from cfg.
func NewTokens(cfg AuthConfig) (*Tokens, error) {
	method, ok := signingMethods[cfg.Method]
	if !ok {
		return nil, fmt.Errorf("api: unsupported signing method %q", cfg.Method)
	}
	if cfg.Secret == "" {
		return nil, fmt.Errorf("api: auth secret is required")
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Tokens{method: method, secret: []byte(cfg.Secret), issuer: cfg.Issuer, ttl: ttl, now: time.Now}, nil
}

// Issue signs a token for subject.
func (t *Tokens) Issue(subject, scope string) (string, error) {
	now := t.now()
	claims := &Claims{
		RegisteredClaims: gojwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    t.issuer,
			IssuedAt:  gojwt.NewNumericDate(now),
			ExpiresAt: gojwt.NewNumericDate(now.Add(t.ttl)),
		},
		Scope: scope,
	}
	signed, err := gojwt.NewWithClaims(t.method, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("api: sign token: %w", err)
	}
	return signed, nil
}

// Verify parses token and checks signature, expiry and issuer.
func (t *Tokens) Verify(token string) (*Claims, error) {
	opts := []gojwt.ParserOption{
		gojwt.WithValidMethods([]string{t.method.Alg()}),
		gojwt.WithTimeFunc(t.now),
	}
	if t.issuer != "" {
		opts = append(opts, gojwt.WithIssuer(t.issuer))
	}
	claims := &Claims{}
	parsed, err := gojwt.ParseWithClaims(token, claims, func(*gojwt.Token) (interface{}, error) {
		return t.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("api: parse token: %w", err)
	}
	if !parsed.Valid {
		return nil, fmt.Errorf("api: invalid token")
	}
	return claims, nil
}

// Auth rejects requests without a valid bearer token. Paths in skip bypass
// the check.
func Auth(tokens *Tokens, skip ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, p := range skip {
			if c.Request.URL.Path == p {
				c.Next()
				return
			}
		}

		header := c.GetHeader("Authorization")
		if header == "" {
			abortWithError(c, errors.Unauthorized("Authorization header required."))
			return
		}
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			abortWithError(c, errors.Unauthorized("Invalid authorization header format."))
			return
		}
		claims, err := tokens.Verify(token)
		if err != nil {
			abortWithError(c, errors.InvalidToken().WithCause(err))
			return
		}
		c.Set(ctxClaims, claims)
		c.Next()
	}
}

// actor names the caller for audit records.
func actor(c *gin.Context) string {
	if v, ok := c.Get(ctxClaims); ok {
		if claims, ok := v.(*Claims); ok && claims.Subject != "" {
			return claims.Subject
		}
	}
	return "anonymous"
}

func abortWithError(c *gin.Context, err error) {
	app := errors.From(err)
	status := app.HTTPStatus
	if status == 0 {
		status = http.StatusInternalServerError
	}
	c.AbortWithStatusJSON(status, app.ToResponse())
}
