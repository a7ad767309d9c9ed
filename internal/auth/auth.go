package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

const (
	CookieName = "auth_token"
	// sessions are refreshed on every authenticated request
	sessionTTL = 30 * 24 * time.Hour
)

var ErrUnauthorized = errors.New("unauthorized")

type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (c Credentials) Check(other Credentials) bool {
	userOK := subtle.ConstantTimeCompare([]byte(c.Username), []byte(other.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(c.Password), []byte(other.Password)) == 1
	return userOK && passOK
}

// NewCredentials parses "username:password".
func NewCredentials(s string) (Credentials, error) {
	username, password, ok := strings.Cut(s, ":")
	if !ok || username == "" {
		return Credentials{}, fmt.Errorf("invalid credentials format")
	}

	return Credentials{
		Username: username,
		Password: password,
	}, nil
}

// Authenticator guards the management API with a single admin account.
// Sessions are HS256 JWTs carried in a cookie.
type Authenticator struct {
	credentials Credentials
	secret      []byte
	now         func() time.Time
}

func NewAuthenticator(credentials Credentials, jwtSecret string) *Authenticator {
	return &Authenticator{credentials: credentials, secret: []byte(jwtSecret), now: time.Now}
}

// Login checks creds and returns a session cookie.
func (a *Authenticator) Login(creds Credentials) (*http.Cookie, error) {
	if !a.credentials.Check(creds) {
		return nil, ErrUnauthorized
	}
	return a.sessionCookie(creds.Username)
}

func (a *Authenticator) verify(tokenStr string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if claims.Subject != a.credentials.Username {
		return nil, errors.New("token subject is not the admin")
	}
	return claims, nil
}

func (a *Authenticator) sign(username string) (string, error) {
	now := a.now()
	claims := &jwt.RegisteredClaims{
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(sessionTTL)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (a *Authenticator) sessionCookie(username string) (*http.Cookie, error) {
	token, err := a.sign(username)
	if err != nil {
		return nil, err
	}

	return &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(sessionTTL.Seconds()),
	}, nil
}

// Middleware accepts either a session cookie or HTTP basic auth and
// refreshes the session cookie on success.
func (a *Authenticator) Middleware() echo.MiddlewareFunc {
	type strategy func(c echo.Context) (username string, ok bool)
	strategies := []strategy{
		a.fromCookie,
		a.fromBasicAuth,
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			for _, authenticate := range strategies {
				username, ok := authenticate(c)
				if !ok {
					continue
				}

				cookie, err := a.sessionCookie(username)
				if err != nil {
					return err
				}
				cookie.Secure = c.IsTLS()
				c.SetCookie(cookie)
				return next(c)
			}
			return echo.ErrUnauthorized
		}
	}
}

func (a *Authenticator) fromCookie(c echo.Context) (string, bool) {
	cookie, err := c.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}

	claims, err := a.verify(cookie.Value)
	if err != nil {
		log.Debug().Err(err).Msg("rejected session cookie")
		return "", false
	}
	return claims.Subject, true
}

func (a *Authenticator) fromBasicAuth(c echo.Context) (string, bool) {
	username, password, ok := c.Request().BasicAuth()
	if !ok {
		return "", false
	}
	if !a.credentials.Check(Credentials{Username: username, Password: password}) {
		return "", false
	}
	return username, true
}

func ExpireCookie() *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	}
}
