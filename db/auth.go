package db

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/nickyhof/EmbedDB/core"
	"golang.org/x/crypto/bcrypt"
)

// DefaultUser is the administrator account of a database configured
// without users.
const DefaultUser = "SA"

type authenticator struct {
	users  map[string]string
	secret []byte
	issuer string
}

func newAuthenticator(cfg Config) *authenticator {
	users := make(map[string]string, len(cfg.Users))
	for name, hash := range cfg.Users {
		users[strings.ToUpper(name)] = hash
	}
	a := &authenticator{users: users, issuer: cfg.JWTIssuer}
	if cfg.JWTSecret != "" {
		a.secret = []byte(cfg.JWTSecret)
	}
	return a
}

// HashPassword returns the bcrypt hash to put in Config.Users.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// authenticate checks the credentials and returns the session user.
func (a *authenticator) authenticate(user, password string) (string, error) {
	user = strings.ToUpper(strings.TrimSpace(user))

	if a.secret != nil && strings.Count(password, ".") == 2 {
		return a.validateToken(user, password)
	}

	if len(a.users) == 0 {
		if (user == "" || user == DefaultUser) && password == "" {
			return DefaultUser, nil
		}
		return "", accessDenied(user)
	}

	hash, ok := a.users[user]
	if !ok {
		return "", accessDenied(user)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return "", accessDenied(user)
	}
	return user, nil
}

func (a *authenticator) validateToken(user, tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
	if err != nil {
		return "", core.NewConnectionError(core.CodeAccessDenied, "invalid token: %v", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", core.NewConnectionError(core.CodeAccessDenied, "invalid token")
	}
	if a.issuer != "" {
		if issuer, _ := claims.GetIssuer(); issuer != a.issuer {
			return "", core.NewConnectionError(core.CodeAccessDenied, "invalid token issuer %q", issuer)
		}
	}

	subject, _ := claims.GetSubject()
	if subject == "" {
		subject, _ = claims["name"].(string)
	}
	if subject == "" {
		return "", core.NewConnectionError(core.CodeAccessDenied, "token has no subject")
	}
	subject = strings.ToUpper(subject)
	if user != "" && user != subject {
		return "", accessDenied(user)
	}
	return subject, nil
}

var errAccessDenied = errors.New("invalid user name or password")

func accessDenied(user string) error {
	err := core.NewConnectionError(core.CodeAccessDenied, "access denied for user %s", user)
	err.Err = errAccessDenied
	return err
}
