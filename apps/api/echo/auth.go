package echoapi

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/thesisman/backend/core"
	"github.com/thesisman/backend/core/user"
)

const contextTokenKey = "userToken"

// Claims represents the authorization claims transmitted via a JWT.
// Tokens are issued by the identity provider; the API only verifies them.
type Claims struct {
	jwt.StandardClaims
	Email string    `json:"email,omitempty"`
	Role  user.Role `json:"role,omitempty"`
}

func (c Claims) Valid() error {
	if err := c.StandardClaims.Valid(); err != nil {
		return err
	}
	if c.Subject == "" || !c.Role.Valid() {
		return errors.New("token has no subject or an unknown role")
	}
	return nil
}

func (c Claims) Actor() user.Actor {
	return user.Actor{ID: c.Subject, Email: c.Email, Role: c.Role}
}

// NewClaims returns the claims of a token for usr that is valid for ttl.
func NewClaims(conf *core.Config, usr user.User, ttl time.Duration) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   usr.ID,
			ExpiresAt: now.Add(ttl).Unix(),
			IssuedAt:  now.Unix(),
		},
		Email: usr.Email,
		Role:  usr.Role,
	}
}

// GenerateToken generates a signed JWT token string representing the user Claims.
func GenerateToken(secretKey string, claims *Claims) (string, error) {
	method := jwt.GetSigningMethod(middleware.AlgorithmHS256)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString([]byte(secretKey))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

type auth struct {
	conf middleware.JWTConfig
}

func newAuth(secretKey string) auth {
	return auth{
		conf: middleware.JWTConfig{
			SigningKey:    []byte(secretKey),
			SigningMethod: middleware.AlgorithmHS256,
			ContextKey:    contextTokenKey,
			Claims:        new(Claims),
		},
	}
}

func (a auth) middleware() echo.MiddlewareFunc {
	return middleware.JWTWithConfig(a.conf)
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

func getContextActor(ctx echo.Context) (user.Actor, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return user.Actor{}, err
	}
	return claims.Actor(), nil
}
