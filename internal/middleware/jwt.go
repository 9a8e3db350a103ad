package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/campus-api/internal/auth"
	"github.com/noah-isme/campus-api/internal/utils"
)

// Locals keys populated from verified token claims.
const (
	LocalUserID    = "user_id"
	LocalUserRole  = "user_role"
	LocalUserEmail = "user_email"
)

// TokenVerifier validates a bearer token and returns its claims.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// JWTProtected rejects requests without a valid bearer token.
func JWTProtected(verifier TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := bearerToken(c)
		if err != nil {
			return utils.SendError(c, fiber.StatusUnauthorized, err.Error())
		}
		if err := authenticate(c, verifier, token); err != nil {
			return utils.SendError(c, fiber.StatusUnauthorized, err.Error())
		}
		return c.Next()
	}
}

// OptionalJWT identifies the caller when a bearer token is supplied and lets
// anonymous requests through. A supplied but invalid token is still rejected.
func OptionalJWT(verifier TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if strings.TrimSpace(c.Get(fiber.HeaderAuthorization)) == "" {
			return c.Next()
		}
		token, err := bearerToken(c)
		if err != nil {
			return utils.SendError(c, fiber.StatusUnauthorized, err.Error())
		}
		if err := authenticate(c, verifier, token); err != nil {
			return utils.SendError(c, fiber.StatusUnauthorized, err.Error())
		}
		return c.Next()
	}
}

func bearerToken(c *fiber.Ctx) (string, error) {
	authorization := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if authorization == "" {
		return "", errors.New("authorization header missing")
	}

	const bearer = "bearer "
	if len(authorization) <= len(bearer) || !strings.EqualFold(authorization[:len(bearer)], bearer) {
		return "", errors.New("invalid authorization header")
	}

	token := strings.TrimSpace(authorization[len(bearer):])
	if token == "" {
		return "", errors.New("invalid token")
	}
	return token, nil
}

func authenticate(c *fiber.Ctx, verifier TokenVerifier, token string) error {
	claims, err := verifier.Verify(token)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return errors.New("token expired")
		}
		return errors.New("invalid token")
	}
	if claims.UserID == 0 {
		return errors.New("invalid token claims")
	}

	c.Locals(LocalUserID, claims.UserID)
	c.Locals(LocalUserRole, strings.ToLower(strings.TrimSpace(claims.Role)))
	c.Locals(LocalUserEmail, claims.Email)
	return nil
}
