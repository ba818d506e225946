package middleware

import (
	"conference-webapp/auth"
	"conference-webapp/errors"

	"github.com/gofiber/fiber/v2"
	jwtware "github.com/gofiber/jwt/v2"
	"github.com/golang-jwt/jwt/v4"
)

const (
	TokenKey    = "token"
	IdentityKey = "identity"
)

// Authorize checks the signature of the bearer token.
func Authorize(signingKey string) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey:   []byte(signingKey),
		ErrorHandler: jwtError,
		ContextKey:   TokenKey,
	})
}

func jwtError(c *fiber.Ctx, err error) error {
	if err.Error() == "Missing or malformed JWT" {
		return errors.RaisePermissionsError(c, "Missing or malformed JWT")
	}
	return errors.RaisePermissionsError(c, "Invalid or expired JWT")
}

// RequireSession resolves the verified token to a live server side session
// and stores the acting identity in the request locals.
func RequireSession(engine *auth.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := c.Locals(TokenKey).(*jwt.Token)
		if !ok {
			return errors.RaisePermissionsError(c, "no session token")
		}
		sessionId, err := auth.SessionIDFromClaims(token.Claims)
		if err != nil {
			return errors.Respond(c, err)
		}
		identity, err := engine.Resume(c.UserContext(), sessionId)
		if err != nil {
			return errors.Respond(c, err)
		}
		c.Locals(IdentityKey, identity)
		return c.Next()
	}
}

// Authenticated is Authorize followed by RequireSession.
func Authenticated(signingKey string, engine *auth.Engine) []fiber.Handler {
	return []fiber.Handler{Authorize(signingKey), RequireSession(engine)}
}

// CurrentIdentity returns the identity stored by RequireSession, or nil on
// routes that do not require a session.
func CurrentIdentity(c *fiber.Ctx) *auth.Identity {
	identity, _ := c.Locals(IdentityKey).(*auth.Identity)
	return identity
}
