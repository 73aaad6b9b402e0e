package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"

	pasetotoken "github.com/Alijeyrad/freelancehub_ledger/pkg/paseto"
	"github.com/Alijeyrad/freelancehub_ledger/pkg/reqctx"
)

// SessionKeyPrefix prefixes the redis key of a live session.
const SessionKeyPrefix = "session:"

// AuthRequired validates a Bearer PASETO token of one of the given types
// (access tokens when none are given). When rdb is set and the token names a
// session, the session must still exist in Redis.
// On success, stores *pasetotoken.Claims in c.Locals(pasetotoken.CtxKeyClaims)
// and in the request context.
func AuthRequired(mgr *pasetotoken.Manager, rdb *redis.Client, types ...pasetotoken.TokenType) fiber.Handler {
	if len(types) == 0 {
		types = []pasetotoken.TokenType{pasetotoken.TokenTypeAccess}
	}
	return func(c fiber.Ctx) error {
		h := c.Get("Authorization")
		if h == "" {
			return fiber.ErrUnauthorized
		}

		parts := strings.SplitN(h, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return fiber.ErrUnauthorized
		}

		claims, err := mgr.Verify(strings.TrimSpace(parts[1]))
		if err != nil {
			return fiber.ErrUnauthorized
		}

		if !acceptsType(types, claims.Type) {
			return fiber.ErrUnauthorized
		}

		if rdb != nil && claims.SessionID != nil {
			key := SessionKeyPrefix + claims.SessionID.String()
			if err := rdb.Get(c.Context(), key).Err(); err != nil {
				return fiber.ErrUnauthorized
			}
		}

		c.Locals(pasetotoken.CtxKeyClaims, claims)
		c.SetContext(reqctx.WithClaims(c.Context(), claims))
		return c.Next()
	}
}

func acceptsType(types []pasetotoken.TokenType, t pasetotoken.TokenType) bool {
	for _, want := range types {
		if want == t {
			return true
		}
	}
	return false
}
