package middleware

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/idempotency"
	fiberredis "github.com/gofiber/storage/redis/v3"
	"github.com/redis/go-redis/v9"

	"github.com/Alijeyrad/freelancehub_ledger/pkg/reqctx"
)

const HeaderIdempotencyKey = "X-Idempotency-Key"

const maxIdempotencyKeyLen = 128

var errIdempotencyKey = errors.New("X-Idempotency-Key must be 1-128 characters")

// Idempotency replays the stored response of an unsafe request whose
// X-Idempotency-Key was already seen within ttl. Responses are kept in Redis
// when rdb is set, otherwise in process memory. The key is also placed in
// the request context so wallet mutations record it on their ledger rows.
func Idempotency(rdb *redis.Client, ttl time.Duration) fiber.Handler {
	cfg := idempotency.Config{
		Lifetime:  ttl,
		KeyHeader: HeaderIdempotencyKey,
		KeyHeaderValidate: func(k string) error {
			if k == "" || len(k) > maxIdempotencyKeyLen {
				return errIdempotencyKey
			}
			return nil
		},
	}
	if rdb != nil {
		cfg.Storage = fiberredis.NewFromConnection(rdb)
	}
	replay := idempotency.New(cfg)

	return func(c fiber.Ctx) error {
		if key := c.Get(HeaderIdempotencyKey); key != "" {
			c.SetContext(reqctx.WithIdempotencyKey(c.Context(), key))
		}
		return replay(c)
	}
}
