package handler

import (
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	pasetotoken "github.com/Alijeyrad/freelancehub_ledger/pkg/paseto"
)

func userIDFromClaims(c fiber.Ctx) (uuid.UUID, bool) {
	claims, found := pasetotoken.ClaimsFromFiber(c)
	if !found {
		return uuid.UUID{}, false
	}
	return claims.UserID, true
}

func paramUUID(c fiber.Ctx, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Params(name))
	return id, err == nil
}

// listQuery is the shared paging and date-range query of list endpoints.
type listQuery struct {
	Limit  int    `query:"limit"`
	Offset int    `query:"offset"`
	From   string `query:"from"`
	To     string `query:"to"`
}

// bounds parses From and To as RFC 3339 timestamps; empty means unbounded.
func (q listQuery) bounds() (from, to time.Time, valid bool) {
	var err error
	if q.From != "" {
		if from, err = time.Parse(time.RFC3339, q.From); err != nil {
			return from, to, false
		}
	}
	if q.To != "" {
		if to, err = time.Parse(time.RFC3339, q.To); err != nil {
			return from, to, false
		}
	}
	return from, to, true
}
