package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/freelancehub_ledger/pkg/authorize"
	pasetotoken "github.com/Alijeyrad/freelancehub_ledger/pkg/paseto"
)

// RequirePermission checks that the authenticated user holds the permission
// in the platform (sys) domain.
func RequirePermission(auth authorize.IAuthorization, resource authorize.Resource, action authorize.Action) fiber.Handler {
	return func(c fiber.Ctx) error {
		claims, ok := pasetotoken.ClaimsFromFiber(c)
		if !ok {
			return fiber.ErrUnauthorized
		}
		subject := authorize.GroupSubject(claims.UserID.String())
		return enforce(c, auth, subject, authorize.DomainSys, resource, action)
	}
}

// RequireSelf checks the permission inside the caller's own user domain.
// Account holders receive the user:self role on their first authenticated
// call; the grant is a no-op once present.
func RequireSelf(auth authorize.IAuthorization, resource authorize.Resource, action authorize.Action) fiber.Handler {
	return func(c fiber.Ctx) error {
		claims, ok := pasetotoken.ClaimsFromFiber(c)
		if !ok {
			return fiber.ErrUnauthorized
		}
		uid := claims.UserID.String()
		if err := authorize.AssignUserSelfRole(c.Context(), auth, uid); err != nil {
			return err
		}
		return enforce(c, auth, authorize.GroupSubject(uid), authorize.UserDomain(uid), resource, action)
	}
}

func enforce(c fiber.Ctx, auth authorize.IAuthorization, subject authorize.GroupSubject, domain authorize.Domain, resource authorize.Resource, action authorize.Action) error {
	if err := auth.MustEnforce(c.Context(), subject, domain, resource, action); err != nil {
		if errors.Is(err, authorize.ErrForbidden) {
			return fiber.ErrForbidden
		}
		return err
	}
	return c.Next()
}
