package authorize

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/Alijeyrad/freelancehub_ledger/pkg/reqctx"
)

var ErrNoSubjectInContext = errors.New("no subject found in context")

// UserIDFromContext returns the authenticated user stored by the auth
// middleware.
func UserIDFromContext(ctx context.Context) (uuid.UUID, error) {
	claims := reqctx.ClaimsFromContext(ctx)
	if claims == nil || claims.GetUserID() == uuid.Nil {
		return uuid.Nil, ErrNoSubjectInContext
	}
	return claims.GetUserID(), nil
}

// SubjectFromContext is UserIDFromContext as a casbin subject.
func SubjectFromContext(ctx context.Context) (GroupSubject, error) {
	id, err := UserIDFromContext(ctx)
	if err != nil {
		return "", err
	}
	return GroupSubject(id.String()), nil
}
