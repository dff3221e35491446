package permission

import (
	"context"
	"fmt"

	tripAuth "github.com/MrEthical07/tripAuth"
)

// Result is the outcome of a role check.
type Result struct {
	Allowed  bool
	Required tripAuth.Role
	// Err is nil when Allowed, tripAuth.ErrUnauthenticated without an
	// identity, and a *ForbiddenError otherwise.
	Err error
}

// ForbiddenError reports an authenticated caller without the required role.
type ForbiddenError struct {
	Required tripAuth.Role
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("forbidden: requires %s", e.Required.Authority())
}

// Is makes errors.Is(err, tripAuth.ErrForbidden) hold.
func (e *ForbiddenError) Is(target error) bool {
	return target == tripAuth.ErrForbidden
}

// Check reports whether the identity on ctx holds exactly required.
func Check(ctx context.Context, required tripAuth.Role) Result {
	res := Result{Required: required}

	id, ok := tripAuth.IdentityFromContext(ctx)
	if !ok || id.Username == "" {
		res.Err = tripAuth.ErrUnauthenticated
		return res
	}
	if id.Role != required {
		res.Err = &ForbiddenError{Required: required}
		return res
	}

	res.Allowed = true
	return res
}

// Require is Check reduced to an error, for domain services that only need
// to fail fast.
func Require(ctx context.Context, required tripAuth.Role) error {
	return Check(ctx, required).Err
}
