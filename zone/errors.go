package zone

import (
	"github.com/aukilabs/go-tooling/pkg/logs"
)

const (
	ErrTypeNotManaged     = "zone_not_managed"
	ErrTypeAlreadyManaged = "zone_already_managed"
	ErrTypePoolExhausted  = "zone_pool_exhausted"
	ErrTypeInvariant      = "zone_invariant"
	ErrTypeInvalidRange   = "zone_invalid_range"
)

// violation reports a broken structural invariant. Strict registries panic
// with the error; others log it and let the caller abort the operation.
func (r *Registry) violation(err error) error {
	instrumentInvariantViolation()
	if r.strict {
		panic(err)
	}
	logs.WithTag("component", "zone").Error(err)
	return err
}
