package order

import (
	"errors"
	"fmt"

	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/catalog"
	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
)

var (
	ErrNotFound               = domain.ErrNotFound
	ErrProductNotFound        = catalog.ErrProductNotFound
	ErrInvalidStateTransition = domain.ErrInvalidStateTransition
	ErrInvoiceUnavailable     = errors.New("order: invoice unavailable")
	ErrOrderNotPayable        = errors.New("order: order is not awaiting payment")
	ErrRepository             = errors.New("order: repository failure")
)

// ValidationError reports a request the use case refuses to process.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func newValidation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func wrapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return ErrNotFound
	default:
		return fmt.Errorf("%w: %w", ErrRepository, err)
	}
}
