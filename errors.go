package tienda

import (
	"errors"
	"fmt"

	"github.com/xraph/tienda/catalog"
	"github.com/xraph/tienda/fx"
	"github.com/xraph/tienda/plan"
	"github.com/xraph/tienda/state"
	"github.com/xraph/tienda/store"
	"github.com/xraph/tienda/transaction"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrInvalidInput = errors.New("tienda: invalid input")
	ErrNotStarted   = errors.New("tienda: engine not started")
	ErrStopped      = errors.New("tienda: engine stopped")

	// Catalog errors
	ErrProductNotFound  = catalog.ErrProductNotFound
	ErrLimitExceeded    = catalog.ErrLimitExceeded
	ErrDuplicateBarcode = catalog.ErrDuplicateBarcode
	ErrInvalidProduct   = catalog.ErrInvalidProduct

	// Ledger errors
	ErrTransactionNotFound = transaction.ErrTransactionNotFound
	ErrInvalidTransaction  = transaction.ErrInvalidTransaction
	ErrInvalidTransition   = transaction.ErrInvalidTransition
	ErrEmptyCart           = transaction.ErrEmptyCart
	ErrPaymentRequired     = transaction.ErrPaymentRequired
	ErrInvalidRate         = fx.ErrInvalidRate

	// Side records
	ErrSupplierNotFound = errors.New("tienda: supplier not found")
	ErrInvalidState     = state.ErrInvalidState

	// Entitlement errors
	ErrFeatureDisabled = errors.New("tienda: feature not included in plan")
	ErrUnknownPlan     = plan.ErrUnknownLevel

	// Store errors
	ErrNoSnapshot      = store.ErrNoSnapshot
	ErrCorruptSnapshot = store.ErrCorruptSnapshot

	// Export errors
	ErrUnknownFormat = errors.New("tienda: unknown report format")
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("tienda: validation failed for %s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is match ErrInvalidInput.
func (e ValidationError) Unwrap() error { return ErrInvalidInput }

// MultiError represents multiple errors that occurred.
type MultiError struct {
	Errors []error
}

func (e MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "tienda: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("tienda: %d errors occurred", len(e.Errors))
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (e MultiError) Unwrap() []error { return e.Errors }

// Add adds an error to the multi-error.
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors.
func (e MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}

// First returns the first error or nil.
func (e MultiError) First() error {
	if len(e.Errors) > 0 {
		return e.Errors[0]
	}
	return nil
}

// ErrorOrNil returns e when it holds errors, otherwise nil.
func (e MultiError) ErrorOrNil() error {
	if e.HasErrors() {
		return e
	}
	return nil
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrTransactionNotFound) ||
		errors.Is(err, ErrSupplierNotFound)
}

// IsQuotaError returns true if the error is related to plan limits.
func IsQuotaError(err error) bool {
	return errors.Is(err, ErrLimitExceeded) ||
		errors.Is(err, ErrFeatureDisabled)
}

// IsValidationError returns true if the command was refused before any
// state change because its input was invalid.
func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrInvalidProduct) ||
		errors.Is(err, ErrInvalidTransaction) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrDuplicateBarcode) ||
		errors.Is(err, ErrEmptyCart) ||
		errors.Is(err, ErrPaymentRequired) ||
		errors.Is(err, ErrInvalidRate) ||
		errors.Is(err, ErrInvalidState)
}
