package domain

import "fmt"

// Error types for consistent error handling across the CRM.

// ErrNotFound indicates a resource was not found, or is not owned by the caller.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrExternalService indicates a failure in an external service call.
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrUnauthenticated is returned before any mutation when no actor is in the session.
type ErrUnauthenticated struct{}

func (e *ErrUnauthenticated) Error() string {
	return "User not authenticated"
}

// ErrDuplicateProduct replaces a unique violation on the product name.
type ErrDuplicateProduct struct {
	ProductName string
}

func (e *ErrDuplicateProduct) Error() string {
	return fmt.Sprintf("Já existe um produto cadastrado com o nome \"%s\"", e.ProductName)
}

// Kind mirrors the error name the frontend switches on.
func (e *ErrDuplicateProduct) Kind() string { return "DuplicateProductError" }

// ErrDuplicateData replaces any other unique violation.
type ErrDuplicateData struct {
	Resource string
	Detail   string
}

func (e *ErrDuplicateData) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("Dados duplicados em %s: %s", e.Resource, e.Detail)
	}
	return fmt.Sprintf("Dados duplicados em %s", e.Resource)
}

func (e *ErrDuplicateData) Kind() string { return "DuplicateDataError" }

// ErrProductInUse blocks deleting a product referenced by a sale.
type ErrProductInUse struct {
	ProductID   string
	ProductName string
}

func (e *ErrProductInUse) Error() string {
	return fmt.Sprintf("Não é possível excluir o produto \"%s\": ele está vinculado a vendas registradas", e.ProductName)
}
