// Package cellerrors provides structured error types for the cell routing fabric.
// This package defines error categories and types for routing diagnostics
// and for reconstructing a failure Response on the remote side of a call.
package cellerrors

import (
	"errors"
	"fmt"
)

// Category represents the category of an error.
type Category string

const (
	// CategoryRoutingInconsistency indicates a bad path/dest relationship
	// or an unknown neighbor while computing a next hop.
	CategoryRoutingInconsistency Category = "routing_inconsistency"
	// CategoryServiceAPIMethodNotFound indicates an unknown service or method
	// name reached the Service API Bridge.
	CategoryServiceAPIMethodNotFound Category = "service_api_method_not_found"
	// CategoryTimeout indicates an originating call's deadline elapsed
	// before a matching Response arrived.
	CategoryTimeout Category = "timeout"
	// CategoryTransport indicates a transient send failure at the
	// Transport Adapter.
	CategoryTransport Category = "transport"
	// CategoryCatalog indicates a Catalog lookup or write failed.
	CategoryCatalog Category = "catalog"
	// CategoryConfiguration indicates a configuration error.
	CategoryConfiguration Category = "configuration"
	// CategoryInternal indicates an internal error with no better category.
	CategoryInternal Category = "internal"
)

// Severity represents the severity level of an error.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// CellError is a structured error carrying category, severity, and
// retry metadata for the routing fabric.
type CellError struct {
	Category   Category
	Severity   Severity
	Message    string
	Underlying error
	Retryable  bool
	Context    map[string]interface{}
}

func (e *CellError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Severity, e.Message, e.Underlying)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Severity, e.Message)
}

func (e *CellError) Unwrap() error {
	return e.Underlying
}

func (e *CellError) Is(target error) bool {
	t, ok := target.(*CellError)
	if !ok {
		return false
	}
	return e.Category == t.Category
}

// WithContext attaches a diagnostic key/value to the error.
func (e *CellError) WithContext(key string, value interface{}) *CellError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func New(category Category, severity Severity, message string) *CellError {
	return &CellError{Category: category, Severity: severity, Message: message}
}

func Wrap(category Category, severity Severity, message string, err error) *CellError {
	return &CellError{Category: category, Severity: severity, Message: message, Underlying: err}
}

func NewRetryable(category Category, severity Severity, message string) *CellError {
	return &CellError{Category: category, Severity: severity, Message: message, Retryable: true}
}

func WrapRetryable(category Category, severity Severity, message string, err error) *CellError {
	return &CellError{Category: category, Severity: severity, Message: message, Underlying: err, Retryable: true}
}

// RoutingInconsistency builds the error raised by findNextHop when the
// path/dest relationship is invalid or a neighbor is unknown.
func RoutingInconsistency(reason string) *CellError {
	return New(CategoryRoutingInconsistency, SeverityHigh, reason)
}

// ServiceAPIMethodNotFound builds the error raised by the Service API
// Bridge when the service or method name is unrecognized.
func ServiceAPIMethodNotFound(reason string) *CellError {
	return New(CategoryServiceAPIMethodNotFound, SeverityMedium, reason)
}

// Timeout builds the error an originating caller sees when no Response
// arrives before its deadline.
func Timeout(reason string) *CellError {
	return New(CategoryTimeout, SeverityMedium, reason)
}

// TransportError builds a retryable transport-layer send failure.
func TransportError(message string, err error) *CellError {
	return WrapRetryable(CategoryTransport, SeverityMedium, message, err)
}

// CatalogError builds a catalog-layer failure.
func CatalogError(message string, err error) *CellError {
	return WrapRetryable(CategoryCatalog, SeverityMedium, message, err)
}

// ConfigurationError builds a configuration validation failure.
func ConfigurationError(message string, err error) *CellError {
	return Wrap(CategoryConfiguration, SeverityCritical, message, err)
}

// InternalError builds a generic internal failure.
func InternalError(message string, err error) *CellError {
	return Wrap(CategoryInternal, SeverityHigh, message, err)
}

func IsRetryable(err error) bool {
	var ce *CellError
	if errors.As(err, &ce) {
		return ce.Retryable
	}
	return false
}

func GetCategory(err error) Category {
	var ce *CellError
	if errors.As(err, &ce) {
		return ce.Category
	}
	return CategoryInternal
}

func IsCategory(err error, category Category) bool {
	var ce *CellError
	if errors.As(err, &ce) {
		return ce.Category == category
	}
	return false
}

// RemoteError is what an originating caller observes when a Response
// carries a failure: the triple the remote handler's panic/error was
// packaged into, matching the wire shape in spec §6/§7.
type RemoteError struct {
	ClassName  string
	Message    string
	Traceback  string
}

func (e *RemoteError) Error() string {
	if e.ClassName == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.ClassName, e.Message)
}
