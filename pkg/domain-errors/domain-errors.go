// Package domainerrors defines the closed set of error kinds every handler and
// service raises. Each kind maps to exactly one HTTP status and machine code;
// the transport boundary reads them from here and nowhere else.
package domainerrors

import (
	"errors"
	"maps"
	"net/http"
)

// Kind discriminates domain errors. The set is closed: adding a kind requires
// a matching entry in kindTable or the package stops compiling.
type Kind int

const (
	KindValidation Kind = iota
	KindAuthentication
	KindAuthorization
	KindNotFound
	KindConflict
	KindBusinessLogic
	KindRateLimited
	KindUnavailable
	KindInternal

	kindCount
)

// Machine codes emitted in the error envelope.
const (
	CodeValidation     = "VALIDATION_ERROR"
	CodeAuthentication = "AUTHENTICATION_ERROR"
	CodeAuthorization  = "AUTHORIZATION_ERROR"
	CodeNotFound       = "RESOURCE_NOT_FOUND"
	CodeConflict       = "RESOURCE_CONFLICT"
	CodeBusinessLogic  = "BUSINESS_LOGIC_ERROR"
	CodeRateLimited    = "RATE_LIMIT_EXCEEDED"
	CodeUnavailable    = "SERVICE_UNAVAILABLE"
	CodeInternal       = "INTERNAL_SERVER_ERROR"
)

// Detail keys carried by specific kinds.
const (
	DetailFieldErrors  = "field_errors"
	DetailResourceType = "resource_type"
	DetailBusinessCode = "business_code"
	DetailRetryAfter   = "retry_after"
)

type kindInfo struct {
	name   string
	status int
	code   string
}

var kindTable = [...]kindInfo{
	KindValidation:     {"validation", http.StatusBadRequest, CodeValidation},
	KindAuthentication: {"authentication", http.StatusUnauthorized, CodeAuthentication},
	KindAuthorization:  {"authorization", http.StatusForbidden, CodeAuthorization},
	KindNotFound:       {"not_found", http.StatusNotFound, CodeNotFound},
	KindConflict:       {"conflict", http.StatusConflict, CodeConflict},
	KindBusinessLogic:  {"business_logic", http.StatusUnprocessableEntity, CodeBusinessLogic},
	KindRateLimited:    {"rate_limited", http.StatusTooManyRequests, CodeRateLimited},
	KindUnavailable:    {"unavailable", http.StatusServiceUnavailable, CodeUnavailable},
	KindInternal:       {"internal", http.StatusInternalServerError, CodeInternal},
}

// Fails to compile when kindTable and the Kind constants disagree in length.
var _ = [1]struct{}{}[len(kindTable)-int(kindCount)]

func (k Kind) info() kindInfo {
	if k < 0 || k >= kindCount {
		return kindTable[KindInternal]
	}
	return kindTable[k]
}

// String returns the lower-case kind name used in logs.
func (k Kind) String() string { return k.info().name }

// Status returns the HTTP status for the kind. Out-of-range kinds report 500.
func (k Kind) Status() int { return k.info().status }

// Code returns the machine code for the kind.
func (k Kind) Code() string { return k.info().code }

// Kinds returns every kind in declaration order.
func Kinds() []Kind {
	out := make([]Kind, 0, kindCount)
	for k := range kindCount {
		out = append(out, k)
	}
	return out
}

// Error is a classified failure. It is transport-agnostic and immutable once
// constructed: accessors hand out copies of the details map.
type Error struct {
	kind         Kind
	message      string
	details      map[string]any
	businessCode string
	err          error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.message != "" {
		return e.message
	}
	return e.kind.Code()
}

// Unwrap implements error unwrapping for error chains.
func (e *Error) Unwrap() error {
	return e.err
}

// Is enables errors.Is() to match errors by kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.kind == t.kind
}

func (e *Error) Kind() Kind           { return e.kind }
func (e *Error) Message() string      { return e.message }
func (e *Error) Status() int          { return e.kind.Status() }
func (e *Error) Code() string         { return e.kind.Code() }
func (e *Error) BusinessCode() string { return e.businessCode }

// Details returns a copy of the structured details. Never nil.
func (e *Error) Details() map[string]any {
	out := make(map[string]any, len(e.details)+1)
	maps.Copy(out, e.details)
	if e.businessCode != "" {
		out[DetailBusinessCode] = e.businessCode
	}
	return out
}

// New creates a domain error of the given kind.
func New(kind Kind, msg string) error {
	return &Error{kind: kind, message: msg}
}

// WithDetails creates a domain error carrying structured details.
// The map is copied.
func WithDetails(kind Kind, msg string, details map[string]any) error {
	return &Error{kind: kind, message: msg, details: maps.Clone(details)}
}

// Wrap creates a domain error wrapping err.
// If err already carries a domain error, its kind, details and business code
// are preserved and only the message is replaced.
func Wrap(err error, kind Kind, msg string) error {
	var existing *Error
	if errors.As(err, &existing) {
		return &Error{
			kind:         existing.kind,
			message:      msg,
			details:      existing.details,
			businessCode: existing.businessCode,
			err:          err,
		}
	}
	return &Error{kind: kind, message: msg, err: err}
}

// Validation reports field-level input problems. fieldErrors may be nil.
func Validation(msg string, fieldErrors map[string][]string) error {
	e := &Error{kind: KindValidation, message: msg}
	if len(fieldErrors) > 0 {
		copied := make(map[string][]string, len(fieldErrors))
		for field, msgs := range fieldErrors {
			copied[field] = append([]string(nil), msgs...)
		}
		e.details = map[string]any{DetailFieldErrors: copied}
	}
	return e
}

func Authentication(msg string) error { return New(KindAuthentication, msg) }
func Authorization(msg string) error  { return New(KindAuthorization, msg) }
func Conflict(msg string) error       { return New(KindConflict, msg) }
func Unavailable(msg string) error    { return New(KindUnavailable, msg) }
func Internal(msg string) error       { return New(KindInternal, msg) }

// NotFound reports a missing resource. resourceType is optional.
func NotFound(msg, resourceType string) error {
	e := &Error{kind: KindNotFound, message: msg}
	if resourceType != "" {
		e.details = map[string]any{DetailResourceType: resourceType}
	}
	return e
}

// BusinessLogic reports a violated business rule. businessCode names the rule
// (e.g. SLOT_CONFLICT) and is echoed in details.business_code.
func BusinessLogic(msg, businessCode string) error {
	return &Error{kind: KindBusinessLogic, message: msg, businessCode: businessCode}
}

// RateLimited reports an exhausted quota. retryAfter is in seconds; zero omits the hint.
func RateLimited(msg string, retryAfter int) error {
	e := &Error{kind: KindRateLimited, message: msg}
	if retryAfter > 0 {
		e.details = map[string]any{DetailRetryAfter: retryAfter}
	}
	return e
}

// As extracts the domain error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// HasKind checks if an error is a domain error of the given kind.
func HasKind(err error, kind Kind) bool {
	if e, ok := As(err); ok {
		return e.kind == kind
	}
	return false
}
