package httputil

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"

	"diyetlenio/internal/events"
	dErrors "diyetlenio/pkg/domain-errors"
	"diyetlenio/pkg/requestcontext"
)

// Codes for foreign errors with no taxonomy kind.
const (
	CodeBadRequest       = "BAD_REQUEST"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	CodeRequestError     = "REQUEST_ERROR"
)

// HeaderRequestTimestamp is echoed into the envelope timestamp when present.
const HeaderRequestTimestamp = "X-Request-Timestamp"

const (
	messageInternal       = "Internal server error"
	pgUniqueViolationCode = "23505"
)

// Envelope is the body of every error response.
type Envelope struct {
	Error EnvelopeError `json:"error"`
}

type EnvelopeError struct {
	Message   string         `json:"message"`
	Code      string         `json:"code"`
	Timestamp *string        `json:"timestamp"`
	Details   map[string]any `json:"details"`
}

// StatusError is a foreign error that already carries an HTTP status, such as
// the router's not-found and method-not-allowed responses.
type StatusError struct {
	Status int
	Err    error
}

// NewStatusError returns a StatusError with the standard status text.
func NewStatusError(status int) *StatusError {
	return &StatusError{Status: status}
}

func (e *StatusError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%d %s: %v", e.Status, http.StatusText(e.Status), e.Err)
	}
	return fmt.Sprintf("%d %s", e.Status, http.StatusText(e.Status))
}

func (e *StatusError) Unwrap() error { return e.Err }

type foreignMapping struct {
	code    string
	message string
}

// foreignStatuses maps statuses raised outside the domain to the nearest taxonomy code.
var foreignStatuses = map[int]foreignMapping{
	http.StatusBadRequest:         {CodeBadRequest, "Bad request"},
	http.StatusUnauthorized:       {dErrors.CodeAuthentication, "Authentication failed"},
	http.StatusForbidden:          {dErrors.CodeAuthorization, "Access denied"},
	http.StatusNotFound:           {dErrors.CodeNotFound, "Resource not found"},
	http.StatusMethodNotAllowed:   {CodeMethodNotAllowed, "Method not allowed"},
	http.StatusTooManyRequests:    {dErrors.CodeRateLimited, "Rate limit exceeded"},
	http.StatusServiceUnavailable: {dErrors.CodeUnavailable, "Service temporarily unavailable"},
}

// Translator converts any error reaching the boundary into the envelope.
type Translator struct {
	logger    *slog.Logger
	counters  *ErrorCounters
	publisher events.Publisher
	debug     bool
}

type TranslatorOption func(*Translator)

// WithDebug surfaces unclassified error detail to clients. Never enable in production.
func WithDebug(debug bool) TranslatorOption {
	return func(t *Translator) {
		t.debug = debug
	}
}

// WithErrorPublisher publishes an event for every unclassified error.
func WithErrorPublisher(p events.Publisher) TranslatorOption {
	return func(t *Translator) {
		t.publisher = p
	}
}

// NewTranslator creates a translator recording into counters.
func NewTranslator(logger *slog.Logger, counters *ErrorCounters, opts ...TranslatorOption) *Translator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if counters == nil {
		counters = NewErrorCounters(nil)
	}
	t := &Translator{
		logger:    logger,
		counters:  counters,
		publisher: events.NoopPublisher{},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Counters returns the error counters the translator records into.
func (t *Translator) Counters() *ErrorCounters {
	return t.counters
}

// WriteError translates err and writes the envelope.
func (t *Translator) WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, env := t.Translate(r, err)
	WriteJSON(w, status, env)
}

// Translate classifies err and returns the response status and envelope.
// The error counter for the resulting code is incremented exactly once.
func (t *Translator) Translate(r *http.Request, err error) (int, Envelope) {
	ctx := r.Context()
	if err == nil {
		err = errors.New("nil error reached the boundary")
	}

	var (
		status  int
		message string
		code    string
		details map[string]any
	)

	de, isDomain := dErrors.As(classifyInfrastructure(err))
	se, isForeign := foreignStatus(err)

	switch {
	case isDomain:
		status, message, code, details = de.Status(), de.Message(), de.Code(), de.Details()
		t.logDomain(ctx, r, de)
	case isForeign:
		status = se.Status
		code, message = foreignCode(se.Status)
		t.logger.InfoContext(ctx, "request error",
			"status", status,
			"code", code,
			"path", r.URL.Path,
			"method", r.Method,
			"request_id", requestcontext.RequestID(ctx),
		)
	default:
		status, code, message = http.StatusInternalServerError, dErrors.CodeInternal, messageInternal
		t.logUnclassified(ctx, r, err)
		if t.debug {
			message = err.Error()
			details = map[string]any{
				"error_type": fmt.Sprintf("%T", unwrapPanic(err)),
				"error":      err.Error(),
			}
		}
	}

	if details == nil {
		details = map[string]any{}
	}
	t.counters.Record(code)

	return status, Envelope{Error: EnvelopeError{
		Message:   message,
		Code:      code,
		Timestamp: requestTimestamp(r),
		Details:   details,
	}}
}

func (t *Translator) logDomain(ctx context.Context, r *http.Request, de *dErrors.Error) {
	level := slog.LevelWarn
	if de.Status() >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	attrs := []any{
		"code", de.Code(),
		"status", de.Status(),
		"path", r.URL.Path,
		"method", r.Method,
		"principal", requestcontext.Principal(ctx),
		"request_id", requestcontext.RequestID(ctx),
	}
	if bc := de.BusinessCode(); bc != "" {
		attrs = append(attrs, "business_code", bc)
	}
	if cause := errors.Unwrap(de); cause != nil {
		attrs = append(attrs, "cause", cause.Error())
	}
	t.logger.Log(ctx, level, "domain error: "+de.Message(), attrs...)
}

func (t *Translator) logUnclassified(ctx context.Context, r *http.Request, err error) {
	errType := fmt.Sprintf("%T", unwrapPanic(err))
	attrs := []any{
		"error", err.Error(),
		"error_type", errType,
		"path", r.URL.Path,
		"method", r.Method,
		"principal", requestcontext.Principal(ctx),
		"request_id", requestcontext.RequestID(ctx),
	}
	var pe *PanicError
	if errors.As(err, &pe) {
		attrs = append(attrs, "stack", string(pe.Stack))
	}
	t.logger.ErrorContext(ctx, "unhandled error", attrs...)
	t.publisher.Publish(ctx, events.UnclassifiedError(ctx, r.Method, r.URL.Path, errType))
}

// classifyInfrastructure maps well-known library errors to a taxonomy kind.
// It returns err unchanged when nothing matches.
func classifyInfrastructure(err error) error {
	if _, ok := dErrors.As(err); ok {
		return err
	}

	var pgErr *pgconn.PgError
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return dErrors.Wrap(err, dErrors.KindNotFound, "Resource not found")
	case errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolationCode:
		return dErrors.Wrap(err, dErrors.KindConflict, "Resource already exists")
	case errors.Is(err, context.DeadlineExceeded):
		return dErrors.Wrap(err, dErrors.KindUnavailable, "Service temporarily unavailable")
	}
	return err
}

// asStatusError finds a StatusError, converting request-body failures into one.
func asStatusError(err error) (*StatusError, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se, true
	}

	var (
		maxBytes  *http.MaxBytesError
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
	)
	switch {
	case errors.As(err, &maxBytes):
		return &StatusError{Status: http.StatusRequestEntityTooLarge, Err: err}, true
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr), errors.Is(err, io.ErrUnexpectedEOF):
		return &StatusError{Status: http.StatusBadRequest, Err: err}, true
	}
	return nil, false
}

// foreignStatus returns the StatusError behind err when the translator answers
// with its status: every 4xx, and 5xx statuses with a table entry.
func foreignStatus(err error) (*StatusError, bool) {
	se, ok := asStatusError(err)
	if !ok {
		return nil, false
	}
	if se.Status < http.StatusInternalServerError {
		return se, true
	}
	_, mapped := foreignStatuses[se.Status]
	return se, mapped
}

func foreignCode(status int) (code, message string) {
	if m, ok := foreignStatuses[status]; ok {
		return m.code, m.message
	}
	return CodeRequestError, "Request failed"
}

func unwrapPanic(err error) any {
	var pe *PanicError
	if errors.As(err, &pe) {
		return pe.Value
	}
	return err
}

func requestTimestamp(r *http.Request) *string {
	ts := r.Header.Get(HeaderRequestTimestamp)
	if ts == "" {
		return nil
	}
	return &ts
}
