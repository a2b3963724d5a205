// Package httputil is the single error boundary of the HTTP transport.
//
// Every route handler is written as a HandlerFunc returning an error and
// mounted through Translator.Handle. Whatever the handler returns, or panics
// with, is turned into the canonical envelope:
//
//	{"error": {"message": "...", "code": "...", "timestamp": null, "details": {}}}
//
// Domain errors (pkg/domain-errors) keep their own status, code and details.
// Foreign errors carrying an HTTP status (router 404/405) go through a fixed
// table. Anything else is logged in full and answered with a generic 500.
package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/chi/v5/middleware"
)

// HandlerFunc is a route handler that reports failure by returning an error
// instead of writing an error response itself.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

func WriteJSON(w http.ResponseWriter, status int, response any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Errors after WriteHeader cannot change the status code, so we ignore encoding errors.
	_ = json.NewEncoder(w).Encode(response)
}

// PanicError carries a recovered panic value to the translator.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Handle adapts fn to http.Handler, translating returned errors and panics.
// Once the handler has started the response no envelope can follow: the
// failure is still translated for logs and counters, and a panic aborts the
// connection so the client sees a truncated response rather than two bodies.
func (t *Translator) Handle(fn HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			err := &PanicError{Value: rec, Stack: debug.Stack()}
			if ww.Status() != 0 {
				t.Translate(r, err)
				panic(http.ErrAbortHandler)
			}
			t.WriteError(ww, r, err)
		}()
		if err := fn(ww, r); err != nil {
			if ww.Status() != 0 {
				t.Translate(r, err)
				return
			}
			t.WriteError(ww, r, err)
		}
	})
}

// Recovery catches panics raised outside Handle-wrapped handlers, such as in
// middleware, and translates them like any other unclassified error.
func (t *Translator) Recovery(next http.Handler) http.Handler {
	return t.Handle(func(w http.ResponseWriter, r *http.Request) error {
		next.ServeHTTP(w, r)
		return nil
	})
}

// Adapter mounts error-returning handlers behind the boundary. *Translator implements it.
type Adapter interface {
	Handle(fn HandlerFunc) http.Handler
}
