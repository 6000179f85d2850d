// Package web is a tiny HTTP service framework: a context-aware handler
// signature, request-scoped trace values, JSON decode/respond helpers and
// middleware wiring with shutdown signalling; it does no panic recovery.
// It follows the shape the teacher's
// handler packages already assume (web.App, web.Handle, web.Respond,
// web.Decode, web.GetValues, web.Param, web.NewShutdownError), built out in
// full since the teacher's own foundation/web package was not retrieved.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/dimfeld/httptreemux/v5"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/google/uuid"
)

// Handler is the signature every route and middleware is built from. A
// returned error is funneled through the App's single error-handling path.
type Handler func(ctx context.Context, w http.ResponseWriter, r *http.Request) error

// Middleware wraps a Handler with cross-cutting behavior (logging, panic
// recovery, CORS, ...).
type Middleware func(Handler) Handler

// App is the application's router. It wraps httptreemux's context mux and
// serves requests through it, matching the teacher's convention of
// treating App as the mux.
type App struct {
	mux      *httptreemux.ContextMux
	mw       []Middleware
	shutdown chan os.Signal
	validate *validator.Validate
	trans    ut.Translator
}

// NewApp constructs an App with shutdown wired to the given signal channel
// (the process delivers SIGINT/SIGTERM there) and mw applied, outermost
// first, to every route registered afterward.
func NewApp(shutdown chan os.Signal, mw ...Middleware) *App {
	validate := validator.New()

	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	trans, _ := uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, trans)

	mux := httptreemux.NewContextMux()
	mux.NotFoundHandler = notFound

	return &App{
		mux:      mux,
		mw:       mw,
		shutdown: shutdown,
		validate: validate,
		trans:    trans,
	}
}

// notFound answers any path the mux couldn't match with the same
// {success,message} envelope every control endpoint uses (spec.md §6).
func notFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	json.NewEncoder(w).Encode(Response{Success: false, Message: "endpoint not found"})
}

// SignalShutdown gracefully signals the application is shutting down. It's
// used when an integrity issue is identified (web.NewShutdownError), not
// a simple request-handling error.
func (a *App) SignalShutdown() {
	a.shutdown <- syscall.SIGTERM
}

// Handle registers handler, and any route-specific middleware, for the
// given method/group/path, wrapped (innermost first) by the handler's own
// middleware and then (outermost) the App's global middleware.
func (a *App) Handle(method string, group string, path string, handler Handler, mw ...Middleware) {
	handler = wrapMiddleware(mw, handler)
	handler = wrapMiddleware(a.mw, handler)

	finalPath := path
	if group != "" {
		finalPath = "/" + group + path
	}

	h := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		v := Values{
			TraceID: uuid.NewString(),
			Now:     time.Now().UTC(),
		}
		ctx = context.WithValue(ctx, valuesKey, &v)

		if err := handler(ctx, w, r); err != nil {
			if validateShutdown(err) {
				a.SignalShutdown()
				return
			}
		}
	}

	a.mux.Handle(method, finalPath, h)
}

// ServeHTTP satisfies http.Handler by delegating to the underlying mux.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mux.ServeHTTP(w, r)
}

func wrapMiddleware(mw []Middleware, handler Handler) Handler {
	for i := len(mw) - 1; i >= 0; i-- {
		if mw[i] != nil {
			handler = mw[i](handler)
		}
	}
	return handler
}

// validateShutdown reports whether err (or one it wraps) is a
// *shutdownError, the only error class that tears the process down.
func validateShutdown(err error) bool {
	var sd *shutdownError
	return errors.As(err, &sd)
}

// =============================================================================
// Request-scoped values

type ctxKey int

const valuesKey ctxKey = 1

// Values carries per-request bookkeeping through the context.
type Values struct {
	TraceID    string
	Now        time.Time
	StatusCode int
}

// GetValues extracts the Values attached by App.Handle.
func GetValues(ctx context.Context) (*Values, error) {
	v, ok := ctx.Value(valuesKey).(*Values)
	if !ok {
		return nil, errors.New("web value missing from context")
	}
	return v, nil
}

// =============================================================================
// Params, Decode, Respond

// Param returns the named path parameter captured by the router.
func Param(r *http.Request, key string) string {
	m := httptreemux.ContextParams(r.Context())
	return m[key]
}

// Decode reads the request body as JSON into val, then, if val implements
// validatable, calls its Validate method. Struct validation tags are not
// checked here.
func Decode(r *http.Request, val any) error {
	if err := json.NewDecoder(r.Body).Decode(val); err != nil {
		return err
	}

	if v, ok := val.(validatable); ok {
		if err := v.Validate(); err != nil {
			return err
		}
	}

	return nil
}

// validatable lets individual request types opt into validator.Struct
// checks; most inbound payloads here are plain domain values with no
// string-format invariants validator would usefully enforce, so this is
// opt-in rather than applied unconditionally in Decode.
type validatable interface {
	Validate() error
}

// Response is the JSON envelope spec.md §6 requires for every control
// endpoint's response and for the unknown-path fallback: data endpoints
// respond with their own raw JSON instead.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Respond marshals data as JSON and writes it with statusCode. A nil data
// value writes just the status code with no body.
func Respond(ctx context.Context, w http.ResponseWriter, data any, statusCode int) error {
	if v, err := GetValues(ctx); err == nil {
		v.StatusCode = statusCode
	}

	if data == nil {
		w.WriteHeader(statusCode)
		return nil
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, err = w.Write(jsonData)
	return err
}

// =============================================================================
// Shutdown errors

type shutdownError struct {
	Message string
}

func (e *shutdownError) Error() string {
	return e.Message
}

// NewShutdownError returns an error that, when it escapes a Handler, tells
// the App to begin a graceful shutdown — reserved for programmer-invariant
// failures (spec.md §7 Fatal class), never ordinary request errors.
func NewShutdownError(message string) error {
	return &shutdownError{Message: message}
}
