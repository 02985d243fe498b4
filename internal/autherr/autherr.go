package autherr

import (
	"errors"
	"fmt"
)

// Kind classifies failures of the session lifecycle. Handlers map kinds to
// HTTP responses; core packages only ever return them.
type Kind int

const (
	KindUnknown Kind = iota
	ConfigMissing
	StoreUnavailable
	StateMismatch
	UserDenied
	ProviderError
	NotFound
)

var kindCodes = map[Kind]string{
	KindUnknown:      "internal_error",
	ConfigMissing:    "config_missing",
	StoreUnavailable: "store_unavailable",
	StateMismatch:    "state_mismatch",
	UserDenied:       "user_denied",
	ProviderError:    "provider_error",
	NotFound:         "not_found",
}

// Code returns the machine-readable reason code sent to clients.
func (k Kind) Code() string {
	if c, ok := kindCodes[k]; ok {
		return c
	}
	return kindCodes[KindUnknown]
}

func (k Kind) String() string { return k.Code() }

// Error carries a Kind plus the operation that failed. Err is internal detail
// and must not be echoed to untrusted clients in production.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind.Code(), e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind.Code())
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind.Code(), e.Err)
	}
	return e.Kind.Code()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same Kind, so errors.Is(err, autherr.E(k, "")) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && (t.Op == "" || t.Op == e.Op)
}

// E builds an *Error. err may be nil.
func E(kind Kind, op string, err ...error) *Error {
	e := &Error{Kind: kind, Op: op}
	if len(err) > 0 {
		e.Err = err[0]
	}
	return e
}

// Errorf builds an *Error with a formatted cause.
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the Kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
