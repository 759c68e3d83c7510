// Package apperror classifies failures at operation boundaries and turns them
// into short messages for callers.
package apperror

import (
	"errors"
	"fmt"
)

// Kind is the failure category of an operation.
type Kind int

const (
	KindUnknown Kind = iota
	KindStoreRead
	KindStoreWrite
	KindIDCollision
	KindValidation
	KindEmptyResult
)

func (k Kind) String() string {
	switch k {
	case KindStoreRead:
		return "store_read"
	case KindStoreWrite:
		return "store_write"
	case KindIDCollision:
		return "id_collision"
	case KindValidation:
		return "validation"
	case KindEmptyResult:
		return "empty_result"
	default:
		return "unknown"
	}
}

// E is a classified error. Msg is safe to show to a user; Err is the cause.
type E struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *E) Error() string {
	switch {
	case e.Err != nil && e.Msg != "":
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	}
}

func (e *E) Unwrap() error { return e.Err }

// Is matches another *E by kind, so errors.Is(err, apperror.ErrIDCollision) works
// for any collision regardless of op or cause.
func (e *E) Is(target error) bool {
	t, ok := target.(*E)
	if !ok {
		return false
	}
	return t.Op == "" && t.Kind == e.Kind
}

// Sentinels for errors.Is checks.
var (
	ErrStoreRead   = &E{Kind: KindStoreRead}
	ErrStoreWrite  = &E{Kind: KindStoreWrite}
	ErrIDCollision = &E{Kind: KindIDCollision}
	ErrValidation  = &E{Kind: KindValidation}
	ErrEmptyResult = &E{Kind: KindEmptyResult}
)

func StoreRead(op string, err error) error {
	return &E{Kind: KindStoreRead, Op: op, Msg: "failed to load data", Err: err}
}

func StoreWrite(op string, err error) error {
	return &E{Kind: KindStoreWrite, Op: op, Msg: "failed to save data", Err: err}
}

func IDCollision(op string, err error) error {
	return &E{Kind: KindIDCollision, Op: op, Msg: "a case with this ID already exists, try again", Err: err}
}

func Validation(op, msg string) error {
	return &E{Kind: KindValidation, Op: op, Msg: msg}
}

func EmptyResult(op, msg string) error {
	return &E{Kind: KindEmptyResult, Op: op, Msg: msg}
}

// KindOf returns the kind of the first classified error in err's chain.
func KindOf(err error) Kind {
	var e *E
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Message returns the user-facing message for err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var e *E
	if errors.As(err, &e) && e.Msg != "" {
		return e.Msg
	}
	return "unexpected error"
}
