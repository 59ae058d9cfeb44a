// Package failure classifies pipeline errors into the kinds the run loop
// acts on: global failures abort the run, local ones degrade a single record
// or page.
package failure

import (
	"fmt"

	"github.com/pkg/errors"
)

type Kind string

const (
	KindNetwork         Kind = "NETWORK"
	KindParse           Kind = "PARSE"
	KindExternalService Kind = "EXTERNAL_SERVICE"
	KindPersistence     Kind = "PERSISTENCE"
	KindConfig          Kind = "CONFIG"
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Cause lets errors.Cause from pkg/errors walk through.
func (e *Error) Cause() error {
	return e.Err
}

func New(kind Kind, message string, err error) *Error {
	if err != nil {
		// Keep a stack for the log if the cause doesn't carry one.
		if _, ok := err.(interface{ StackTrace() errors.StackTrace }); !ok {
			err = errors.WithStack(err)
		}
	}

	return &Error{
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

func Network(message string, err error) *Error {
	return New(KindNetwork, message, err)
}

func Parse(message string, err error) *Error {
	return New(KindParse, message, err)
}

func ExternalService(message string, err error) *Error {
	return New(KindExternalService, message, err)
}

func Persistence(message string, err error) *Error {
	return New(KindPersistence, message, err)
}

func Config(message string, err error) *Error {
	return New(KindConfig, message, err)
}

// KindOf returns the kind of the first classified error in the chain, or ""
// when the chain carries none.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsFatal reports whether err must abort the whole run. Unclassified errors
// are treated as fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	switch KindOf(err) {
	case KindParse, KindExternalService:
		return false
	default:
		return true
	}
}
