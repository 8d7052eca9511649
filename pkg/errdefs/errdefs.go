package errdefs

import (
	"errors"
	"fmt"
)

// Kind classifies a failure of the recovery procedure
type Kind int

const (
	KindUnknown Kind = iota
	KindPermissionDenied
	KindConfigNotFound
	KindConfigNotWritable
	KindNotMounted
	KindReadOnlyMount
	KindWriteTimeout
	KindMalformedConfig
	KindInvalidGeneratedConfig
	KindBackupNotFound
	KindServiceTransitionFailed
)

var kindNames = map[Kind]string{
	KindUnknown:                 "Unknown",
	KindPermissionDenied:        "PermissionDenied",
	KindConfigNotFound:          "ConfigNotFound",
	KindConfigNotWritable:       "ConfigNotWritable",
	KindNotMounted:              "NotMounted",
	KindReadOnlyMount:           "ReadOnlyMount",
	KindWriteTimeout:            "WriteTimeout",
	KindMalformedConfig:         "MalformedConfig",
	KindInvalidGeneratedConfig:  "InvalidGeneratedConfig",
	KindBackupNotFound:          "BackupNotFound",
	KindServiceTransitionFailed: "ServiceTransitionFailed",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is a classified failure with an operator hint
type Error struct {
	Kind    Kind
	Message string
	// Hint names the command or log an operator should check next
	Hint  string
	Cause error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error of the same kind, so errors.Is(err, &Error{Kind: k}) works
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Cause == nil
}

// New creates an error of the given kind
func New(kind Kind, message, hint string) *Error {
	return &Error{Kind: kind, Message: message, Hint: hint}
}

// Wrap creates an error of the given kind around cause
func Wrap(kind Kind, cause error, message, hint string) *Error {
	return &Error{Kind: kind, Message: message, Hint: hint, Cause: cause}
}

// KindOf returns the kind of the first *Error in err's chain
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err's chain contains an *Error of kind
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HintOf returns the first non-empty hint in err's chain
func HintOf(err error) string {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return ""
		}
		if e.Hint != "" {
			return e.Hint
		}
		err = e.Cause
	}
	return ""
}

// AppendHint returns err with extra added after its existing hint. The kind
// and message are kept; a chain without an *Error is classified as
// KindUnknown.
func AppendHint(err error, extra string) error {
	if err == nil || extra == "" {
		return err
	}
	hint := HintOf(err)
	if hint != "" {
		hint += "; "
	}
	hint += extra

	if e, ok := err.(*Error); ok {
		c := *e
		c.Hint = hint
		return &c
	}
	return &Error{Kind: KindOf(err), Message: "operation aborted", Hint: hint, Cause: err}
}
