package moderation

import (
	"errors"
	"fmt"
)

var (
	ErrMissingPermission = errors.New("missing permission")
	ErrMissingArgument   = errors.New("missing argument")
	ErrBadArgument       = errors.New("bad argument")
)

// ArgumentError reports an argument that could not be converted, such as a
// member that is not in the guild.
type ArgumentError struct {
	Name  string
	Value string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("bad argument %s=%q", e.Name, e.Value)
}

func (e *ArgumentError) Unwrap() error { return ErrBadArgument }

// ActionError is a platform rejection of the command's main effect.
type ActionError struct {
	Op  string
	Err error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }

// NoticeError is a refusal shown to the invoker verbatim.
type NoticeError struct {
	Message string
}

func (e *NoticeError) Error() string { return e.Message }

func notice(format string, args ...any) error {
	return &NoticeError{Message: fmt.Sprintf(format, args...)}
}

func badArgument(name, value string) error {
	return &ArgumentError{Name: name, Value: value}
}

// describe maps an error to the reply shown in chat and whether it is
// unexpected enough to go to the audit channel.
func describe(err error) (string, bool) {
	var (
		actionErr *ActionError
		noticeErr *NoticeError
	)
	switch {
	case errors.Is(err, ErrMissingPermission):
		return "You do not have permission to use this command.", false
	case errors.Is(err, ErrMissingArgument):
		return "Missing argument for command.", false
	case errors.Is(err, ErrBadArgument):
		return "Bad argument type passed.", false
	case errors.As(err, &actionErr):
		return fmt.Sprintf("Failed to %s: %v", actionErr.Op, actionErr.Err), false
	case errors.As(err, &noticeErr):
		return noticeErr.Message, false
	default:
		return fmt.Sprintf("An error occurred: %v", err), true
	}
}

// Classify returns the result label used for command metrics.
func Classify(err error) string {
	var (
		actionErr *ActionError
		noticeErr *NoticeError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrMissingPermission):
		return "denied"
	case errors.Is(err, ErrMissingArgument), errors.Is(err, ErrBadArgument):
		return "usage"
	case errors.As(err, &actionErr):
		return "failed"
	case errors.As(err, &noticeErr):
		return "refused"
	default:
		return "error"
	}
}
