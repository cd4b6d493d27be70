// Package halarenderer provides the error and logging surfaces shared by the
// scene, upload and shader subsystems.
package halarenderer

// Error is the descriptive error type of the renderer layer. It carries a
// message and an optional wrapped cause, usually a failure reported by the
// underlying gfx collaborator.
type Error struct {
	msg   string
	cause error
}

func NewError(msg string, cause error) *Error {
	return &Error{msg: msg, cause: cause}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.msg + ": " + e.cause.Error()
	}
	return e.msg
}

func (e *Error) Message() string { return e.msg }

func (e *Error) Unwrap() error { return e.cause }
