package api

// Result is the decoded outcome of a call the service answered: either Ok with
// a payload or a rejection carrying the server's message. Transport failures
// are never a Result; they come back as a separate error.
type Result[T any] struct {
	value   T
	message string
	ok      bool
}

func Ok[T any](value T) Result[T] {
	return Result[T]{value: value, ok: true}
}

func Fail[T any](message string) Result[T] {
	return Result[T]{message: message}
}

func (r Result[T]) IsOk() bool {
	return r.ok
}

func (r Result[T]) Value() T {
	return r.value
}

// Message is the rejection text as sent by the server, possibly empty.
func (r Result[T]) Message() string {
	return r.message
}

// MessageOr returns the rejection text, or fallback when the server sent none.
func (r Result[T]) MessageOr(fallback string) string {
	if r.message == "" {
		return fallback
	}
	return r.message
}
