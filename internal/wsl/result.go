package wsl

// Result is the uniform return contract of every executor call and every
// lifecycle operation. Immutable once constructed. A failed result carries
// a non-empty Error unless the caller deliberately withheld one.
type Result[T any] struct {
	Success bool
	Output  string
	Error   string
	Data    T
}

// Ok builds a success result carrying decoded output and an optional payload.
func Ok[T any](output string, data T) Result[T] {
	return Result[T]{Success: true, Output: output, Data: data}
}

// Fail builds a failure result.
func Fail[T any](output, errMsg string) Result[T] {
	return Result[T]{Success: false, Output: output, Error: errMsg}
}
