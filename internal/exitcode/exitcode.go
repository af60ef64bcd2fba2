// Package exitcode defines the fixed exit-code taxonomy and the classifier
// that maps any error to one of its codes. The numeric values are a stable
// contract with callers and must never be reassigned.
package exitcode

import (
	"errors"
	"strings"
)

// Exit codes. Stable contract.
const (
	Success         = 0 // at least one row written
	NoRows          = 1 // zero rows and --allow-empty not set
	ConfigError     = 2 // missing/conflicting/unreadable configuration
	ConnectionError = 3 // DNS, TCP, handshake, authentication, TLS
	QueryError      = 4 // SQL failure or type-conversion failure
	IOError         = 5 // cannot open, write, or flush output
	UnknownError    = 6 // anything else
)

// ErrNoRows signals a successful query that produced zero rows. The driver
// maps it to NoRows unless --allow-empty is set.
var ErrNoRows = errors.New("query returned no rows")

// Error attaches an exit code to a cause. Components wrap their failures so
// classification does not depend on message contents alone.
type Error struct {
	Code  int
	Msg   string
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Msg
	}
	if e.Msg == "" {
		return e.Cause.Error()
	}
	return e.Msg + ": " + e.Cause.Error()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Config wraps err as a configuration error (exit 2).
func Config(msg string, cause error) *Error {
	return &Error{Code: ConfigError, Msg: msg, Cause: cause}
}

// Connection wraps err as a connection/authentication error (exit 3).
func Connection(msg string, cause error) *Error {
	return &Error{Code: ConnectionError, Msg: msg, Cause: cause}
}

// Query wraps err as a query or result-processing error (exit 4).
func Query(msg string, cause error) *Error {
	return &Error{Code: QueryError, Msg: msg, Cause: cause}
}

// IO wraps err as a file I/O error (exit 5).
func IO(msg string, cause error) *Error {
	return &Error{Code: IOError, Msg: msg, Cause: cause}
}

// Signature tables for errors that reach the classifier without a typed
// wrapper. Order matters: type-conversion signatures are checked before the
// generic "invalid" configuration language so a bad month value never
// degrades to a config error.
var (
	conversionSignatures = []string{
		"type conversion error",
		"type conversion failed during row processing",
		"from_value",
	}
	connectionSignatures = []string{
		"connection refused",
		"connection reset",
		"access denied",
		"authentication",
		"handshake",
		"tls",
		"certificate",
		"no such host",
		"dial tcp",
		"i/o timeout",
		"bad connection",
	}
	flagConflictSignatures = []string{
		"cannot be used with",
		"mutually exclusive",
		"missing required",
		"required flag",
		"unknown flag",
	}
	querySignatures = []string{
		"sql syntax",
		"syntax error",
		"unknown column",
		"unknown table",
		"doesn't exist",
		"mysql error",
	}
	configSignatures = []string{
		"invalid",
		"configuration",
	}
	ioSignatures = []string{
		"permission denied",
		"no space left",
		"broken pipe",
		"file already closed",
		"write",
		"flush",
	}
)

// FromError classifies err into an exit code. It is total: every input,
// including nil, maps to a code in [0,6]. Typed *Error values anywhere in the
// chain win; otherwise the chain text is scanned against the ordered
// signature tables.
func FromError(err error) int {
	if err == nil {
		return Success
	}
	if errors.Is(err, ErrNoRows) {
		return NoRows
	}
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}

	msg := strings.ToLower(err.Error())
	switch {
	case matchesAny(msg, conversionSignatures):
		return QueryError
	case matchesAny(msg, flagConflictSignatures):
		return ConfigError
	case matchesAny(msg, connectionSignatures):
		return ConnectionError
	case matchesAny(msg, querySignatures):
		return QueryError
	case matchesAny(msg, configSignatures):
		return ConfigError
	case matchesAny(msg, ioSignatures):
		return IOError
	default:
		return UnknownError
	}
}

func matchesAny(msg string, signatures []string) bool {
	for _, sig := range signatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}
