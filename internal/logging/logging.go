// Package logging builds the diagnostic logger. Diagnostics are
// human-readable lines on stderr; every line passes through the redaction
// filter so no caller can leak credentials by accident.
package logging

import (
	"io"

	"github.com/fatih/color"
	"github.com/rs/zerolog"

	"github.com/EvilBit-Labs/gold-digger/internal/redact"
)

// New returns the diagnostic logger writing to out (normally os.Stderr).
// Verbosity maps to levels: --quiet keeps warnings and errors (security
// warnings are mandatory and not suppressible), the default shows info, and
// --verbose adds debug detail such as the resolved cause chain.
func New(out io.Writer, verbose, quiet bool) zerolog.Logger {
	level := zerolog.InfoLevel
	switch {
	case verbose:
		level = zerolog.DebugLevel
	case quiet:
		level = zerolog.WarnLevel
	}

	console := zerolog.ConsoleWriter{
		Out:          redactingWriter{out},
		NoColor:      color.NoColor,
		PartsExclude: []string{zerolog.TimestampFieldName},
	}
	return zerolog.New(console).Level(level)
}

// redactingWriter scrubs secrets from every emitted line. It reports the
// original length on success so the wrapped writer never appears short.
type redactingWriter struct {
	w io.Writer
}

func (rw redactingWriter) Write(p []byte) (int, error) {
	if _, err := io.WriteString(rw.w, redact.Redact(string(p))); err != nil {
		return 0, err
	}
	return len(p), nil
}
