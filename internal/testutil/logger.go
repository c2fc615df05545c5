// Package testutil provides the helpers shared across this module's
// package-level test files.
package testutil

import (
	"testing"

	"github.com/sirupsen/logrus"
)

// testLoggerWriter adapts testing.T.Log to io.Writer, grounded on the
// teacher's common.testLoggerAdapter: strip the trailing newline logrus
// already appends, since t.Log adds its own.
type testLoggerWriter struct {
	t *testing.T
}

func (w *testLoggerWriter) Write(p []byte) (int, error) {
	n := len(p)
	if n > 0 && p[n-1] == '\n' {
		p = p[:n-1]
	}
	w.t.Log(string(p))
	return n, nil
}

// NewTestLogger returns a *logrus.Logger that writes through t.Log, so
// session output interleaves correctly with `go test -v` and survives
// -run filtering without leaking to stderr after the test completes.
func NewTestLogger(t *testing.T) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(&testLoggerWriter{t: t})
	log.SetLevel(logrus.DebugLevel)
	return log
}
