// Package logging wraps zerolog with a console writer, caller info and a
// unix time format, extended with a short
// base58 run-id used to name each run's log file so repeated launches of
// gomotion under the same inifile don't clobber one another's traces.
package logging

import (
	"crypto/rand"
	"fmt"
	"io"
	"os"

	"github.com/mr-tron/base58/base58"
	"github.com/rs/zerolog"
)

func init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
}

// RunID returns a short base58-encoded random identifier for this process's
// run, used to name the log file backing the §3 per-loop log buffer.
func RunID() string {
	var b [6]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "00000000"
	}
	return base58.Encode(b[:])
}

// New creates a console logger writing to w (os.Stderr in the CLI, a
// per-run file under the launcher), with Caller() attached the way the
// teacher's Log var is built.
func New(w io.Writer) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: w}).With().Timestamp().Caller().Logger()
}

// OpenRunLog creates (or truncates) dir/gomotion-<runID>.log and returns a
// logger writing to it alongside the run id it was named with.
func OpenRunLog(dir string) (zerolog.Logger, string, error) {
	runID := RunID()
	path := fmt.Sprintf("%s/gomotion-%s.log", dir, runID)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return zerolog.Logger{}, "", fmt.Errorf("logging: open %s: %w", path, err)
	}
	return New(f), runID, nil
}
