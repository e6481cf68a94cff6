package trialkit

import (
	"io"
	"os"

	"github.com/pilosa/pilosa/logger"
	"github.com/pkg/errors"
)

// OpenLogger returns a logger writing to the file at path, or to stderr if
// path is empty. Debug output is only written when verbose is set. The
// returned closer must be called once logging is done; it is a no-op for
// stderr.
func OpenLogger(path string, verbose bool) (Logger, io.Closer, error) {
	var out io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}
	if path != "" {
		f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			return nil, nil, errors.Wrap(err, "opening log file")
		}
		out, closer = f, f
	}
	if verbose {
		return logger.NewVerboseLogger(out), closer, nil
	}
	return logger.NewStandardLogger(out), closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
