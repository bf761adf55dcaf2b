package main

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/adamwoolhether/easyhttp/handle"
)

// output writes the received data to a file. New files are written to a
// temporary file renamed into place once the transfer succeeded; resumed
// files are appended to directly.
type output struct {
	file   *os.File
	dest   string
	offset int64
	temp   bool
	logger *slog.Logger
}

// openOutput returns nil when the data goes to stdout.
func openOutput(path string, resume bool, logger *slog.Logger) (*output, error) {
	if path == "" {
		if resume {
			return nil, errors.New("resuming needs an output file")
		}
		return nil, nil
	}

	if resume {
		file, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening output file: %w", err)
		}
		info, err := file.Stat()
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("stat output file: %w", err)
		}
		return &output{file: file, dest: path, offset: info.Size(), logger: logger}, nil
	}

	file, err := os.CreateTemp(filepath.Dir(path), ".easyhttp-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}

	return &output{file: file, dest: path, temp: true, logger: logger}, nil
}

func (o *output) Write(data []byte) (int, error) {
	return o.file.Write(data)
}

// commit moves a completed download into place.
func (o *output) commit() error {
	if o == nil {
		return nil
	}

	if o.temp {
		if err := o.file.Sync(); err != nil {
			o.discard()
			return fmt.Errorf("syncing temp file: %w", err)
		}
	}
	if err := o.file.Close(); err != nil {
		o.discard()
		return fmt.Errorf("closing output file: %w", err)
	}
	if o.temp {
		if err := os.Rename(o.file.Name(), o.dest); err != nil {
			o.discard()
			return fmt.Errorf("renaming temp file: %w", err)
		}
	}

	return nil
}

// discard closes the file, removing it when it was a temporary one.
func (o *output) discard() {
	if o == nil {
		return
	}

	if err := o.file.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		o.logger.Error("closing output file", "error", err)
	}
	if o.temp {
		if err := os.Remove(o.file.Name()); err != nil && !errors.Is(err, os.ErrNotExist) {
			o.logger.Error("failed to remove temp file", "error", err)
		}
	}
}

// verbosePrinter returns a debug callback printing connection details
// prefixed with "*", request headers with ">" and response headers
// with "<".
func verbosePrinter(w io.Writer) handle.DebugFunc {
	var mu sync.Mutex
	bw := bufio.NewWriter(w)

	return func(kind handle.InfoType, data []byte) {
		var prefix string
		switch kind {
		case handle.InfoText:
			prefix = "* "
		case handle.InfoHeaderOut:
			prefix = "> "
		case handle.InfoHeaderIn:
			prefix = "< "
		default:
			return
		}

		mu.Lock()
		defer mu.Unlock()

		for line := range bytes.Lines(data) {
			bw.WriteString(prefix)
			bw.Write(bytes.TrimRight(line, "\r\n"))
			bw.WriteByte('\n')
		}
		bw.Flush()
	}
}
