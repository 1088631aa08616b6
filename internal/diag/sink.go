// Package diag writes the adapter's diagnostic trace: one timestamped line per
// inbound or outbound protocol message and per decoding problem.
package diag

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const timeLayout = "2006-01-02 15:04:05.000"

// File is the append-only destination shared by every connection.
type File struct {
	mu     sync.Mutex
	file   io.WriteCloser
	stderr io.Writer
	now    func() time.Time
}

// Open prepares the shared destination. A path that cannot be opened is
// reported once on stderr and the trace continues without a file.
func Open(path string, stderr io.Writer) *File {
	f := &File{stderr: stderr, now: time.Now}
	if path == "" {
		return f
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		f.report(err)
		return f
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		f.report(err)
		return f
	}
	f.file = file
	return f
}

// NewFile wraps arbitrary writers; either may be nil.
func NewFile(w io.WriteCloser, stderr io.Writer, now func() time.Time) *File {
	if now == nil {
		now = time.Now
	}
	return &File{file: w, stderr: stderr, now: now}
}

func (f *File) report(err error) {
	if f.stderr != nil {
		fmt.Fprintf(f.stderr, "DAP LOG ERROR %T: %v\n", err, err)
	}
}

func (f *File) write(line string) string {
	formatted := "[" + f.now().Format(timeLayout) + "] " + line
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stderr != nil {
		_, _ = io.WriteString(f.stderr, formatted+"\n")
	}
	if f.file != nil {
		_, _ = io.WriteString(f.file, formatted+"\n")
	}
	return formatted
}

func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.file == nil {
		return nil
	}
	err := f.file.Close()
	f.file = nil
	return err
}

// Sink is the per-connection view of a File. Lines written with Log may be
// mirrored to the client; lines written with Trace never are.
type Sink struct {
	file     *File
	mirror   func(line string)
	emitting bool
}

func (f *File) Sink() *Sink {
	return &Sink{file: f}
}

// SetMirror installs the hook that forwards formatted lines to the client.
func (s *Sink) SetMirror(fn func(line string)) {
	s.mirror = fn
}

func (s *Sink) Log(format string, args ...any) {
	formatted := s.file.write(fmt.Sprintf(format, args...))
	if s.mirror == nil || s.emitting {
		return
	}
	s.emitting = true
	defer func() { s.emitting = false }()
	s.mirror(formatted)
}

func (s *Sink) Trace(format string, args ...any) {
	s.file.write(fmt.Sprintf(format, args...))
}
