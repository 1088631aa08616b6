package source

import (
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
)

var ErrTooLarge = errors.New("program exceeds size limit")

var lineSep = regexp.MustCompile(`\r?\n`)

// Loader reads program files. A file is read once per launch and never
// watched afterwards.
type Loader struct {
	maxBytes int64
}

func NewLoader(maxBytes int64) *Loader {
	return &Loader{maxBytes: maxBytes}
}

func (l *Loader) Load(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if l.maxBytes > 0 {
		r = io.LimitReader(f, l.maxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if l.maxBytes > 0 && int64(len(data)) > l.maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, l.maxBytes)
	}
	return SplitLines(string(data)), nil
}

// SplitLines splits on \n or \r\n and drops trailing empty lines. The result
// always has at least one element.
func SplitLines(content string) []string {
	lines := lineSep.Split(content, -1)
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) == 0 {
		return []string{""}
	}
	return lines
}
