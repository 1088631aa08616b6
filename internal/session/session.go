// Package session holds the simulated program state: the loaded lines, the
// cursor, breakpoints per source path and the termination flag. Operations
// that move the cursor return an Outcome describing the event to emit; the
// session itself never writes to the wire.
package session

import (
	"sort"
)

type OutcomeKind int

const (
	// OutcomeNone means nothing is emitted.
	OutcomeNone OutcomeKind = iota
	OutcomeStopped
	OutcomeTerminated
)

type Outcome struct {
	Kind   OutcomeKind
	Reason string
}

const (
	reasonBreakpoint = "breakpoint"
	reasonStep       = "step"
)

type Session struct {
	ID string

	programPath string
	lines       []string
	currentLine int
	breakpoints map[string]map[int]struct{}
	initialized bool
	stopOnEntry bool
	terminated  bool
}

func New(id string) *Session {
	return &Session{
		ID:          id,
		currentLine: 1,
		breakpoints: map[string]map[int]struct{}{},
		stopOnEntry: true,
	}
}

func (s *Session) ProgramPath() string { return s.programPath }
func (s *Session) CurrentLine() int    { return s.currentLine }
func (s *Session) LineCount() int      { return len(s.lines) }
func (s *Session) Initialized() bool   { return s.initialized }
func (s *Session) StopOnEntry() bool   { return s.stopOnEntry }
func (s *Session) Terminated() bool    { return s.terminated }

func (s *Session) MarkInitialized() {
	s.initialized = true
}

// CurrentText returns the text of the line under the cursor, or "" when no
// such line exists.
func (s *Session) CurrentText() string {
	if s.currentLine < 1 || s.currentLine > len(s.lines) {
		return ""
	}
	return s.lines[s.currentLine-1]
}

// BeginLaunch records the launch parameters before the source is read, so a
// failed read still leaves programPath set and terminated cleared.
func (s *Session) BeginLaunch(path string, stopOnEntry bool) {
	s.programPath = path
	s.stopOnEntry = stopOnEntry
	s.terminated = false
}

// Load installs freshly read lines and resets the cursor to the first line.
// An empty slice is stored as a single empty line. Stored breakpoints past
// the new last line are dropped.
func (s *Session) Load(lines []string) {
	if len(lines) == 0 {
		lines = []string{""}
	}
	s.lines = lines
	s.currentLine = 1
	for _, set := range s.breakpoints {
		for l := range set {
			if !s.ValidLine(l) {
				delete(set, l)
			}
		}
	}
}

// breakpointSet returns the set for path, inserting an empty one on first
// reference.
func (s *Session) breakpointSet(path string) map[int]struct{} {
	set, ok := s.breakpoints[path]
	if !ok {
		set = map[int]struct{}{}
		s.breakpoints[path] = set
	}
	return set
}

// ValidLine reports whether line is a usable breakpoint for the loaded program.
func (s *Session) ValidLine(line int) bool {
	return line >= 1 && line <= len(s.lines)
}

// ReplaceBreakpoints swaps the set stored for path with the valid subset of
// lines. An empty path stores nothing.
func (s *Session) ReplaceBreakpoints(path string, lines []int) {
	if path == "" {
		return
	}
	set := s.breakpointSet(path)
	clear(set)
	for _, l := range lines {
		if s.ValidLine(l) {
			set[l] = struct{}{}
		}
	}
}

// Breakpoints returns the stored lines for path in ascending order.
func (s *Session) Breakpoints(path string) []int {
	set := s.breakpointSet(path)
	out := make([]int, 0, len(set))
	for l := range set {
		out = append(out, l)
	}
	sort.Ints(out)
	return out
}

func (s *Session) lastLine() int {
	return max(1, len(s.lines))
}

func (s *Session) running() bool {
	return s.programPath != "" && !s.terminated
}

// Continue runs to the first breakpoint at or after the start line. Without
// one the program runs off the end and terminates on its last line.
func (s *Session) Continue(includeCurrent bool) Outcome {
	if !s.running() {
		return Outcome{}
	}
	start := s.currentLine + 1
	if includeCurrent {
		start = s.currentLine
	}
	for _, line := range s.Breakpoints(s.programPath) {
		if line >= start && s.ValidLine(line) {
			s.currentLine = line
			return Outcome{Kind: OutcomeStopped, Reason: reasonBreakpoint}
		}
	}
	s.currentLine = s.lastLine()
	return s.Terminate()
}

// Step advances exactly one line, ignoring breakpoints. On the last line it
// terminates instead.
func (s *Session) Step() Outcome {
	if !s.running() {
		return Outcome{}
	}
	if s.currentLine >= len(s.lines) {
		return s.Terminate()
	}
	s.currentLine++
	return Outcome{Kind: OutcomeStopped, Reason: reasonStep}
}

// StepOut has no frames to leave, so it jumps to the end and terminates.
func (s *Session) StepOut() Outcome {
	s.currentLine = s.lastLine()
	return s.Terminate()
}

// Terminate flips the terminated flag once. Later calls return OutcomeNone so
// the terminated event is emitted at most once.
func (s *Session) Terminate() Outcome {
	if s.terminated {
		return Outcome{}
	}
	s.terminated = true
	return Outcome{Kind: OutcomeTerminated}
}
