package protocol

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strconv"

	"github.com/google/go-dap"
)

const (
	EventInitialized = "initialized"
	EventStopped     = "stopped"
	EventTerminated  = "terminated"
	EventOutput      = "output"

	ReasonEntry      = "entry"
	ReasonBreakpoint = "breakpoint"
	ReasonStep       = "step"
	ReasonPause      = "pause"

	ThreadID        = 1
	ThreadName      = "thread-1"
	FrameID         = 1
	FrameName       = "main"
	LocalsReference = 1
	LocalsName      = "Locals"

	// UnnamedSource names the stack frame source before any program is launched.
	UnnamedSource = "program"
)

// Capabilities lists every flag explicitly, including the false ones, so
// clients never fall back to their own defaults.
type Capabilities struct {
	SupportsConfigurationDoneRequest bool `json:"supportsConfigurationDoneRequest"`
	SupportsTerminateRequest         bool `json:"supportsTerminateRequest"`
	SupportsSetVariable              bool `json:"supportsSetVariable"`
	SupportsStepBack                 bool `json:"supportsStepBack"`
	SupportsDataBreakpoints          bool `json:"supportsDataBreakpoints"`
	SupportsEvaluateForHovers        bool `json:"supportsEvaluateForHovers"`
}

func DefaultCapabilities() Capabilities {
	return Capabilities{
		SupportsConfigurationDoneRequest: true,
		SupportsTerminateRequest:         true,
	}
}

type LaunchArguments struct {
	Program     string          `json:"program"`
	StopOnEntry json.RawMessage `json:"stopOnEntry,omitempty"`
}

// StopsOnEntry is true unless the client sent the literal stopOnEntry:false.
func (a LaunchArguments) StopsOnEntry() bool {
	return string(bytes.TrimSpace(a.StopOnEntry)) != "false"
}

type SetBreakpointsArguments struct {
	Source      *dap.Source        `json:"source,omitempty"`
	Breakpoints []SourceBreakpoint `json:"breakpoints,omitempty"`
}

// SourceBreakpoint keeps the line exactly as the client wrote it; a value
// that is not a positive integer is reported back unverified.
type SourceBreakpoint struct {
	Line json.RawMessage `json:"line"`
}

type Breakpoint struct {
	Verified bool            `json:"verified"`
	Line     json.RawMessage `json:"line"`
}

type SetBreakpointsResponseBody struct {
	Breakpoints []Breakpoint `json:"breakpoints"`
}

func StoppedBody(reason string) dap.StoppedEventBody {
	return dap.StoppedEventBody{
		Reason:            reason,
		ThreadId:          ThreadID,
		AllThreadsStopped: true,
	}
}

func OutputBody(line string) dap.OutputEventBody {
	return dap.OutputEventBody{
		Category: "stdout",
		Output:   line + "\n",
	}
}

func ThreadsBody() dap.ThreadsResponseBody {
	return dap.ThreadsResponseBody{
		Threads: []dap.Thread{{Id: ThreadID, Name: ThreadName}},
	}
}

func ScopesBody() dap.ScopesResponseBody {
	return dap.ScopesResponseBody{
		Scopes: []dap.Scope{{Name: LocalsName, VariablesReference: LocalsReference, Expensive: false}},
	}
}

// LineNumber returns the submitted line when it is a JSON integer.
func (b SourceBreakpoint) LineNumber() (int, bool) {
	if len(b.Line) == 0 || string(b.Line) == "null" {
		return 0, false
	}
	var n int
	if err := json.Unmarshal(b.Line, &n); err != nil {
		return 0, false
	}
	return n, true
}

// FrameSource always carries path, empty before any launch. dap.Source
// omits an empty path.
type FrameSource struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

type StackFrame struct {
	Id     int         `json:"id"`
	Name   string      `json:"name"`
	Source FrameSource `json:"source"`
	Line   int         `json:"line"`
	Column int         `json:"column"`
}

type StackTraceResponseBody struct {
	StackFrames []StackFrame `json:"stackFrames"`
	TotalFrames int          `json:"totalFrames"`
}

func StackTraceBody(line int, programPath string) StackTraceResponseBody {
	name := UnnamedSource
	if programPath != "" {
		name = filepath.Base(programPath)
	}
	return StackTraceResponseBody{
		StackFrames: []StackFrame{{
			Id:     FrameID,
			Name:   FrameName,
			Line:   line,
			Column: 1,
			Source: FrameSource{Name: name, Path: programPath},
		}},
		TotalFrames: 1,
	}
}

// LocalsBody exposes the cursor as two synthetic variables. The text is shown
// as a quoted literal.
func LocalsBody(line int, text string) dap.VariablesResponseBody {
	return dap.VariablesResponseBody{
		Variables: []dap.Variable{
			{Name: "line", Value: strconv.Itoa(line), VariablesReference: 0},
			{Name: "text", Value: strconv.Quote(text), VariablesReference: 0},
		},
	}
}

func NoVariablesBody() dap.VariablesResponseBody {
	return dap.VariablesResponseBody{Variables: []dap.Variable{}}
}
