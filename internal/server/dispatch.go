package server

import (
	"github.com/google/go-dap"

	"github.com/samiralibabic/textdap/internal/protocol"
	"github.com/samiralibabic/textdap/internal/session"
)

type handlerFunc func(*Conn, protocol.Request) error

// handlers covers every known command. CommandUnknown, and anything missing
// from the table, gets an empty success response.
var handlers = map[protocol.Command]handlerFunc{
	protocol.CommandUnknown:                 (*Conn).acknowledge,
	protocol.CommandInitialize:              (*Conn).initialize,
	protocol.CommandLaunch:                  (*Conn).launch,
	protocol.CommandSetBreakpoints:          (*Conn).setBreakpoints,
	protocol.CommandSetExceptionBreakpoints: (*Conn).acknowledge,
	protocol.CommandConfigurationDone:       (*Conn).configurationDone,
	protocol.CommandThreads:                 (*Conn).threads,
	protocol.CommandStackTrace:              (*Conn).stackTrace,
	protocol.CommandScopes:                  (*Conn).scopes,
	protocol.CommandVariables:               (*Conn).variables,
	protocol.CommandContinue:                (*Conn).continueRequest,
	protocol.CommandNext:                    (*Conn).step,
	protocol.CommandStepIn:                  (*Conn).step,
	protocol.CommandStepOut:                 (*Conn).stepOut,
	protocol.CommandPause:                   (*Conn).pause,
	protocol.CommandTerminate:               (*Conn).terminate,
	protocol.CommandDisconnect:              (*Conn).terminate,
}

// Handle dispatches one inbound message. Non-request messages are ignored.
// The returned error is a write failure on the output stream.
func (c *Conn) Handle(req protocol.Request) error {
	if !req.IsRequest() {
		return nil
	}
	h, ok := handlers[protocol.ParseCommand(req.Command)]
	if !ok {
		h = (*Conn).acknowledge
	}
	return h(c, req)
}

func (c *Conn) acknowledge(req protocol.Request) error {
	return c.respond(req, nil)
}

func (c *Conn) invalidArguments(req protocol.Request, err error) error {
	return c.fail(req, "Invalid arguments: "+err.Error())
}

func (c *Conn) initialize(req protocol.Request) error {
	c.sess.MarkInitialized()
	if err := c.respond(req, protocol.DefaultCapabilities()); err != nil {
		return err
	}
	return c.event(protocol.EventInitialized, nil)
}

func (c *Conn) launch(req protocol.Request) error {
	args, err := protocol.DecodeArguments[protocol.LaunchArguments](req.Arguments)
	if err != nil {
		return c.invalidArguments(req, err)
	}
	if args.Program == "" {
		return c.fail(req, `Missing "program" path`)
	}
	c.sess.BeginLaunch(args.Program, args.StopsOnEntry())
	lines, err := c.svc.loadProgram(args.Program)
	if err != nil {
		return c.fail(req, "Cannot read program: "+err.Error())
	}
	c.sess.Load(lines)
	return c.respond(req, nil)
}

func (c *Conn) setBreakpoints(req protocol.Request) error {
	args, err := protocol.DecodeArguments[protocol.SetBreakpointsArguments](req.Arguments)
	if err != nil {
		return c.invalidArguments(req, err)
	}
	path := c.sess.ProgramPath()
	if args.Source != nil && args.Source.Path != "" {
		path = args.Source.Path
	}

	reported := make([]protocol.Breakpoint, 0, len(args.Breakpoints))
	valid := make([]int, 0, len(args.Breakpoints))
	for _, bp := range args.Breakpoints {
		line, ok := bp.LineNumber()
		ok = ok && c.sess.ValidLine(line)
		if ok {
			valid = append(valid, line)
		}
		reported = append(reported, protocol.Breakpoint{Verified: ok, Line: bp.Line})
	}
	c.sess.ReplaceBreakpoints(path, valid)
	return c.respond(req, protocol.SetBreakpointsResponseBody{Breakpoints: reported})
}

func (c *Conn) configurationDone(req protocol.Request) error {
	if err := c.respond(req, nil); err != nil {
		return err
	}
	if c.sess.StopOnEntry() {
		return c.stopped(protocol.ReasonEntry)
	}
	return c.apply(c.sess.Continue(true))
}

func (c *Conn) threads(req protocol.Request) error {
	return c.respond(req, protocol.ThreadsBody())
}

func (c *Conn) stackTrace(req protocol.Request) error {
	return c.respond(req, protocol.StackTraceBody(c.sess.CurrentLine(), c.sess.ProgramPath()))
}

func (c *Conn) scopes(req protocol.Request) error {
	return c.respond(req, protocol.ScopesBody())
}

func (c *Conn) variables(req protocol.Request) error {
	args, err := protocol.DecodeArguments[dap.VariablesArguments](req.Arguments)
	if err != nil {
		return c.invalidArguments(req, err)
	}
	if args.VariablesReference != protocol.LocalsReference {
		return c.respond(req, protocol.NoVariablesBody())
	}
	return c.respond(req, protocol.LocalsBody(c.sess.CurrentLine(), c.sess.CurrentText()))
}

func (c *Conn) continueRequest(req protocol.Request) error {
	body := dap.ContinueResponseBody{AllThreadsContinued: true}
	return c.respondThen(req, body, func() session.Outcome { return c.sess.Continue(false) })
}

func (c *Conn) step(req protocol.Request) error {
	return c.respondThen(req, nil, c.sess.Step)
}

func (c *Conn) stepOut(req protocol.Request) error {
	return c.respondThen(req, nil, c.sess.StepOut)
}

func (c *Conn) pause(req protocol.Request) error {
	if err := c.respond(req, nil); err != nil {
		return err
	}
	return c.stopped(protocol.ReasonPause)
}

func (c *Conn) terminate(req protocol.Request) error {
	return c.respondThen(req, nil, c.sess.Terminate)
}
