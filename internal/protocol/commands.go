package protocol

type Command int

const (
	CommandUnknown Command = iota
	CommandInitialize
	CommandLaunch
	CommandSetBreakpoints
	CommandSetExceptionBreakpoints
	CommandConfigurationDone
	CommandThreads
	CommandStackTrace
	CommandScopes
	CommandVariables
	CommandContinue
	CommandNext
	CommandStepIn
	CommandStepOut
	CommandPause
	CommandTerminate
	CommandDisconnect
)

var commandNames = map[string]Command{
	"initialize":              CommandInitialize,
	"launch":                  CommandLaunch,
	"setBreakpoints":          CommandSetBreakpoints,
	"setExceptionBreakpoints": CommandSetExceptionBreakpoints,
	"configurationDone":       CommandConfigurationDone,
	"threads":                 CommandThreads,
	"stackTrace":              CommandStackTrace,
	"scopes":                  CommandScopes,
	"variables":               CommandVariables,
	"continue":                CommandContinue,
	"next":                    CommandNext,
	"stepIn":                  CommandStepIn,
	"stepOut":                 CommandStepOut,
	"pause":                   CommandPause,
	"terminate":               CommandTerminate,
	"disconnect":              CommandDisconnect,
}

// ParseCommand resolves a wire command name. Matching is case-sensitive and
// anything not in the table is CommandUnknown.
func ParseCommand(name string) Command {
	if c, ok := commandNames[name]; ok {
		return c
	}
	return CommandUnknown
}

func (c Command) String() string {
	for name, cmd := range commandNames {
		if cmd == c {
			return name
		}
	}
	return "unknown"
}
