package protocol

// Handler runs one serial command. body is the command's window of the
// dispatcher buffer, already sized to the requested length.
type Handler func(d *Dispatcher, body []byte) error

// Command is one registered serial command
type Command struct {
	Code    byte
	Name    string
	Handler Handler
}

// Registry maps command bytes to handlers. It is filled once at startup
// and only read by the dispatch loop, so it takes no locks.
type Registry struct {
	commands [256]*Command
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds or replaces the handler for code
func (r *Registry) Register(code byte, name string, handler Handler) {
	r.commands[code] = &Command{
		Code:    code,
		Name:    name,
		Handler: handler,
	}
}

// Lookup returns the command registered for code
func (r *Registry) Lookup(code byte) (*Command, bool) {
	cmd := r.commands[code]
	return cmd, cmd != nil
}

// Commands returns the registered commands ordered by code
func (r *Registry) Commands() []*Command {
	var out []*Command
	for _, cmd := range r.commands {
		if cmd != nil {
			out = append(out, cmd)
		}
	}
	return out
}

// NewBridgeRegistry returns the standard bridge command set. The console
// command is only present when console is true.
func NewBridgeRegistry(console bool) *Registry {
	r := NewRegistry()
	r.Register(CmdBufferSize, "buffer_size", handleBufferSize)
	r.Register(CmdEcho, "echo", handleEcho)
	r.Register(CmdRead, "read", handleRead)
	r.Register(CmdWrite, "write", handleWrite)
	r.Register(CmdProgram, "program", handleProgram)
	if console {
		r.Register(CmdConsole, "console", handleConsole)
	}
	return r
}
