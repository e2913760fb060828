package gridplan

// Command represents a discrete application operation with its specific
// options. Commands are produced by Parse and executed by the matching
// method on [App].
type Command interface {
	// Name returns the command identifier used for routing.
	Name() string
}

// RunCommand starts the HTTP server. All of its configuration currently
// lives in [Config]; the struct exists so run-specific options have a
// place to land.
type RunCommand struct{}

func (c *RunCommand) Name() string { return "run" }
