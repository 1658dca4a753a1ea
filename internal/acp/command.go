package acp

// Command is an instruction sent to a running adapter over its command
// channel. Closing the channel shuts the adapter down.
type Command interface {
	isCommand()
}

// UserPrompt submits a prompt for the current session. Prompts arriving
// before the session is ready are queued and flushed in submission order.
type UserPrompt struct {
	Text string
}

// CancelPrompt asks the agent to cancel the in-flight turn. A no-op when no
// session exists yet.
type CancelPrompt struct{}

// SetModelResult is delivered on the one-shot reply channel of a SetModel
// command.
type SetModelResult struct {
	// ModelID is the model the agent reports as active after the switch.
	ModelID string
	Err     error
}

// SetModel switches the session's model via session/set_model. The reply
// channel receives exactly one result; callers should buffer it and apply
// their own timeout.
type SetModel struct {
	Model string
	Reply chan<- SetModelResult
}

func (UserPrompt) isCommand()   {}
func (CancelPrompt) isCommand() {}
func (SetModel) isCommand()     {}
