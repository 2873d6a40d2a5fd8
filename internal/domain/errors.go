package domain

// UserError marks a mistake in the command itself. Reply is sent to the
// chat verbatim; nothing is logged as a failure.
type UserError struct {
	Reply string
}

func (e *UserError) Error() string {
	return e.Reply
}

// TransportError marks a network, filesystem, or provider failure while
// executing a command. Reply is the generic message for the chat; Err is
// the underlying cause for the logs.
type TransportError struct {
	Reply string
	Err   error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Reply
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
