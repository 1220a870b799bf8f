package bridge

import (
	"errors"
	"fmt"

	"spacebot/internal/spaceapi"
	"spacebot/internal/transport"
)

// ErrOpenUnknown is returned when a payload carries a state without "open".
var ErrOpenUnknown = errors.New("state is present but state.open is missing")

// Render turns a status into the chat message announcing it.
func Render(st spaceapi.Status) (transport.Message, error) {
	if st.State == nil {
		return transport.Message{Body: fmt.Sprintf("I have no idea if %s is open or not...", st.Space)}, nil
	}
	if st.State.Open == nil {
		return transport.Message{}, fmt.Errorf("render %q: %w", st.Space, ErrOpenUnknown)
	}

	word := "closed"
	if *st.State.Open {
		word = "open"
	}
	body := fmt.Sprintf("%s is **%s**", st.Space, word)
	if st.State.Message != nil {
		body += fmt.Sprintf(" (%s)", *st.State.Message)
	}
	return transport.Message{Body: body, Markdown: true}, nil
}

// FailureMessage is the in-chat apology for a failed query.
func FailureMessage(err error) transport.Message {
	return transport.Message{Body: fmt.Sprintf("Something has gone wrong... (%v)", err)}
}
