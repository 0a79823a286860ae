package connection

import "fmt"

// State is a Manager lifecycle stage
type State int

const (
	StateDisconnected State = iota
	StateSearching
	StateConnecting
	StateDiscovering
	StateConnected
)

var stateNames = []string{"disconnected", "searching", "connecting", "discovering", "connected"}

func (s State) String() string {
	if int(s) >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Human-readable status texts
const (
	TextNotConnected = "Not connected"
	TextSearching    = "Searching for device..."
	TextConnecting   = "Connecting..."
	TextDiscovering  = "Discovering characteristics..."
	TextConnected    = "Connected"
	TextDisconnected = "Disconnected"
	TextLinkLost     = "Link lost"
)

// Status is the consumer-visible connection condition. Err is set when the last
// transition was caused by a failure.
type Status struct {
	State State
	Text  string
	Err   error
}

func (s Status) String() string {
	return s.Text
}

func errorStatus(err error) Status {
	return Status{State: StateDisconnected, Text: "Error: " + err.Error(), Err: err}
}
