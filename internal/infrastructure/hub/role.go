package hub

// Role identifies the direction a connection plays on its channel. It is
// assigned at registration and never changes afterwards.
type Role int

const (
	// RoleBroadcaster is the single message source of a channel.
	RoleBroadcaster Role = iota
	// RoleListener receives fan-out copies of the broadcaster's messages.
	RoleListener
)

func (r Role) String() string {
	switch r {
	case RoleBroadcaster:
		return "broadcaster"
	case RoleListener:
		return "listener"
	default:
		return "unknown"
	}
}

// State models the connection lifecycle:
//
//	Connecting -> Open -> Draining -> Closed
//	Connecting -> Closed (classification failure)
//	Open -> Closed (forced abort)
//
// Closed is terminal; no transition leaves it.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateDraining
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	default:
		return "invalid"
	}
}

// validTransition reports whether a connection may move from one state to
// another. Self transitions are not valid.
func validTransition(from, to State) bool {
	switch from {
	case StateConnecting:
		return to == StateOpen || to == StateClosed
	case StateOpen:
		return to == StateDraining || to == StateClosed
	case StateDraining:
		return to == StateClosed
	default:
		return false
	}
}
