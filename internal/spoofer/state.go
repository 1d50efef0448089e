package spoofer

// State is a step of the session lifecycle.
type State int

const (
	StateInit State = iota
	StateResolving
	StatePoisoning
	StateRestoring
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateResolving:
		return "RESOLVING"
	case StatePoisoning:
		return "POISONING"
	case StateRestoring:
		return "RESTORING"
	case StateStopped:
		return "STOPPED"
	}
	return "UNKNOWN"
}
