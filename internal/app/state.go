package app

// State is the Frame Driver's lifecycle state.
type State int

const (
	// Idle means no audio is held and no frame loop runs.
	Idle State = iota
	// Capturing means a stream and analysis session are open and frames are scheduled.
	Capturing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Capturing:
		return "capturing"
	default:
		return "unknown"
	}
}
