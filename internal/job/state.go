package job

// RunState is the runner's lifecycle state. Running may be re-entered
// from Cancelled (resume) or after Completed (new batch), forming a
// loop rather than a strict DAG.
type RunState int

const (
	Idle RunState = iota
	Running
	Completed
	Cancelled
)

func (s RunState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// canStart guards the transition into Running
func (s RunState) canStart() bool {
	return s != Running
}

// canCancel guards the transition into Cancelled; cancelling anything
// but an active run is not representable.
func (s RunState) canCancel() bool {
	return s == Running
}
