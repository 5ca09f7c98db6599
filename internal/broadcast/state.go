package broadcast

import "github.com/ptrckSTL/BoomOrganized/internal/models"

// WorkState is the closed set of states a batch job can be in. The only
// implementations live in this package, so a type switch over them is
// exhaustive.
type WorkState interface {
	workState()
	Name() string
}

// Uninitiated means no batch job has run since the last reset
type Uninitiated struct{}

// Loading covers the gap between job start and the first send
type Loading struct{}

// Paused is reached only by explicit user cancellation mid-run
type Paused struct{}

// Executing carries the label of the recipient currently being processed
type Executing struct {
	Contact string
}

// Complete carries the final counts of a finished run; reachable only
// when no pending rows remain
type Complete struct {
	Counts models.RecipientCounts
}

func (Uninitiated) workState() {}
func (Loading) workState()     {}
func (Paused) workState()      {}
func (Executing) workState()   {}
func (Complete) workState()    {}

func (Uninitiated) Name() string { return "uninitiated" }
func (Loading) Name() string     { return "loading" }
func (Paused) Name() string      { return "paused" }
func (Executing) Name() string   { return "executing" }
func (Complete) Name() string    { return "complete" }

// Status is the combined view the broadcaster emits: the job's last
// broadcast state plus the store's live counts.
type Status struct {
	State  WorkState              `json:"-"`
	Counts models.RecipientCounts `json:"counts"`
}

// Equal is structural equality on the merged view; the broadcaster uses
// it to suppress duplicate emissions. All WorkState implementations are
// comparable structs, so interface comparison is value comparison.
func (s Status) Equal(other Status) bool {
	return s.State == other.State && s.Counts == other.Counts
}
