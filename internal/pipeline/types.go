package pipeline

import "time"

// Stage is one state of a generation run. Every stage finishes over all
// declarations before the next one starts.
type Stage string

const (
	StageIngesting         Stage = "ingesting"
	StageGraphBuilt        Stage = "graph"
	StageLayoutResolved    Stage = "layout"
	StageConstantsResolved Stage = "constants"
	StageNamesAssigned     Stage = "names"
	StageEmitted           Stage = "emit"
)

// Stages lists the stages in execution order.
var Stages = []Stage{
	StageIngesting,
	StageGraphBuilt,
	StageLayoutResolved,
	StageConstantsResolved,
	StageNamesAssigned,
	StageEmitted,
}

// Status captures progress state within a stage.
type Status string

const (
	// StatusQueued indicates the run is waiting to start.
	StatusQueued Status = "queued"
	// StatusWorking indicates the run is inside the stage.
	StatusWorking Status = "working"
	// StatusDone indicates the run finished.
	StatusDone Status = "done"
	// StatusError indicates the run stopped with an error.
	StatusError Status = "error"
)

// Event reports progress of one run, identified by its request name.
type Event struct {
	Run     string
	Stage   Stage
	Status  Status
	Err     error
	Elapsed time.Duration
}

// ProgressSink consumes progress events.
type ProgressSink interface {
	OnEvent(Event)
}

// Timings holds stage durations.
type Timings struct {
	stages map[Stage]time.Duration
}

func (t *Timings) ensure() {
	if t.stages == nil {
		t.stages = make(map[Stage]time.Duration)
	}
}

// Set stores a duration for the given stage.
func (t *Timings) Set(stage Stage, dur time.Duration) {
	if t == nil {
		return
	}
	t.ensure()
	t.stages[stage] = dur
}

// Has reports whether a duration for stage is recorded.
func (t Timings) Has(stage Stage) bool {
	if t.stages == nil {
		return false
	}
	_, ok := t.stages[stage]
	return ok
}

// Duration returns the recorded duration for stage.
func (t Timings) Duration(stage Stage) time.Duration {
	if t.stages == nil {
		return 0
	}
	return t.stages[stage]
}

// Sum returns the sum of durations across the provided stages; with no
// arguments it sums every stage.
func (t Timings) Sum(stages ...Stage) time.Duration {
	if t.stages == nil {
		return 0
	}
	if len(stages) == 0 {
		stages = Stages
	}
	var total time.Duration
	for _, stage := range stages {
		total += t.stages[stage]
	}
	return total
}
