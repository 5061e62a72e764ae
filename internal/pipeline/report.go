package pipeline

import (
	"fmt"

	"media-pipeline/internal/mediatypes"
)

// State is the position of a source file in its pipeline run.
type State int

const (
	StateNew State = iota
	StateProbed
	StateMetadataResolved
	StateInstancesGenerated
	StateThumbnailGenerated
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateProbed:
		return "probed"
	case StateMetadataResolved:
		return "metadata_resolved"
	case StateInstancesGenerated:
		return "instances_generated"
	case StateThumbnailGenerated:
		return "thumbnail_generated"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// StageFailure is a non-fatal problem recorded while producing one asset.
type StageFailure struct {
	Stage State
	// Preset names the parameter set, or "thumbnail".
	Preset string
	Err    error
}

func (f StageFailure) String() string {
	return fmt.Sprintf("%s/%s: %v", f.Stage, f.Preset, f.Err)
}

// Report is the outcome of processing one source file.
type Report struct {
	Path  string
	State State
	// FailedStage is the stage that could not be completed when State is
	// StateFailed.
	FailedStage State
	// Skipped is set when existing instances made the run a no-op.
	Skipped   bool
	Metadata  *mediatypes.MediaMetadata
	Instances []mediatypes.DerivedInstance
	Failures  []StageFailure
	Err       error
}

// Outcome returns "done", "skipped" or "failed".
func (r *Report) Outcome() string {
	switch {
	case r.State == StateFailed:
		return "failed"
	case r.Skipped:
		return "skipped"
	default:
		return "done"
	}
}

func (r *Report) advance(s State) {
	r.State = s
}

func (r *Report) fail(stage State, err error) *Report {
	r.State = StateFailed
	r.FailedStage = stage
	r.Err = err
	return r
}

func (r *Report) softFailure(stage State, preset string, err error) {
	r.Failures = append(r.Failures, StageFailure{Stage: stage, Preset: preset, Err: err})
}
