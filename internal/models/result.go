package models

import (
	"time"

	"niftiverify/pkg/nifti"
	"niftiverify/pkg/summary"
)

// Fixture is a named in-memory volume fed to a round trip
type Fixture struct {
	// Name identifies the fixture and becomes its file name stem
	Name string

	// Volume is the original array
	Volume *nifti.VoxelArray
}

// Stage names the step of a round trip
type Stage string

const (
	StageRead    Stage = "read"
	StageDecode  Stage = "decode"
	StageEncode  Stage = "encode"
	StageWrite   Stage = "write"
	StageReload  Stage = "reload"
	StageCompare Stage = "compare"
	StageDone    Stage = "done"
)

// Result records the outcome of one round trip
type Result struct {
	// Name is the fixture name or the input file's base name
	Name string `json:"name"`

	// Source is the input path; empty for in-memory fixtures
	Source string `json:"source,omitempty"`

	// Output is the path the re-encoded volume was written to
	Output string `json:"output,omitempty"`

	// Shape and Kind describe the original volume when it could be decoded
	Shape []int             `json:"shape,omitempty"`
	Kind  nifti.ElementKind `json:"kind,omitempty"`

	// Bytes is the size of the encoded stream
	Bytes int `json:"bytes"`

	// Report compares the original volume with the reloaded one
	Report *nifti.CompareReport `json:"report,omitempty"`

	// Fidelity measures how far the values drifted when the exact comparison
	// failed on an otherwise compatible volume
	Fidelity *summary.Fidelity `json:"fidelity,omitempty"`

	// BytesIdentical is set when the written stream equals the source stream
	BytesIdentical bool `json:"bytesIdentical"`

	// Stage is the last step reached; StageDone on success
	Stage Stage `json:"stage"`

	// ErrorKind classifies Err
	ErrorKind nifti.ErrorKind `json:"errorKind,omitempty"`

	// Err is the failure, if any
	Err error `json:"-"`

	// Duration is the wall time of the round trip
	Duration time.Duration `json:"duration"`
}

// OK reports whether the round trip completed and reproduced the original
func (r Result) OK() bool {
	return r.Err == nil && r.Report != nil && r.Report.Identical()
}

// Fail records err at stage and returns the updated result
func (r Result) Fail(stage Stage, err error) Result {
	r.Stage = stage
	r.Err = err
	r.ErrorKind = nifti.KindOf(err)
	return r
}

// RunSummary aggregates the results of one batch run
type RunSummary struct {
	RunID    string        `json:"runId"`
	Total    int           `json:"total"`
	Passed   int           `json:"passed"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration"`
}

// Summarize counts passed and failed results
func Summarize(runID string, results []Result, elapsed time.Duration) RunSummary {
	s := RunSummary{RunID: runID, Total: len(results), Duration: elapsed}
	for _, r := range results {
		if r.OK() {
			s.Passed++
		} else {
			s.Failed++
		}
	}
	return s
}
