package app

import (
	"errors"

	"github.com/MrWong99/audioflow/pkg/pipeline"
)

// Report summarises a batch run.
type Report struct {
	Results []pipeline.Result

	// Cancelled is the number of inputs left unprocessed after an interrupt.
	Cancelled int
}

// Failed returns the results of inputs with at least one stage failure.
func (r *Report) Failed() []pipeline.Result {
	var out []pipeline.Result
	for _, res := range r.Results {
		if !res.OK() {
			out = append(out, res)
		}
	}
	return out
}

// OK reports whether every input was processed without failures.
func (r *Report) OK() bool {
	return r.Cancelled == 0 && len(r.Failed()) == 0
}

// Err joins the failures of all inputs, or returns nil.
func (r *Report) Err() error {
	var errs []error
	for _, res := range r.Results {
		if err := res.Err(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Outputs returns every leaf artifact produced in the batch.
func (r *Report) Outputs() []pipeline.Artifact {
	var out []pipeline.Artifact
	for _, res := range r.Results {
		out = append(out, res.Outputs...)
	}
	return out
}
