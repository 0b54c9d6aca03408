// Package batch drives round trips over many volumes with a bounded pool of
// workers. A failing volume is recorded in its result and never stops the
// rest of the batch.
package batch

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"niftiverify/internal/logger"
	"niftiverify/internal/models"
	"niftiverify/pkg/nifti"
	"niftiverify/pkg/store"
	"niftiverify/pkg/summary"
)

// Runner executes round trips concurrently.
type Runner struct {
	workers int
	log     logger.Logger
}

// NewRunner creates a runner with at most workers concurrent jobs. A
// non-positive count runs jobs one at a time.
func NewRunner(workers int, log logger.Logger) *Runner {
	if workers < 1 {
		workers = 1
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Runner{workers: workers, log: log}
}

// RunFixtures round trips in-memory fixtures through out: each fixture is
// encoded, written, read back, decoded and compared with the original.
//
// Parameters:
//   - ctx: cancelling it stops new jobs from starting
//   - fixtures: volumes to verify
//   - out: where encoded fixtures are written
//
// Returns:
//   - one result per fixture, in input order
//   - the run summary
//   - ctx.Err() when the run was cancelled
func (r *Runner) RunFixtures(ctx context.Context, fixtures []models.Fixture, out *store.Dir) ([]models.Result, models.RunSummary, error) {
	jobs := make([]func(context.Context) models.Result, len(fixtures))
	names := make([]string, len(fixtures))
	for i, f := range fixtures {
		names[i] = f.Name
		jobs[i] = func(ctx context.Context) models.Result {
			return r.verifyFixture(ctx, f, out)
		}
	}
	return r.run(ctx, "fixtures", names, jobs)
}

// RunFiles round trips every .nii file in in: each file is read, decoded,
// re-encoded into out, read back, decoded again and compared with the first
// decoding.
func (r *Runner) RunFiles(ctx context.Context, in, out *store.Dir) ([]models.Result, models.RunSummary, error) {
	if sameDir(in.Root(), out.Root()) {
		return nil, models.RunSummary{}, fmt.Errorf("input and output directory are the same: %s", in.Root())
	}
	names, err := in.List()
	if err != nil {
		return nil, models.RunSummary{}, err
	}
	jobs := make([]func(context.Context) models.Result, len(names))
	for i, name := range names {
		jobs[i] = func(ctx context.Context) models.Result {
			return r.verifyFile(ctx, name, in, out)
		}
	}
	return r.run(ctx, "files", names, jobs)
}

func (r *Runner) run(ctx context.Context, mode string, names []string, jobs []func(context.Context) models.Result) ([]models.Result, models.RunSummary, error) {
	runID := uuid.NewString()
	log := r.log.With("run", runID, "mode", mode)
	log.Info("batch started", "jobs", len(jobs), "workers", r.workers)
	start := time.Now()

	results := make([]models.Result, len(jobs))
	var g errgroup.Group
	g.SetLimit(r.workers)
	for i, job := range jobs {
		if err := ctx.Err(); err != nil {
			for j := i; j < len(jobs); j++ {
				results[j] = models.Result{Name: names[j]}.Fail(models.StageRead, err)
			}
			break
		}
		g.Go(func() error {
			res := job(ctx)
			if res.Err != nil {
				log.Warn("round trip failed", "name", res.Name, "stage", res.Stage, "kind", res.ErrorKind, "error", res.Err)
			} else if !res.OK() {
				log.Warn("round trip mismatch", "name", res.Name, "report", res.Report)
			} else {
				log.Debug("round trip ok", "name", res.Name, "bytes", res.Bytes, "duration", res.Duration)
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	s := models.Summarize(runID, results, time.Since(start))
	log.Info("batch finished", "passed", s.Passed, "failed", s.Failed, "duration", s.Duration)
	return results, s, ctx.Err()
}

func (r *Runner) verifyFixture(ctx context.Context, f models.Fixture, out *store.Dir) models.Result {
	start := time.Now()
	res := r.roundTripFixture(ctx, f, out)
	res.Duration = time.Since(start)
	return res
}

func (r *Runner) roundTripFixture(ctx context.Context, f models.Fixture, out *store.Dir) models.Result {
	res := models.Result{Name: f.Name, Shape: f.Volume.Shape(), Kind: f.Volume.Kind()}
	if err := ctx.Err(); err != nil {
		return res.Fail(models.StageEncode, err)
	}
	encoded, err := nifti.Encode(f.Volume)
	if err != nil {
		return res.Fail(models.StageEncode, err)
	}
	res.Bytes = len(encoded)

	res.Output, err = out.Write(f.Name, encoded)
	if err != nil {
		return res.Fail(models.StageWrite, err)
	}

	res, reloaded := r.reloadAndCompare(res, f.Volume, out)
	if reloaded == nil {
		return res
	}
	// encoding the reloaded volume again must reproduce the written stream
	again, err := nifti.Encode(reloaded)
	if err != nil {
		return res.Fail(models.StageEncode, err)
	}
	res.BytesIdentical = bytes.Equal(again, encoded)
	return res
}

func (r *Runner) verifyFile(ctx context.Context, name string, in, out *store.Dir) models.Result {
	start := time.Now()
	res := r.roundTripFile(ctx, name, in, out)
	res.Duration = time.Since(start)
	return res
}

func (r *Runner) roundTripFile(ctx context.Context, name string, in, out *store.Dir) models.Result {
	res := models.Result{Name: name, Source: in.Path(name)}
	if err := ctx.Err(); err != nil {
		return res.Fail(models.StageRead, err)
	}
	src, err := in.Read(name)
	if err != nil {
		return res.Fail(models.StageRead, err)
	}
	original, err := nifti.Decode(src)
	if err != nil {
		return res.Fail(models.StageDecode, fmt.Errorf("decode %s: %w", name, err))
	}
	res.Shape, res.Kind = original.Shape(), original.Kind()

	encoded, err := nifti.Encode(original)
	if err != nil {
		return res.Fail(models.StageEncode, err)
	}
	res.Bytes = len(encoded)
	// files written by other tools carry header fields this codec drops
	res.BytesIdentical = bytes.Equal(encoded, src)

	res.Output, err = out.Write(name, encoded)
	if err != nil {
		return res.Fail(models.StageWrite, err)
	}

	res, _ = r.reloadAndCompare(res, original, out)
	return res
}

// reloadAndCompare reads res.Output back, decodes it and compares it with
// original. The reloaded volume is nil when the reload failed.
func (r *Runner) reloadAndCompare(res models.Result, original *nifti.VoxelArray, out *store.Dir) (models.Result, *nifti.VoxelArray) {
	written, err := out.Read(filepath.Base(res.Output))
	if err != nil {
		return res.Fail(models.StageReload, err), nil
	}
	reloaded, err := nifti.Decode(written)
	if err != nil {
		return res.Fail(models.StageReload, fmt.Errorf("decode %s: %w", res.Output, err)), nil
	}

	report := nifti.Compare(original, reloaded)
	res.Report = &report
	if report.ShapesMatch && report.DtypesMatch && !report.ValuesMatch {
		if f, err := summary.Measure(original, reloaded); err == nil {
			res.Fidelity = &f
		}
	}
	res.Stage = models.StageDone
	return res, reloaded
}

func sameDir(a, b string) bool {
	ca, err1 := filepath.Abs(a)
	cb, err2 := filepath.Abs(b)
	if err1 != nil || err2 != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return ca == cb
}
