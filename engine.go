/*
Copyright © 2026 the gwfdata authors.
This file is part of gwfdata.

gwfdata is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

gwfdata is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with gwfdata.  If not, see <http://www.gnu.org/licenses/>.
*/

package gwfdata

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"
)

// Engine runs subset requests against a catalog.
type Engine struct {
	Catalog *Catalog

	// Transfer handles remote return methods.
	Transfer Transferer

	// Fetch, if not nil, is used to make remote shapefiles available
	// locally. It returns the local path of the .shp file and a function
	// that removes any files it created.
	Fetch func(ctx context.Context, path string) (local string, cleanup func(), err error)

	// StagingDir holds files awaiting remote transfer.
	StagingDir string

	// ProgressEvery sets how many chunks pass between progress log
	// messages. Zero disables progress reporting.
	ProgressEvery int

	Log logrus.FieldLogger
}

// Job is one request of a batch.
type Job struct {
	Request     *SubsetRequest
	Destination string
}

// JobResult is the outcome of a Job.
type JobResult struct {
	Receipt *OutputReceipt
	Err     error
}

func (e *Engine) log() logrus.FieldLogger {
	if e.Log == nil {
		return logrus.StandardLogger()
	}
	return e.Log
}

// constraint resolves the spatial part of req. cleanup releases any
// files fetched for it and is never nil.
func (e *Engine) constraint(ctx context.Context, req *SubsetRequest) (c Constraint, cleanup func(), err error) {
	cleanup = func() {}
	if b, ok := req.SpaceLims(); ok {
		return Constraint{Box: &b}, cleanup, nil
	}
	path := req.Shapefile()
	if path == "" {
		return Constraint{}, cleanup, nil
	}
	if e.Fetch != nil {
		local, done, err := e.Fetch(ctx, path)
		if err != nil {
			return Constraint{}, cleanup, &InvalidGeometryError{Path: path, Err: err}
		}
		if done != nil {
			cleanup = done
		}
		path = local
	}
	return Constraint{Shapefile: path}, cleanup, nil
}

// stagingDir returns the staging directory for req. Slurm jobs default
// to the node-local scratch directory.
func (e *Engine) stagingDir(req *SubsetRequest) string {
	if e.StagingDir != "" {
		return e.StagingDir
	}
	if req.SlurmJob() {
		return os.Getenv("SLURM_TMPDIR")
	}
	return ""
}

// Run carries out req and delivers the result to destination.
func (e *Engine) Run(ctx context.Context, req *SubsetRequest, destination string) (*OutputReceipt, error) {
	if e.Catalog == nil {
		return nil, fmt.Errorf("gwfdata: engine has no catalog")
	}
	log := e.log().WithFields(logrus.Fields{
		"dataset":     req.Dataset(),
		"variables":   req.Variables(),
		"request":     req.Fingerprint(),
		"destination": destination,
	})
	log.Info("starting subset")

	c, cleanup, err := e.constraint(ctx, req)
	defer cleanup()
	if err != nil {
		return nil, err
	}
	h, err := Open(ctx, e.Catalog, req.Dataset(), req.Variables())
	if err != nil {
		return nil, err
	}
	defer h.Close()

	var p *Progress
	if e.ProgressEvery > 0 {
		p = NewProgress(LogProgress(log, e.ProgressEvery))
	}
	r, err := Select(ctx, h, req.TimeLims(), c, p)
	if err != nil {
		return nil, err
	}
	d := &Dispatcher{Transfer: e.Transfer, StagingDir: e.stagingDir(req), Log: log}
	return d.Dispatch(ctx, r, req.ReturnMethod(), destination)
}

// DefaultWorkers returns the number of concurrent requests to run when
// none is specified. Within a Slurm allocation this is the number of
// CPUs allocated to the task.
func DefaultWorkers(slurmJob bool) int {
	if slurmJob {
		if n, err := strconv.Atoi(os.Getenv("SLURM_CPUS_PER_TASK")); err == nil && n > 0 {
			return n
		}
	}
	return runtime.GOMAXPROCS(0)
}

// RunAll runs the jobs on a pool of workers, each job independent of the
// others. Results are returned in the order of jobs. If workers is less
// than one, DefaultWorkers is used.
func (e *Engine) RunAll(ctx context.Context, jobs []Job, workers int) []JobResult {
	if workers < 1 {
		slurm := false
		for _, j := range jobs {
			slurm = slurm || (j.Request != nil && j.Request.SlurmJob())
		}
		workers = DefaultWorkers(slurm)
	}
	if workers > len(jobs) {
		workers = len(jobs)
	}
	results := make([]JobResult, len(jobs))
	var wg sync.WaitGroup
	wg.Add(workers)
	for pp := 0; pp < workers; pp++ {
		go func(pp int) {
			defer wg.Done()
			for ii := pp; ii < len(jobs); ii += workers {
				j := jobs[ii]
				if j.Request == nil {
					results[ii].Err = &ConfigurationError{Err: fmt.Errorf("job %d has no request", ii)}
					continue
				}
				if err := ctx.Err(); err != nil {
					results[ii].Err = err
					continue
				}
				results[ii].Receipt, results[ii].Err = e.Run(ctx, j.Request, j.Destination)
			}
		}(pp)
	}
	wg.Wait()
	return results
}
