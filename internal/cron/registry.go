package cron

import (
	"context"
	"fmt"
	"strings"
)

// Job is one maintenance sweep over the ledger tables.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry holds the sweeps a worker runs each cycle, in order. Names are
// used as metric labels, so they must be unique and non-blank.
type Registry struct {
	jobs  []Job
	names map[string]struct{}
}

// NewRegistry registers every non-nil job, failing on the first bad name.
func NewRegistry(jobs ...Job) (*Registry, error) {
	registry := &Registry{names: make(map[string]struct{}, len(jobs))}
	for _, job := range jobs {
		if err := registry.Register(job); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func (r *Registry) Register(job Job) error {
	if job == nil {
		return nil
	}
	name := strings.TrimSpace(job.Name())
	if name == "" {
		return fmt.Errorf("cron job name is required")
	}
	if r.names == nil {
		r.names = map[string]struct{}{}
	}
	if _, taken := r.names[name]; taken {
		return fmt.Errorf("cron job %q registered twice", name)
	}
	r.names[name] = struct{}{}
	r.jobs = append(r.jobs, job)
	return nil
}

// Jobs returns a copy of the registered jobs.
func (r *Registry) Jobs() []Job {
	return append([]Job(nil), r.jobs...)
}
