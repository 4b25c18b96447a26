package cron

import (
	"context"
	"testing"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryStoresJobs(t *testing.T) {
	registry := NewRegistry()
	recheck := &stubJob{name: "dispatch-recheck"}
	cleanup := &stubJob{name: "notification-cleanup"}
	registry.Register(recheck)
	registry.Register(cleanup)
	registry.Register(nil)
	jobs := registry.Jobs()
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0] != recheck || jobs[1] != cleanup {
		t.Fatalf("jobs returned out of registration order")
	}
	// Jobs hands out a copy.
	jobs[0] = nil
	if registry.Jobs()[0] == nil {
		t.Fatalf("internal slice leaked")
	}
}
