package scheduler

import (
	"testing"
	"time"

	"github.com/aura-dev/aura/internal/store"
)

func TestSchedulerAddJob(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()
	if err := s.AddJob("* * * * *", func() {}); err != nil {
		t.Errorf("Expected no error adding job, got %v", err)
	}
	if err := s.AddJob("not a cron", func() {}); err == nil {
		t.Error("Expected error for invalid expression")
	}
}

type recoverer struct{ calls int }

func (r *recoverer) RecoverStaleMessages() error { r.calls++; return nil }

func TestRegisterMaintenance(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()
	if err := s.RegisterMaintenance(store.NewInMemoryStore(), &recoverer{}); err != nil {
		t.Fatalf("RegisterMaintenance failed: %v", err)
	}
	if s.Len() != 2 {
		t.Errorf("jobs = %d, want 2", s.Len())
	}
}

func TestPurgeDedupUsesRetention(t *testing.T) {
	st := store.NewInMemoryStore()
	if _, err := st.RecordInbound("m1", "telegram:1"); err != nil {
		t.Fatalf("RecordInbound failed: %v", err)
	}

	PurgeDedup(st, time.Now())
	if dup, _ := st.IsDuplicate("m1"); !dup {
		t.Fatal("fresh record purged")
	}

	PurgeDedup(st, time.Now().Add(DedupRetention+time.Minute))
	if dup, _ := st.IsDuplicate("m1"); dup {
		t.Error("expired record kept")
	}
}
