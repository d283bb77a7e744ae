package cron

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

func okJob(calls *int32) JobFunc {
	return func(ctx context.Context) (string, error) {
		atomic.AddInt32(calls, 1)
		return "done", nil
	}
}

func TestService_AddJobSchedules(t *testing.T) {
	s := NewService(time.UTC)
	var calls int32

	valid := []string{"0 0 21 * * *", "*/5 * * * * *", "@daily", "@every 1h"}
	for i, expr := range valid {
		if err := s.AddJob(fmt.Sprintf("valid-%d", i), expr, okJob(&calls)); err != nil {
			t.Errorf("AddJob(%q) = %v", expr, err)
		}
	}
	// Five-field expressions lack the seconds column.
	invalid := []string{"", "0 21 * * *", "not a schedule", "61 * * * * *"}
	for i, expr := range invalid {
		if err := s.AddJob(fmt.Sprintf("invalid-%d", i), expr, okJob(&calls)); err == nil {
			t.Errorf("AddJob(%q) should fail", expr)
		}
	}
	if got := len(s.ListJobs()); got != len(valid) {
		t.Errorf("ListJobs has %d jobs, want %d", got, len(valid))
	}
}

func TestService_AddList(t *testing.T) {
	s := NewService(time.UTC)
	var calls int32

	if err := s.AddJob("digest", "0 0 21 * * *", okJob(&calls)); err != nil {
		t.Fatalf("AddJob error: %v", err)
	}
	if err := s.AddJob("backup", "@daily", okJob(&calls)); err != nil {
		t.Fatalf("AddJob error: %v", err)
	}
	if err := s.AddJob("digest", "@hourly", okJob(&calls)); err == nil {
		t.Error("duplicate name should fail")
	}
	if err := s.AddJob("bad", "nope", okJob(&calls)); err == nil {
		t.Error("invalid schedule should fail")
	}
	if err := s.AddJob("nil", "@daily", nil); err == nil {
		t.Error("nil func should fail")
	}

	jobs := s.ListJobs()
	if len(jobs) != 2 || jobs[0].Name != "backup" || jobs[1].Name != "digest" {
		t.Fatalf("ListJobs = %+v", jobs)
	}
}

func TestService_ListJobsNextRun(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	s := NewService(berlin)
	var calls int32
	if err := s.AddJob("digest", "0 30 21 * * *", okJob(&calls)); err != nil {
		t.Fatal(err)
	}

	before := time.Now()
	next := s.ListJobs()[0].Next
	if !next.After(before) || next.Sub(before) > 24*time.Hour {
		t.Errorf("Next = %v, want within a day after %v", next, before)
	}
	local := next.In(berlin)
	if local.Hour() != 21 || local.Minute() != 30 || local.Second() != 0 {
		t.Errorf("Next = %v, want 21:30:00 Berlin time", local)
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Error("listing must not run the job")
	}
}

func TestService_RunNowRecordsState(t *testing.T) {
	s := NewService(nil)
	var calls int32
	if err := s.AddJob("ok", "@daily", okJob(&calls)); err != nil {
		t.Fatal(err)
	}
	if err := s.AddJob("fail", "@daily", func(context.Context) (string, error) {
		return "", fmt.Errorf("store down")
	}); err != nil {
		t.Fatal(err)
	}

	if result, err := s.RunNow("ok"); err != nil || result != "done" {
		t.Errorf("RunNow = %q, %v; want done", result, err)
	}
	if _, err := s.RunNow("fail"); err == nil {
		t.Error("expected job error")
	}
	if _, err := s.RunNow("missing"); err == nil {
		t.Error("expected not found error")
	}

	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	jobs := s.ListJobs()
	if jobs[0].Name != "fail" || jobs[0].State.LastStatus != "error" || jobs[0].State.LastError != "store down" {
		t.Errorf("fail state = %+v", jobs[0].State)
	}
	if jobs[1].State.LastStatus != "ok" || jobs[1].State.LastRunAt.IsZero() {
		t.Errorf("ok state = %+v", jobs[1].State)
	}
}

func TestService_FiresOnSchedule(t *testing.T) {
	s := NewService(time.UTC)
	fired := make(chan struct{}, 4)
	if err := s.AddJob("tick", "* * * * * *", func(context.Context) (string, error) {
		fired <- struct{}{}
		return "", nil
	}); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	defer s.Stop()

	if next := s.ListJobs()[0].Next; next.IsZero() {
		t.Error("Next should be set while running")
	}

	select {
	case <-fired:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not fire")
	}
}

func TestService_StartTwice(t *testing.T) {
	s := NewService(time.UTC)
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer s.Stop()
	if err := s.Start(context.Background()); err == nil {
		t.Error("second Start should fail")
	}
}

func TestService_ParentCancelStops(t *testing.T) {
	s := NewService(time.UTC)
	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		s.mu.Lock()
		running := s.running
		s.mu.Unlock()
		if !running {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("service still running after parent cancel")
}

func TestService_StopIdempotent(t *testing.T) {
	s := NewService(time.UTC)
	s.Stop()
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	s.Stop()
	s.Stop()
}

func TestService_JobContextCancelledOnStop(t *testing.T) {
	s := NewService(time.UTC)
	var seen context.Context
	if err := s.AddJob("ctx", "@daily", func(ctx context.Context) (string, error) {
		seen = ctx
		return "", nil
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := s.RunNow("ctx"); err != nil {
		t.Fatal(err)
	}
	s.Stop()
	if seen == nil || seen.Err() == nil {
		t.Error("job context should be cancelled after Stop")
	}
}
