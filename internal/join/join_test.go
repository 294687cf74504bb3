package join

import (
	"errors"
	"sync/atomic"
	"testing"
)

func TestSequentialRunsAllTasks(t *testing.T) {
	var n atomic.Int32
	tasks := make([]func() error, 10)
	for i := range tasks {
		tasks[i] = func() error {
			n.Add(1)
			return nil
		}
	}

	if err := (Sequential{}).Join(tasks); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.Load() != 10 {
		t.Fatalf("ran %d tasks, want 10", n.Load())
	}
}

func TestSequentialReturnsFirstError(t *testing.T) {
	errA := errors.New("a")
	errB := errors.New("b")

	err := (Sequential{}).Join([]func() error{
		func() error { return nil },
		func() error { return errA },
		func() error { return errB },
	})
	if !errors.Is(err, errA) {
		t.Fatalf("got %v, want %v", err, errA)
	}
}

func TestWorkStealingRunsAllTasks(t *testing.T) {
	var n atomic.Int32
	tasks := make([]func() error, 50)
	for i := range tasks {
		tasks[i] = func() error {
			n.Add(1)
			return nil
		}
	}

	if err := (WorkStealing{Limit: 4}).Join(tasks); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.Load() != 50 {
		t.Fatalf("ran %d tasks, want 50", n.Load())
	}
}

func TestWorkStealingPropagatesError(t *testing.T) {
	boom := errors.New("boom")
	err := (WorkStealing{}).Join([]func() error{
		func() error { return nil },
		func() error { return boom },
		func() error { return nil },
	})
	if !errors.Is(err, boom) {
		t.Fatalf("got %v, want %v", err, boom)
	}
}
