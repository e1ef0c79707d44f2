package dispatch

import (
	"testing"
	"time"
)

func TestCallBlocksUntilRun(t *testing.T) {
	l := New(4)
	go l.Run()
	defer l.Stop()

	var result int
	l.Call(func() { result = 42 })
	if result != 42 {
		t.Fatalf("expected Call to run synchronously, got %d", result)
	}
}

func TestPostAndCallSerialize(t *testing.T) {
	l := New(4)
	go l.Run()
	defer l.Stop()

	order := make([]int, 0, 3)
	done := make(chan struct{})

	l.Post(func() { order = append(order, 1) })
	l.Post(func() { order = append(order, 2) })
	l.Call(func() {
		order = append(order, 3)
		close(done)
	})
	<-done

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("expected in-order execution, got %v", order)
	}
}

func TestStopEndsRun(t *testing.T) {
	l := New(1)
	stopped := make(chan struct{})
	go func() {
		l.Run()
		close(stopped)
	}()
	l.Stop()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatalf("Run did not return after Stop")
	}
}
