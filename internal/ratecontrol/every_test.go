package ratecontrol

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestEvery_Validation(t *testing.T) {
	s := newTestScheduler(t)

	if _, err := Every(s, time.Second, nil); !errors.Is(err, ErrNilFunc) {
		t.Errorf("expected ErrNilFunc, got %v", err)
	}
	if _, err := Every(s, 0, func() error { return nil }); !errors.Is(err, ErrInvalidInterval) {
		t.Errorf("expected ErrInvalidInterval, got %v", err)
	}
}

func TestEvery_Cadence(t *testing.T) {
	skipTimingUnderRace(t)

	tests := []struct {
		name      string
		opts      []EveryOption
		wantCalls int64
	}{
		{"immediate", nil, 10},
		{"wait first", []EveryOption{WaitFirst()}, 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestScheduler(t)

			var calls atomic.Int64
			p, err := Every(s, 40*time.Millisecond, func() error {
				calls.Add(1)
				return nil
			}, tt.opts...)
			if err != nil {
				t.Fatal(err)
			}

			time.Sleep(380 * time.Millisecond)
			got := calls.Load()
			if got < tt.wantCalls-1 || got > tt.wantCalls {
				t.Errorf("calls = %d, want about %d", got, tt.wantCalls)
			}
			if p.Err() != nil {
				t.Errorf("Err() = %v", p.Err())
			}
		})
	}
}

func TestEvery_StopsOnError(t *testing.T) {
	s := newTestScheduler(t)
	boom := errors.New("boom")

	var calls atomic.Int64
	p, err := Every(s, 5*time.Millisecond, func() error {
		if calls.Add(1) == 3 {
			return boom
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	select {
	case <-p.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("periodic caller did not stop")
	}
	if !errors.Is(p.Err(), boom) {
		t.Errorf("Err() = %v, want boom", p.Err())
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestEvery_StopsWithScheduler(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	s := NewScheduler()

	p, err := Every(s, time.Hour, func() error { return nil }, WaitFirst(), EveryName("idle"))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Stop(ctx); err != nil {
		t.Fatal(err)
	}
	select {
	case <-p.Done():
	default:
		t.Fatal("periodic caller still running after Stop")
	}
	if p.Err() != nil {
		t.Errorf("Err() = %v", p.Err())
	}
}
