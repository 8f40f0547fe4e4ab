package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

var errBoom = errors.New("boom")

func TestNewBreakerTripsAfterThreshold(t *testing.T) {
	tests := []struct {
		name      string
		cfg       BreakerConfig
		failures  int
		wantState gobreaker.State
	}{
		{"default threshold not reached", BreakerConfig{}, 4, gobreaker.StateClosed},
		{"default threshold reached", BreakerConfig{}, 5, gobreaker.StateOpen},
		{"custom threshold", BreakerConfig{FailureThreshold: 2}, 2, gobreaker.StateOpen},
		{"ignored errors", BreakerConfig{IsSuccessful: func(error) bool { return true }}, 10, gobreaker.StateClosed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb := NewBreaker("test-"+tt.name, tt.cfg, zerolog.Nop())
			for i := 0; i < tt.failures; i++ {
				_, _ = cb.Execute(func() (interface{}, error) { return nil, errBoom })
			}
			if cb.State() != tt.wantState {
				t.Errorf("state = %s, want %s", cb.State(), tt.wantState)
			}
		})
	}
}

func TestOpenBreakerRejectsAndRecovers(t *testing.T) {
	cb := NewBreaker("recover", BreakerConfig{FailureThreshold: 1, Timeout: 20 * time.Millisecond}, zerolog.Nop())
	_, _ = cb.Execute(func() (interface{}, error) { return nil, errBoom })

	if _, err := cb.Execute(func() (interface{}, error) { return nil, nil }); !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("err = %v, want open state", err)
	}

	time.Sleep(30 * time.Millisecond)
	if _, err := cb.Execute(func() (interface{}, error) { return nil, nil }); err != nil {
		t.Fatalf("half-open probe failed: %v", err)
	}
}

func TestStatesListsRegisteredBreakers(t *testing.T) {
	NewBreaker("zz-states", BreakerConfig{}, zerolog.Nop())
	NewBreaker("aa-states", BreakerConfig{}, zerolog.Nop())

	var names []string
	for _, s := range States() {
		if s.Name == "aa-states" || s.Name == "zz-states" {
			names = append(names, s.Name)
			if s.State != "closed" {
				t.Errorf("%s state = %s", s.Name, s.State)
			}
		}
	}
	if len(names) != 2 || names[0] != "aa-states" {
		t.Errorf("names = %v", names)
	}
}
