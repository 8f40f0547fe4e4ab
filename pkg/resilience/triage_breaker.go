// Package resilience builds the circuit breakers in front of external calls and keeps a
// registry of them for stats output.
package resilience

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// BreakerConfig holds breaker tuning. Zero values use DefaultBreakerConfig.
type BreakerConfig struct {
	MaxRequests      uint32        // Half-open 상태에서 허용할 요청 수
	Interval         time.Duration // Closed 상태에서 카운터 리셋 간격
	Timeout          time.Duration // Open 상태 유지 시간
	FailureThreshold uint32        // 연속 실패 횟수 (Open 전환)

	// IsSuccessful classifies a returned error. nil counts only nil errors as success.
	IsSuccessful func(err error) bool
}

// DefaultBreakerConfig returns the shared defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:      2,
		Interval:         60 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

var (
	mu       sync.RWMutex
	breakers = map[string]*gobreaker.CircuitBreaker{}
)

// NewBreaker creates a breaker that logs state changes and registers it under name.
// A later breaker with the same name replaces the earlier one in the registry.
func NewBreaker(name string, cfg BreakerConfig, log zerolog.Logger) *gobreaker.CircuitBreaker {
	def := DefaultBreakerConfig()
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = def.MaxRequests
	}
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	threshold := cfg.FailureThreshold

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: cfg.IsSuccessful,
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	})

	mu.Lock()
	breakers[name] = cb
	mu.Unlock()
	return cb
}

// BreakerState is one registry entry.
type BreakerState struct {
	Name                string `json:"name"`
	State               string `json:"state"`
	Requests            uint32 `json:"requests"`
	ConsecutiveFailures uint32 `json:"consecutive_failures"`
}

// States returns every registered breaker, sorted by name.
func States() []BreakerState {
	mu.RLock()
	defer mu.RUnlock()

	out := make([]BreakerState, 0, len(breakers))
	for name, cb := range breakers {
		counts := cb.Counts()
		out = append(out, BreakerState{
			Name:                name,
			State:               cb.State().String(),
			Requests:            counts.Requests,
			ConsecutiveFailures: counts.ConsecutiveFailures,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
