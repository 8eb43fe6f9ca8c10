package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/entrhq/pagerunner/pkg/wait"
)

// SectionIDWaits is the identifier of the waits section.
const SectionIDWaits = "waits"

// Wait profiles.
const (
	WaitTiny  = "tiny"
	WaitShort = "short"
	WaitLong  = "long"
)

// WaitsSection holds the explicit wait timeouts and the poll interval.
type WaitsSection struct {
	Tiny  time.Duration `json:"tiny"`
	Short time.Duration `json:"short"`
	Long  time.Duration `json:"long"`
	Poll  time.Duration `json:"poll"`
	mu    sync.RWMutex
}

// NewWaitsSection returns the section with the wait package defaults.
func NewWaitsSection() *WaitsSection {
	return &WaitsSection{
		Tiny:  wait.Tiny,
		Short: wait.Short,
		Long:  wait.Long,
		Poll:  wait.DefaultPoll,
	}
}

func (s *WaitsSection) ID() string { return SectionIDWaits }

func (s *WaitsSection) Title() string { return "Waits" }

func (s *WaitsSection) Description() string {
	return "Timeouts of the tiny, short and long waits and the poll interval."
}

func (s *WaitsSection) Data() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return map[string]any{
		WaitTiny:  s.Tiny.String(),
		WaitShort: s.Short.String(),
		WaitLong:  s.Long.String(),
		"poll":    s.Poll.String(),
	}
}

func (s *WaitsSection) SetData(data map[string]any) error {
	if data == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, value := range data {
		var target *time.Duration
		switch key {
		case WaitTiny:
			target = &s.Tiny
		case WaitShort:
			target = &s.Short
		case WaitLong:
			target = &s.Long
		case "poll":
			target = &s.Poll
		default:
			continue
		}

		d, err := parseDuration(key, value)
		if err != nil {
			return err
		}
		*target = d
	}
	return nil
}

// parseDuration accepts duration strings and JSON numbers of nanoseconds.
func parseDuration(key string, value any) (time.Duration, error) {
	switch v := value.(type) {
	case string:
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid duration string for %s: %w", key, err)
		}
		return d, nil
	case float64:
		return time.Duration(v), nil
	case int64:
		return time.Duration(v), nil
	}
	return 0, fmt.Errorf("invalid value type for %s: expected string or number, got %T", key, value)
}

func (s *WaitsSection) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.Poll < 10*time.Millisecond || s.Poll > 10*time.Second {
		return fmt.Errorf("poll must be between 10ms and 10s, got %v", s.Poll)
	}
	if s.Tiny <= 0 || s.Tiny > s.Short || s.Short > s.Long {
		return fmt.Errorf("timeouts must satisfy 0 < tiny <= short <= long, got %v, %v, %v", s.Tiny, s.Short, s.Long)
	}
	return nil
}

func (s *WaitsSection) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Tiny = wait.Tiny
	s.Short = wait.Short
	s.Long = wait.Long
	s.Poll = wait.DefaultPoll
}

// Options returns the wait options of a profile. Unknown profiles use the
// short timeout.
func (s *WaitsSection) Options(profile string) wait.Options {
	s.mu.RLock()
	defer s.mu.RUnlock()

	timeout := s.Short
	switch profile {
	case WaitTiny:
		timeout = s.Tiny
	case WaitLong:
		timeout = s.Long
	}
	return wait.Options{Timeout: timeout, Poll: s.Poll}
}
