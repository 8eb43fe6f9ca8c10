package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/entrhq/pagerunner/pkg/page"
)

const (
	// SectionIDRunner is the identifier of the runner section.
	SectionIDRunner = "runner"

	defaultLogLevel = "info"
)

var logLevels = []string{"debug", "info", "warn", "error"}

// RunnerSection holds the defaults of a run. Command-line flags win over them.
type RunnerSection struct {
	LogLevel        string               `json:"log_level"`
	DuplicatePolicy page.DuplicatePolicy `json:"duplicate_policy"`
	DataRoot        string               `json:"data_root"`
	mu              sync.RWMutex
}

// NewRunnerSection returns the section with its defaults.
func NewRunnerSection() *RunnerSection {
	return &RunnerSection{
		LogLevel:        defaultLogLevel,
		DuplicatePolicy: page.FailOnDuplicate,
	}
}

func (s *RunnerSection) ID() string { return SectionIDRunner }

func (s *RunnerSection) Title() string { return "Runner" }

func (s *RunnerSection) Description() string {
	return "Log level, page registration policy and test data location."
}

func (s *RunnerSection) Data() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return map[string]any{
		"log_level":        s.LogLevel,
		"duplicate_policy": s.DuplicatePolicy.String(),
		"data_root":        s.DataRoot,
	}
}

func (s *RunnerSection) SetData(data map[string]any) error {
	if data == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, value := range data {
		str, ok := value.(string)
		switch key {
		case "log_level", "duplicate_policy", "data_root":
			if !ok {
				return fmt.Errorf("invalid value type for %s: expected string, got %T", key, value)
			}
		default:
			continue
		}

		switch key {
		case "log_level":
			s.LogLevel = strings.ToLower(str)
		case "duplicate_policy":
			p, err := page.ParsePolicy(str)
			if err != nil {
				return err
			}
			s.DuplicatePolicy = p
		case "data_root":
			s.DataRoot = str
		}
	}
	return nil
}

func (s *RunnerSection) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !isLogLevel(s.LogLevel) {
		return fmt.Errorf("log_level must be one of %s, got %q", strings.Join(logLevels, ", "), s.LogLevel)
	}
	return nil
}

func (s *RunnerSection) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.LogLevel = defaultLogLevel
	s.DuplicatePolicy = page.FailOnDuplicate
	s.DataRoot = ""
}

// Settings returns log level, duplicate policy and data root.
func (s *RunnerSection) Settings() (string, page.DuplicatePolicy, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.LogLevel, s.DuplicatePolicy, s.DataRoot
}

func isLogLevel(name string) bool {
	for _, l := range logLevels {
		if l == name {
			return true
		}
	}
	return false
}
