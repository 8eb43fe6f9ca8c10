// Package config persists harness settings in ~/.pagerunner/config.json.
//
// Settings are grouped in sections registered with a Manager. The process
// wide manager is set up once with Initialize and read through Global or
// the typed accessors.
package config

import (
	"sync"
)

var (
	globalManager *Manager
	globalMu      sync.Mutex
)

// Initialize creates the global manager with the runner and waits sections
// and loads the settings file at configPath (DefaultPath when empty).
func Initialize(configPath string) error {
	globalMu.Lock()
	defer globalMu.Unlock()

	store, err := NewFileStore(configPath)
	if err != nil {
		return err
	}

	manager := NewManager(store)
	if err := manager.RegisterSection(NewRunnerSection()); err != nil {
		return err
	}
	if err := manager.RegisterSection(NewWaitsSection()); err != nil {
		return err
	}
	if err := manager.LoadAll(); err != nil {
		return err
	}

	globalManager = manager
	return nil
}

// Global returns the global manager. It panics before Initialize.
func Global() *Manager {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalManager == nil {
		panic("config not initialized: call config.Initialize first")
	}
	return globalManager
}

// IsInitialized reports whether Initialize succeeded.
func IsInitialized() bool {
	globalMu.Lock()
	defer globalMu.Unlock()
	return globalManager != nil
}

// GetRunner returns the runner section, nil when not initialized.
func GetRunner() *RunnerSection {
	if !IsInitialized() {
		return nil
	}
	section, ok := Global().GetSection(SectionIDRunner)
	if !ok {
		return nil
	}
	runner, _ := section.(*RunnerSection)
	return runner
}

// GetWaits returns the waits section, nil when not initialized.
func GetWaits() *WaitsSection {
	if !IsInitialized() {
		return nil
	}
	section, ok := Global().GetSection(SectionIDWaits)
	if !ok {
		return nil
	}
	waits, _ := section.(*WaitsSection)
	return waits
}
