// Package driver opens the browser or device a test session runs against.
//
// Local web sessions run on Playwright. Grid, docker and mobile sessions
// talk W3C WebDriver to the session command executor.
package driver

import (
	"context"
	"fmt"

	"github.com/entrhq/pagerunner/pkg/capabilities"
	"github.com/entrhq/pagerunner/pkg/page"
	"github.com/entrhq/pagerunner/pkg/session"
)

// DockerExecutor is the selenium hub of the docker compose setup.
const DockerExecutor = "http://selenium-hub:4444/wd/hub"

// Driver is a live browser or device session.
type Driver interface {
	page.Driver
	Quit() error
}

// Logger is the logging surface used by drivers.
type Logger interface {
	Debugf(format string, v ...any)
	Infof(format string, v ...any)
	Warnf(format string, v ...any)
}

// IsLocal reports whether the session runs on a locally launched browser.
func IsLocal(desc session.Descriptor) bool {
	return desc.IsWeb() && !desc.CloudGrid && !desc.Docker && desc.CommandExecutor == ""
}

// CheckLocalBrowser fails with session.ErrUnsupportedBrowser when a local
// web session asks for a browser without a local driver. It allocates
// nothing and is meant to run before New.
func CheckLocalBrowser(desc session.Descriptor, caps capabilities.Map) error {
	if !IsLocal(desc) {
		return nil
	}
	name := caps.BrowserName()
	if !name.Valid() {
		shown := string(name)
		if shown == "" {
			shown = "empty"
		}
		return fmt.Errorf("%w: the browser %q is not supported for local runs", session.ErrUnsupportedBrowser, shown)
	}
	return nil
}

// Executor returns the WebDriver endpoint of a remote session.
func Executor(desc session.Descriptor) string {
	if desc.CommandExecutor != "" {
		return desc.CommandExecutor
	}
	if desc.Docker {
		return DockerExecutor
	}
	return ""
}

// New opens a driver for the session.
func New(ctx context.Context, desc session.Descriptor, caps capabilities.Map, log Logger) (Driver, error) {
	if err := CheckLocalBrowser(desc, caps); err != nil {
		return nil, err
	}

	if IsLocal(desc) {
		log.Infof("Starting local %s browser.", caps.BrowserName())
		return NewLocal(ctx, caps, LocalOptions{Log: log})
	}

	executor := Executor(desc)
	if executor == "" {
		return nil, session.InvalidArgumentf("no command executor for platform %q", desc.Platform)
	}

	remoteCaps := caps.Clone()
	if desc.IsWeb() {
		remoteCaps = caps.BrowserOptions()
	}
	log.Infof("Starting remote session on %s.", RedactURL(executor))
	return NewRemote(ctx, executor, remoteCaps, RemoteOptions{Log: log, Web: desc.IsWeb()})
}
