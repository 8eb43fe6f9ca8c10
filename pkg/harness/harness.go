// Package harness wires a test run together: it resolves the session and
// the capabilities, opens the driver and loads the page registry.
package harness

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/entrhq/pagerunner/pkg/capabilities"
	"github.com/entrhq/pagerunner/pkg/configfile"
	"github.com/entrhq/pagerunner/pkg/driver"
	"github.com/entrhq/pagerunner/pkg/logging"
	"github.com/entrhq/pagerunner/pkg/merge"
	"github.com/entrhq/pagerunner/pkg/page"
	"github.com/entrhq/pagerunner/pkg/session"
	"github.com/entrhq/pagerunner/pkg/testdata"
)

// Logger is the logging surface the harness hands to its collaborators.
type Logger interface {
	Debugf(format string, v ...any)
	Infof(format string, v ...any)
	Warnf(format string, v ...any)
}

// OpenFunc opens a driver for a resolved session.
type OpenFunc func(ctx context.Context, desc session.Descriptor, caps capabilities.Map, log driver.Logger) (driver.Driver, error)

// Options configures Resolve and Start.
type Options struct {
	Args       session.Args
	ConfigFile string
	// Catalog defaults to page.DefaultCatalog.
	Catalog *page.Catalog
	// DataRoot is the directory holding static_data. Empty disables test data.
	DataRoot   string
	Logger     Logger
	Policy     page.DuplicatePolicy
	PageFilter []string
	// Open defaults to driver.New.
	Open OpenFunc
}

func (o Options) withDefaults() Options {
	if o.Catalog == nil {
		o.Catalog = page.DefaultCatalog
	}
	if o.Logger == nil {
		o.Logger = logging.Nop()
	}
	if o.Open == nil {
		o.Open = driver.New
	}
	return o
}

// Plan is the resolved, side-effect free outcome of Resolve.
type Plan struct {
	Session      session.Descriptor
	Capabilities capabilities.Map
	File         *configfile.File
	Notices      []session.Notice

	// SessionSources and CapabilitySources record the origin of each
	// value. Keys set by derivation or by capability rules are absent.
	SessionSources    map[string]merge.Source
	CapabilitySources map[string]merge.Source
}

// Resolve loads the config file and resolves the session and its
// capabilities. It opens no driver and performs no network access.
func Resolve(opts Options) (*Plan, error) {
	opts = opts.withDefaults()

	desc, file, notices, err := session.ResolvePath(opts.Args, opts.ConfigFile, session.WithLogger(opts.Logger))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve session: %w", err)
	}

	caps, capNotices, err := capabilities.Resolve(opts.Args.Capabilities, file, desc, capabilities.WithLogger(opts.Logger))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve capabilities: %w", err)
	}

	if err := driver.CheckLocalBrowser(desc, caps); err != nil {
		return nil, err
	}

	sessionSources, err := session.Sources(opts.Args, file)
	if err != nil {
		return nil, err
	}
	fileCaps, err := capabilities.FromFile(file, desc)
	if err != nil {
		return nil, err
	}

	return &Plan{
		Session:           desc,
		Capabilities:      caps,
		File:              file,
		Notices:           append(notices, capNotices...),
		SessionSources:    sessionSources,
		CapabilitySources: merge.Merge(opts.Args.Capabilities, map[string]any(fileCaps)).Sources(),
	}, nil
}

// Run is a started test run.
type Run struct {
	ID       string
	Plan     *Plan
	Driver   driver.Driver
	Data     *testdata.Store
	Registry *page.Registry
	log      Logger
}

// Start opens the driver of plan, loads the test data and instantiates the
// registered pages. The driver is quit again when a later step fails.
func Start(ctx context.Context, plan *Plan, opts Options) (*Run, error) {
	if plan == nil {
		return nil, errors.New("harness: nil plan")
	}
	opts = opts.withDefaults()
	runID := uuid.New().String()

	data := testdata.Empty()
	if opts.DataRoot != "" {
		var err error
		data, err = testdata.Load(opts.DataRoot, string(plan.Session.Platform), plan.Session.Zone)
		if err != nil {
			return nil, err
		}
		opts.Logger.Debugf("Loaded %d test data file(s) from %s.", len(data.Files()), data.Dir())
	}

	drv, err := opts.Open(ctx, plan.Session, plan.Capabilities, opts.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open driver: %w", err)
	}

	inj := page.Injection{
		Driver: drv,
		Data:   data,
		Objects: map[string]any{
			"run_id":       runID,
			"session":      plan.Session,
			"capabilities": plan.Capabilities,
		},
	}
	reg, err := page.Load(opts.Catalog, inj,
		page.WithDuplicatePolicy(opts.Policy),
		page.WithPageFilter(opts.PageFilter...),
		page.WithLogger(opts.Logger),
	)
	if err != nil {
		if qerr := drv.Quit(); qerr != nil {
			opts.Logger.Warnf("Failed to quit driver: %v", qerr)
		}
		return nil, fmt.Errorf("failed to load pages: %w", err)
	}

	opts.Logger.Infof("Run %s started with %d page(s).", runID, len(reg.Names()))
	return &Run{
		ID:       runID,
		Plan:     plan,
		Driver:   drv,
		Data:     data,
		Registry: reg,
		log:      opts.Logger,
	}, nil
}

// Context returns ctx carrying the run's page registry.
func (r *Run) Context(ctx context.Context) context.Context {
	return page.WithRegistry(ctx, r.Registry)
}

// Close quits the driver. Calling it again is a no-op.
func (r *Run) Close() error {
	if r.Driver == nil {
		return nil
	}
	err := r.Driver.Quit()
	r.Driver = nil
	if err != nil {
		return fmt.Errorf("failed to quit driver: %w", err)
	}
	r.log.Debugf("Run %s closed.", r.ID)
	return nil
}
