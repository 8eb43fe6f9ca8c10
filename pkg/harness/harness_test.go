package harness

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/pagerunner/pkg/capabilities"
	"github.com/entrhq/pagerunner/pkg/driver"
	"github.com/entrhq/pagerunner/pkg/logging"
	"github.com/entrhq/pagerunner/pkg/merge"
	"github.com/entrhq/pagerunner/pkg/page"
	"github.com/entrhq/pagerunner/pkg/session"
)

type fakeDriver struct {
	quits int
}

func (d *fakeDriver) Navigate(ctx context.Context, url string) error { return nil }
func (d *fakeDriver) Find(ctx context.Context, l page.Locator) (page.Element, error) {
	return nil, driver.ErrNoSuchElement
}
func (d *fakeDriver) WaitFor(ctx context.Context, l page.Locator, s page.State, timeout time.Duration) (page.Element, error) {
	return nil, driver.ErrNoSuchElement
}
func (d *fakeDriver) Quit() error {
	d.quits++
	return nil
}

type homePage struct {
	page.Base
}

func opener(d *fakeDriver, got *capabilities.Map) OpenFunc {
	return func(ctx context.Context, desc session.Descriptor, caps capabilities.Map, log driver.Logger) (driver.Driver, error) {
		if got != nil {
			*got = caps
		}
		return d, nil
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

const configJSON = `{
  "session": {"environment": "sit", "zone": "br", "project": "bees"},
  "capabilities": {
    "android": {
      "local": {"app": {"br": "/apps/br.apk"}, "deviceName": "emulator-5554"}
    },
    "web": {
      "local": {"browserName": "chrome"}
    }
  }
}`

func TestResolve_MobileFromConfigFile(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "config.json")
	writeFile(t, cfg, configJSON)

	plan, err := Resolve(Options{
		Args:       session.Args{Capabilities: map[string]any{"platformName": "android"}},
		ConfigFile: cfg,
	})
	require.NoError(t, err)

	assert.Equal(t, session.PlatformAndroid, plan.Session.Platform)
	assert.Equal(t, "sit", plan.Session.Environment)
	assert.Equal(t, session.LocalMobileExecutor, plan.Session.CommandExecutor)
	assert.Equal(t, "/apps/br.apk", plan.Capabilities.String(capabilities.KeyApp))
	assert.Equal(t, "android", plan.Capabilities.String(capabilities.KeyPlatformName))
	require.NotNil(t, plan.File)
	assert.Equal(t, cfg, plan.File.Path())

	assert.Equal(t, merge.SourceConfigFile, plan.SessionSources["environment"])
	assert.Equal(t, merge.SourceCommandLine, plan.SessionSources["platform"])
	assert.Equal(t, merge.SourceConfigFile, plan.CapabilitySources["app"])
	assert.Equal(t, merge.SourceCommandLine, plan.CapabilitySources["platformName"])
}

func TestResolve_UnsupportedLocalBrowser(t *testing.T) {
	_, err := Resolve(Options{Args: session.Args{
		Capabilities: map[string]any{"platformName": "web", "browserName": "opera"},
		Environment:  "uat",
	}})
	assert.ErrorIs(t, err, session.ErrUnsupportedBrowser)
}

func TestResolve_SessionFailureStopsEarly(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "config.yaml")
	// The capabilities block would fail on its own: app is indexed by zone
	// and no zone is set.
	writeFile(t, cfg, "capabilities:\n  android:\n    local:\n      app:\n        br: /apps/br.apk\n")

	_, err := Resolve(Options{
		Args:       session.Args{Capabilities: map[string]any{"platformName": "android"}},
		ConfigFile: cfg,
	})
	require.ErrorIs(t, err, session.ErrInvalidArgument)
	assert.Contains(t, err.Error(), "failed to resolve session")
	assert.Contains(t, err.Error(), "environment")
}

func TestResolve_HeadlessNotices(t *testing.T) {
	var buf bytes.Buffer
	plan, err := Resolve(Options{
		Args: session.Args{
			Capabilities: map[string]any{"platformName": "web", "browserName": "safari"},
			Environment:  "uat",
			Headless:     true,
		},
		Logger: logging.NewWithWriter("harness", &buf),
	})
	require.NoError(t, err)

	assert.True(t, plan.Session.Headless)
	require.Len(t, plan.Notices, 1)
	assert.Equal(t, session.NoticeUnsupported, plan.Notices[0].Kind)
	assert.Contains(t, buf.String(), "Headless mode only supported")
}

func TestStart(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "static_data", "android", "br", "messages.yaml"), "login:\n  welcome: Bem-vindo\n")
	cfg := filepath.Join(root, "config.json")
	writeFile(t, cfg, configJSON)

	catalog := page.NewCatalog()
	catalog.RegisterPage("home", func() page.Page { return &homePage{} })

	opts := Options{
		Args:       session.Args{Capabilities: map[string]any{"platformName": "android"}},
		ConfigFile: cfg,
		Catalog:    catalog,
		DataRoot:   root,
	}
	plan, err := Resolve(opts)
	require.NoError(t, err)

	drv := &fakeDriver{}
	var opened capabilities.Map
	opts.Open = opener(drv, &opened)

	run, err := Start(context.Background(), plan, opts)
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, plan.Capabilities, opened)

	home, err := page.Get[*homePage](run.Registry, "home")
	require.NoError(t, err)
	assert.Same(t, drv, home.Driver())
	assert.Equal(t, "Bem-vindo", home.Data().String("messages.login.welcome"))
	id, ok := home.Object("run_id")
	require.True(t, ok)
	assert.Equal(t, run.ID, id)

	reg, ok := page.FromContext(run.Context(context.Background()))
	require.True(t, ok)
	assert.Same(t, run.Registry, reg)

	require.NoError(t, run.Close())
	require.NoError(t, run.Close())
	assert.Equal(t, 1, drv.quits)
}

func TestStart_QuitsDriverWhenPagesFail(t *testing.T) {
	catalog := page.NewCatalog()
	catalog.RegisterPage("home", func() page.Page { return &homePage{} })
	catalog.RegisterPage("home", func() page.Page { return &homePage{} })

	drv := &fakeDriver{}
	opts := Options{Catalog: catalog, Open: opener(drv, nil)}
	plan := &Plan{Session: session.Descriptor{Platform: session.PlatformWeb, Environment: "uat"}}

	_, err := Start(context.Background(), plan, opts)
	var se *page.StructureError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 1, drv.quits)

	_, err = Start(context.Background(), plan, Options{Catalog: catalog, Open: opener(drv, nil), Policy: page.FirstWins})
	require.NoError(t, err)
}

func TestStart_DriverFailure(t *testing.T) {
	boom := errors.New("boom")
	opts := Options{
		Catalog: page.NewCatalog(),
		Open: func(ctx context.Context, desc session.Descriptor, caps capabilities.Map, log driver.Logger) (driver.Driver, error) {
			return nil, boom
		},
	}
	_, err := Start(context.Background(), &Plan{}, opts)
	assert.ErrorIs(t, err, boom)

	_, err = Start(context.Background(), nil, opts)
	assert.Error(t, err)
}
