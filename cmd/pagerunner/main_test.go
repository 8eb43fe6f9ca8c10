package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/entrhq/pagerunner/examples/pages"
	"github.com/entrhq/pagerunner/pkg/capabilities"
	"github.com/entrhq/pagerunner/pkg/config"
	"github.com/entrhq/pagerunner/pkg/driver"
	"github.com/entrhq/pagerunner/pkg/logging"
	"github.com/entrhq/pagerunner/pkg/page"
	"github.com/entrhq/pagerunner/pkg/session"
)

type fakeDriver struct {
	navigated []string
	quits     int
}

func (d *fakeDriver) Navigate(ctx context.Context, url string) error {
	d.navigated = append(d.navigated, url)
	return nil
}
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

type readyPage struct {
	page.Base
}

func (p *readyPage) IsOnFocus(ctx context.Context) (bool, error) { return true, nil }

type plainPage struct {
	page.Base
}

type result struct {
	stdout string
	stderr string
	log    string
}

// execute runs the root command with args and an isolated settings file.
func execute(t *testing.T, c *cli, args ...string) (result, error) {
	t.Helper()
	var stdout, stderr, log bytes.Buffer
	if c.log == nil {
		c.log = logging.NewWithWriter("pagerunner", &log)
	}

	root := newRootCmd(c)
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	settings := filepath.Join(t.TempDir(), "settings.json")
	root.SetArgs(append([]string{"--settings", settings, "--no-color"}, args...))

	err := root.ExecuteContext(context.Background())
	return result{stdout: stdout.String(), stderr: stderr.String(), log: log.String()}, err
}

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const configJSON = `{
  "session": {"environment": "sit", "zone": "br", "project": "bees"},
  "capabilities": {
    "android": {
      "local": {"app": {"br": "/apps/br.apk"}, "deviceName": "emulator-5554"}
    },
    "web": {"local": {"browserName": "chrome"}}
  }
}`

func TestResolve_JSON(t *testing.T) {
	cfg := writeConfig(t, "config.json", configJSON)

	res, err := execute(t, &cli{},
		"--config-file", cfg,
		"--capabilities", "platformName=android",
		"--app-center-token", "s3cr3t",
		"resolve",
	)
	require.NoError(t, err)
	assert.NotContains(t, res.stdout, "s3cr3t")

	var doc resolvedDocument
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &doc))
	assert.Equal(t, "android", doc.Session[session.KeyPlatform])
	assert.Equal(t, "sit", doc.Session[session.KeyEnvironment])
	assert.Equal(t, "****", doc.Session[session.KeyAppCenterToken])
	assert.Equal(t, "/apps/br.apk", doc.Capabilities[capabilities.KeyApp])
}

func TestResolve_YAMLWithSources(t *testing.T) {
	cfg := writeConfig(t, "config.json", configJSON)

	res, err := execute(t, &cli{},
		"--config-file", cfg,
		"--capabilities", "platformName=android",
		"--environment", "uat",
		"resolve", "--format", "yaml", "--sources",
	)
	require.NoError(t, err)

	head, _, found := bytes.Cut([]byte(res.stdout), []byte("\n\n"))
	require.True(t, found)
	var doc resolvedDocument
	require.NoError(t, yaml.Unmarshal(head, &doc))
	assert.Equal(t, "uat", doc.Session[session.KeyEnvironment])

	assert.Contains(t, res.stdout, "Session")
	assert.Contains(t, res.stdout, "Capabilities")
	assert.Contains(t, res.stdout, "command line")
	assert.Contains(t, res.stdout, "config file")
	assert.Contains(t, res.stdout, "derived")
}

func TestResolve_MasksCapabilitySecrets(t *testing.T) {
	cfg := writeConfig(t, "config.json", `{
  "capabilities": {
    "web": {"local": {"browserName": "chrome", "bstack:options": {"accessKey": "NESTED", "os": "Windows"}}}
  }
}`)
	args := []string{
		"--config-file", cfg,
		"--environment", "qa",
		"--capabilities", "platformName=web",
		"--capabilities", "browserstack.key=SUPERSECRET",
	}

	res, err := execute(t, &cli{}, append(args, "resolve")...)
	require.NoError(t, err)
	assert.NotContains(t, res.stdout, "SUPERSECRET")
	assert.NotContains(t, res.stdout, "NESTED")

	var doc resolvedDocument
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &doc))
	assert.Equal(t, "****", doc.Capabilities["browserstack.key"])
	nested, ok := doc.Capabilities["bstack:options"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "****", nested["accessKey"])
	assert.Equal(t, "Windows", nested["os"])

	res, err = execute(t, &cli{}, append(args, "resolve", "--format", "yaml", "--sources")...)
	require.NoError(t, err)
	assert.NotContains(t, res.stdout, "SUPERSECRET")
	assert.NotContains(t, res.stdout, "NESTED")
}

func TestRedactCapabilities(t *testing.T) {
	caps := capabilities.Map{
		"browserName": "chrome",
		"accessKey":   "k1",
		"extensions":  []any{map[string]any{"token": "t1", "name": "ext"}},
	}
	got := redactCapabilities(caps)

	assert.Equal(t, "chrome", got["browserName"])
	assert.Equal(t, "****", got["accessKey"])
	assert.Equal(t, []any{map[string]any{"token": "****", "name": "ext"}}, got["extensions"])
	assert.Equal(t, "k1", caps["accessKey"])
}

func TestResolve_UnknownFormat(t *testing.T) {
	_, err := execute(t, &cli{},
		"--capabilities", "platformName=web",
		"--environment", "uat",
		"resolve", "--format", "toml",
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown format")
}

func TestResolve_InvalidCapability(t *testing.T) {
	_, err := execute(t, &cli{}, "--capabilities", "platformName", "resolve")
	assert.ErrorIs(t, err, session.ErrInvalidArgument)
}

func TestValidate(t *testing.T) {
	res, err := execute(t, &cli{}, "validate", writeConfig(t, "ok.json", configJSON))
	require.NoError(t, err)
	assert.Contains(t, res.stdout, "is valid")

	res, err = execute(t, &cli{}, "validate", writeConfig(t, "bad.json", "{not json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed with 1 error(s)")
	assert.Contains(t, res.stderr, "Validation failed")
}

func TestSchema(t *testing.T) {
	res, err := execute(t, &cli{}, "schema")
	require.NoError(t, err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &schema))
	assert.Contains(t, res.stdout, `"platformName"`)
}

func TestPages_DefaultCatalog(t *testing.T) {
	res, err := execute(t, &cli{}, "pages")
	require.NoError(t, err)

	assert.Contains(t, res.stdout, "Pages (3)")
	for _, name := range []string{pages.SeleniumHomeName, pages.LandingName, pages.LoginName} {
		assert.Contains(t, res.stdout, name)
	}
	assert.Contains(t, res.stdout, "*pages.LoginMapping")
}

func TestPages_Filter(t *testing.T) {
	res, err := execute(t, &cli{}, "pages", "--filter", "log*")
	require.NoError(t, err)
	assert.Contains(t, res.stdout, "Pages (1)")
	assert.NotContains(t, res.stdout, pages.LandingName)

	catalog := page.NewCatalog()
	res, err = execute(t, &cli{catalog: catalog}, "pages")
	require.NoError(t, err)
	assert.Contains(t, res.stdout, "no pages registered")
}

func checkCLI(drv *fakeDriver) *cli {
	catalog := page.NewCatalog()
	catalog.RegisterPage("home", func() page.Page { return &readyPage{} })
	catalog.RegisterPage("plain", func() page.Page { return &plainPage{} })
	return &cli{
		catalog: catalog,
		open: func(ctx context.Context, desc session.Descriptor, caps capabilities.Map, log driver.Logger) (driver.Driver, error) {
			return drv, nil
		},
	}
}

var webArgs = []string{
	"--capabilities", "platformName=web",
	"--capabilities", "browserName=chrome",
	"--environment", "uat",
}

func TestCheck(t *testing.T) {
	drv := &fakeDriver{}
	args := append(append([]string{}, webArgs...), "check", "--page", "home", "--url", "https://example.com")

	res, err := execute(t, checkCLI(drv), args...)
	require.NoError(t, err)
	assert.Contains(t, res.stdout, `page "home" is on screen`)
	assert.Equal(t, []string{"https://example.com"}, drv.navigated)
	assert.Equal(t, 1, drv.quits)
}

func TestCheck_WaitOptionsFromSettings(t *testing.T) {
	settings := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(settings, []byte(`{"version": "1", "sections": {"waits": {"poll": "50ms", "long": "40s"}}}`), 0o600))
	require.NoError(t, config.Initialize(settings))

	c := &cli{}
	cmd := newCheckCmd(c)
	opts := c.waitOptions(cmd, config.WaitLong, 15*time.Second)
	assert.Equal(t, 40*time.Second, opts.Timeout)
	assert.Equal(t, 50*time.Millisecond, opts.Poll)

	require.NoError(t, cmd.Flags().Set("timeout", "2s"))
	opts = c.waitOptions(cmd, config.WaitLong, 2*time.Second)
	assert.Equal(t, 2*time.Second, opts.Timeout)
	assert.Equal(t, 50*time.Millisecond, opts.Poll)
}

func TestCheck_Errors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "missing page flag", args: []string{"check"}, wantErr: "--page is required"},
		{name: "unknown page", args: []string{"check", "--page", "nowhere"}, wantErr: "not registered"},
		{name: "page without focus", args: []string{"check", "--page", "plain"}, wantErr: "does not report focus"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			drv := &fakeDriver{}
			args := append(append([]string{}, webArgs...), tt.args...)

			_, err := execute(t, checkCLI(drv), args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Empty(t, drv.navigated)
		})
	}
}

func TestSetup_UnknownLogLevel(t *testing.T) {
	_, err := execute(t, &cli{}, "--log-level", "loud", "schema")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown log level")
}

func TestSetup_DuplicatePolicyFlag(t *testing.T) {
	catalog := page.NewCatalog()
	catalog.RegisterPage("home", func() page.Page { return &readyPage{} })
	catalog.RegisterPage("home", func() page.Page { return &readyPage{} })

	_, err := execute(t, &cli{catalog: catalog}, "pages")
	var se *page.StructureError
	require.ErrorAs(t, err, &se)

	res, err := execute(t, &cli{catalog: catalog}, "--duplicate-policy", "first-wins", "pages")
	require.NoError(t, err)
	assert.Contains(t, res.stdout, "Pages (1)")
}
