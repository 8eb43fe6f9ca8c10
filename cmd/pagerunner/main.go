// Package main provides the pagerunner command line: it resolves test
// sessions, validates config files and checks pages against a live driver.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	_ "github.com/entrhq/pagerunner/examples/pages"
	"github.com/entrhq/pagerunner/pkg/config"
	"github.com/entrhq/pagerunner/pkg/harness"
	"github.com/entrhq/pagerunner/pkg/logging"
	"github.com/entrhq/pagerunner/pkg/page"
	"github.com/entrhq/pagerunner/pkg/session"
)

// Version is set at build time via ldflags.
var version = "dev"

func main() {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nShutting down...")
		cancel()
	}()

	err := newRootCmd(&cli{}).ExecuteContext(ctx)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// cli holds the persistent flags and the collaborators shared by commands.
type cli struct {
	capabilities   []string
	cmdExec        string
	environment    string
	cloudGrid      bool
	gridUser       string
	gridKey        string
	configFile     string
	headless       bool
	docker         bool
	appCenterToken string
	project        string
	zone           string

	logLevel string
	verbose  bool
	settings string
	dataRoot string
	policy   string
	noColor  bool

	log     *logging.Logger
	ownLog  bool
	catalog *page.Catalog
	open    harness.OpenFunc
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "pagerunner",
		Short:         "UI test session resolver and page registry",
		Long:          "pagerunner resolves the session and capabilities of a UI test run from flags and a config file, and drives registered pages.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			c.teardown()
		},
	}
	f := root.PersistentFlags()
	f.StringArrayVar(&c.capabilities, "capabilities", nil, "Capability as key=value (repeatable)")
	f.StringVar(&c.cmdExec, "cmd-exec", "", "WebDriver command executor URL")
	f.StringVar(&c.environment, "environment", "", "Target environment (uat, sit, prod, qa, dev)")
	f.BoolVar(&c.cloudGrid, "browserstack", false, "Run on the BrowserStack grid")
	f.StringVar(&c.gridUser, "browserstack-user", "", "BrowserStack user")
	f.StringVar(&c.gridKey, "browserstack-key", "", "BrowserStack access key")
	f.StringVar(&c.configFile, "config-file", "", "Session config file (JSON or YAML)")
	f.BoolVar(&c.headless, "headless", false, "Run browsers headless")
	f.BoolVar(&c.docker, "web-docker", false, "Run web sessions on the docker selenium hub")
	f.StringVar(&c.appCenterToken, "app-center-token", "", "App Center API token")
	f.StringVar(&c.project, "project", "", "Project name")
	f.StringVar(&c.zone, "zone", "", "Zone code")

	f.StringVar(&c.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	f.BoolVarP(&c.verbose, "verbose", "v", false, "Mirror the log to stderr")
	f.StringVar(&c.settings, "settings", "", "Settings file (default ~/.pagerunner/config.json)")
	f.StringVar(&c.dataRoot, "data-root", "", "Directory holding static_data")
	f.StringVar(&c.policy, "duplicate-policy", "", "Duplicate page names: fail or first-wins")
	f.BoolVar(&c.noColor, "no-color", false, "Disable colored output")

	root.AddCommand(
		newResolveCmd(c),
		newValidateCmd(c),
		newSchemaCmd(c),
		newPagesCmd(c),
		newCheckCmd(c),
	)
	return root
}

// setup loads the settings and the logger. Flags win over settings.
func (c *cli) setup(cmd *cobra.Command) error {
	if err := config.Initialize(c.settings); err != nil {
		return fmt.Errorf("failed to initialize settings: %w", err)
	}

	if runner := config.GetRunner(); runner != nil {
		level, policy, root := runner.Settings()
		if !cmd.Flags().Changed("log-level") {
			c.logLevel = level
		}
		if !cmd.Flags().Changed("duplicate-policy") {
			c.policy = policy.String()
		}
		if !cmd.Flags().Changed("data-root") {
			c.dataRoot = root
		}
	}

	if c.logLevel != "" && !logging.Level.SetByName(c.logLevel) {
		return fmt.Errorf("unknown log level %q", c.logLevel)
	}

	if c.log == nil {
		logging.EnableTerminal(c.verbose)
		// A failing log file falls back to stderr; the run goes on.
		c.log, _ = logging.NewLogger("pagerunner")
		c.ownLog = true
	}
	return nil
}

func (c *cli) teardown() {
	if c.ownLog && c.log != nil {
		c.log.Close()
	}
}

// options builds the harness options from the flags.
func (c *cli) options() (harness.Options, error) {
	caps, err := session.ParseCapabilities(c.capabilities)
	if err != nil {
		return harness.Options{}, err
	}
	policy, err := page.ParsePolicy(c.policy)
	if err != nil {
		return harness.Options{}, err
	}

	return harness.Options{
		Args: session.Args{
			Capabilities:    caps,
			CommandExecutor: c.cmdExec,
			Environment:     c.environment,
			CloudGrid:       c.cloudGrid,
			GridUser:        c.gridUser,
			GridKey:         c.gridKey,
			Headless:        c.headless,
			Docker:          c.docker,
			AppCenterToken:  c.appCenterToken,
			Project:         c.project,
			Zone:            c.zone,
		},
		ConfigFile: c.configFile,
		Catalog:    c.catalog,
		DataRoot:   c.dataRoot,
		Logger:     c.log,
		Policy:     policy,
		Open:       c.open,
	}, nil
}
