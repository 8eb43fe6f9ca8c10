package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/entrhq/pagerunner/pkg/config"
	"github.com/entrhq/pagerunner/pkg/configfile"
	"github.com/entrhq/pagerunner/pkg/harness"
	"github.com/entrhq/pagerunner/pkg/page"
	"github.com/entrhq/pagerunner/pkg/wait"
)

// --- validate ---

func newValidateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <config-file>",
		Short: "Validate a session config file against the schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			w := cmd.OutOrStdout()

			errs := configfile.Validate(path)
			if len(errs) > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "Validation failed: %d error(s)\n\n", len(errs))
				for i, e := range errs {
					fmt.Fprintf(cmd.ErrOrStderr(), "  %d. %s\n", i+1, e.Message)
					if e.Path != "" {
						fmt.Fprintf(cmd.ErrOrStderr(), "     at: %s\n", e.Path)
					}
				}
				return fmt.Errorf("validation failed with %d error(s)", len(errs))
			}
			fmt.Fprintln(w, c.style(w, okStyle, fmt.Sprintf("✓ %s is valid", path)))
			return nil
		},
	}
}

// --- schema ---

func newSchemaCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema of the session config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := configfile.GenerateJSONSchema()
			if err != nil {
				return err
			}
			return c.printSource(cmd.OutOrStdout(), string(data)+"\n", "json")
		},
	}
}

// --- pages ---

func newPagesCmd(c *cli) *cobra.Command {
	var filters []string
	cmd := &cobra.Command{
		Use:   "pages",
		Short: "List the registered pages and their mappings",
		Long: `Load every registered page without a driver and list it with its
mapping. Duplicate names and malformed mappings are reported as errors.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := c.options()
			if err != nil {
				return err
			}
			catalog := opts.Catalog
			if catalog == nil {
				catalog = page.DefaultCatalog
			}

			reg, err := page.Load(catalog, page.Injection{},
				page.WithDuplicatePolicy(opts.Policy),
				page.WithPageFilter(filters...),
				page.WithLogger(c.log),
			)
			if err != nil {
				return err
			}

			var rows [][]string
			for _, p := range reg.Pages() {
				mapping := "-"
				if m, ok := reg.Mapping(p.Name()); ok {
					mapping = fmt.Sprintf("%T", m)
				}
				_, focusable := p.(page.Focusable)
				rows = append(rows, []string{p.Name(), fmt.Sprintf("%T", p), mapping, fmt.Sprint(focusable)})
			}

			w := cmd.OutOrStdout()
			if len(rows) == 0 {
				fmt.Fprintln(w, c.style(w, mutedStyle, "no pages registered"))
				return nil
			}
			c.printTable(w, fmt.Sprintf("Pages (%d)", len(rows)), []string{"NAME", "PAGE", "MAPPING", "FOCUS"}, rows)
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&filters, "filter", nil, "Only pages whose name matches the glob (repeatable)")
	return cmd
}

// --- check ---

func newCheckCmd(c *cli) *cobra.Command {
	var (
		url      string
		pageName string
		timeout  time.Duration
		profile  string
	)
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Open a driver and wait until a page is on screen",
		Long: `Resolve the session, start the driver, optionally navigate to --url and
wait until the page named by --page reports focus.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if pageName == "" {
				return errors.New("--page is required")
			}
			ctx := cmd.Context()
			w := cmd.OutOrStdout()

			opts, err := c.options()
			if err != nil {
				return err
			}
			plan, err := harness.Resolve(opts)
			if err != nil {
				return err
			}
			for _, n := range plan.Notices {
				fmt.Fprintln(cmd.ErrOrStderr(), c.style(cmd.ErrOrStderr(), warnStyle, "! "+n.String()))
			}

			run, err := harness.Start(ctx, plan, opts)
			if err != nil {
				return err
			}
			defer func() {
				if err := run.Close(); err != nil {
					c.log.Warnf("%v", err)
				}
			}()

			p, ok := run.Registry.Page(pageName)
			if !ok {
				return fmt.Errorf("%w: %q", page.ErrNotRegistered, pageName)
			}
			focusable, ok := p.(page.Focusable)
			if !ok {
				return fmt.Errorf("page %q does not report focus", pageName)
			}

			if url != "" {
				if err := run.Driver.Navigate(ctx, url); err != nil {
					return err
				}
			}

			if err := page.WaitForFocusWith(ctx, focusable, c.waitOptions(cmd, profile, timeout)); err != nil {
				return err
			}
			fmt.Fprintln(w, c.style(w, okStyle, fmt.Sprintf("✓ page %q is on screen", pageName)))
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "URL to open before waiting")
	cmd.Flags().StringVar(&pageName, "page", "", "Registered page name")
	cmd.Flags().DurationVar(&timeout, "timeout", 15*time.Second, "How long to wait for the page")
	cmd.Flags().StringVar(&profile, "wait", config.WaitShort, "Wait profile from the settings: tiny, short or long")
	return cmd
}

// waitOptions returns the settings wait profile. An explicit --timeout
// replaces the profile timeout and keeps its poll interval.
func (c *cli) waitOptions(cmd *cobra.Command, profile string, timeout time.Duration) wait.Options {
	opts := wait.Options{Timeout: timeout}
	if waits := config.GetWaits(); waits != nil {
		opts = waits.Options(profile)
		if cmd.Flags().Changed("timeout") {
			opts.Timeout = timeout
		}
	}
	return opts
}
