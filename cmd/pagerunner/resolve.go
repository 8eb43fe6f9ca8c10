package main

import (
	"encoding/json"
	"fmt"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/entrhq/pagerunner/pkg/capabilities"
	"github.com/entrhq/pagerunner/pkg/driver"
	"github.com/entrhq/pagerunner/pkg/harness"
	"github.com/entrhq/pagerunner/pkg/merge"
	"github.com/entrhq/pagerunner/pkg/session"
)

// resolvedDocument is the printed outcome of resolve.
type resolvedDocument struct {
	Session      map[string]any `json:"session" yaml:"session"`
	Capabilities map[string]any `json:"capabilities" yaml:"capabilities"`
	Notices      []string       `json:"notices,omitempty" yaml:"notices,omitempty"`
}

func newResolveCmd(c *cli) *cobra.Command {
	var (
		format  string
		sources bool
		copyCap bool
	)
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Print the resolved session and capabilities",
		Long: `Resolve the session and the capabilities from the flags and the config
file without opening a driver. Secrets are masked in the output.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "json" && format != "yaml" {
				return fmt.Errorf("unknown format %q (want json or yaml)", format)
			}
			opts, err := c.options()
			if err != nil {
				return err
			}
			plan, err := harness.Resolve(opts)
			if err != nil {
				return err
			}

			doc := newResolvedDocument(plan)
			var out []byte
			lexer := format
			if format == "yaml" {
				out, err = yaml.Marshal(doc)
			} else {
				out, err = json.MarshalIndent(doc, "", "  ")
				out = append(out, '\n')
			}
			if err != nil {
				return fmt.Errorf("failed to encode output: %w", err)
			}

			w := cmd.OutOrStdout()
			if err := c.printSource(w, string(out), lexer); err != nil {
				return err
			}

			if sources {
				c.printSources(cmd, plan)
			}

			if copyCap {
				capJSON, err := json.MarshalIndent(doc.Capabilities, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to encode capabilities: %w", err)
				}
				if err := clipboard.WriteAll(string(capJSON)); err != nil {
					return fmt.Errorf("failed to copy capabilities: %w", err)
				}
				fmt.Fprintln(cmd.ErrOrStderr(), c.style(cmd.ErrOrStderr(), okStyle, "✓ capabilities copied to the clipboard"))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "Output format: json or yaml")
	cmd.Flags().BoolVar(&sources, "sources", false, "Print where each value comes from")
	cmd.Flags().BoolVar(&copyCap, "copy", false, "Copy the capabilities JSON to the clipboard")
	return cmd
}

func newResolvedDocument(plan *harness.Plan) resolvedDocument {
	doc := resolvedDocument{
		Session:      redactSession(plan.Session.Fields()),
		Capabilities: redactCapabilities(plan.Capabilities),
	}
	for _, n := range plan.Notices {
		doc.Notices = append(doc.Notices, n.String())
	}
	return doc
}

// redactSession masks secrets and the credentials of executor URLs.
func redactSession(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		switch {
		case k == session.KeyCommandExecutor || k == session.KeyGridURL:
			out[k] = driver.RedactURL(fmt.Sprint(v))
		case merge.IsSecret(k):
			out[k] = merge.Redact(k, v)
		default:
			out[k] = v
		}
	}
	return out
}

// redactCapabilities masks secret capabilities, nested ones included.
func redactCapabilities(caps map[string]any) map[string]any {
	out := make(map[string]any, len(caps))
	for k, v := range caps {
		if merge.IsSecret(k) {
			out[k] = merge.Redact(k, v)
			continue
		}
		out[k] = redactValue(v)
	}
	return out
}

func redactValue(v any) any {
	switch t := v.(type) {
	case capabilities.Map:
		return redactCapabilities(t)
	case map[string]any:
		return redactCapabilities(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = redactValue(e)
		}
		return out
	}
	return v
}

func (c *cli) printSources(cmd *cobra.Command, plan *harness.Plan) {
	w := cmd.OutOrStdout()
	fmt.Fprintln(w)

	rows := func(items map[string]any, src map[string]merge.Source, fallback string) [][]string {
		var out [][]string
		for _, r := range sourceRows(items, src, fallback) {
			out = append(out, []string{r.key, r.value, r.source})
		}
		return out
	}

	c.printTable(w, "Session", []string{"KEY", "VALUE", "SOURCE"},
		rows(redactSession(plan.Session.Fields()), plan.SessionSources, "derived"))
	c.printTable(w, "Capabilities", []string{"KEY", "VALUE", "SOURCE"},
		rows(redactCapabilities(plan.Capabilities), plan.CapabilitySources, "rule"))

	for _, n := range plan.Notices {
		fmt.Fprintln(w, c.style(w, warnStyle, "! "+n.String()))
	}
}
