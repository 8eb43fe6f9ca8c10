// Package merge combines command-line and config-file key/value sources.
//
// The command line always wins on key collision. Every key of the result
// carries the name of the source it was taken from, so callers can explain
// where a session argument or a capability came from.
package merge

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Source names the origin of a merged value.
type Source string

const (
	SourceCommandLine Source = "command line"
	SourceConfigFile  Source = "config file"
)

// Kind selects the wording of provenance log lines.
type Kind string

const (
	KindArgument   Kind = "Argument"
	KindCapability Kind = "Capability"
)

// Provenance records which source a merged key was taken from.
type Provenance struct {
	Key    string
	Source Source
	Value  any
	// Overridden is true when the key existed in both sources.
	Overridden bool
}

// Result is the outcome of Merge.
type Result struct {
	Items      map[string]any
	Provenance []Provenance
}

// Logger is the subset of logging.Logger used for provenance output.
type Logger interface {
	Debugf(format string, v ...any)
}

// Merge overlays cmdLine on top of file. Inputs that are not
// map[string]any (nil included) are treated as empty. The inputs are never
// modified.
func Merge(cmdLine, file any) Result {
	cmdItems, _ := cmdLine.(map[string]any)
	fileItems, _ := file.(map[string]any)

	items := make(map[string]any, len(cmdItems)+len(fileItems))
	for k, v := range fileItems {
		items[k] = v
	}
	for k, v := range cmdItems {
		items[k] = v
	}

	prov := make([]Provenance, 0, len(items))
	for k, v := range items {
		_, inCmd := cmdItems[k]
		_, inFile := fileItems[k]
		p := Provenance{Key: k, Value: v, Source: SourceConfigFile}
		if inCmd {
			p.Source = SourceCommandLine
			p.Overridden = inFile
		}
		prov = append(prov, p)
	}
	sort.Slice(prov, func(i, j int) bool { return prov[i].Key < prov[j].Key })

	return Result{Items: items, Provenance: prov}
}

// Log writes one debug line per merged key.
func (r Result) Log(l Logger, kind Kind) {
	if l == nil {
		return
	}
	for _, p := range r.Provenance {
		l.Debugf("%s: %q, source: %q, value: %q.", kind, p.Key, p.Source, Redact(p.Key, p.Value))
	}
}

// Sources returns the provenance keyed by item name.
func (r Result) Sources() map[string]Source {
	out := make(map[string]Source, len(r.Provenance))
	for _, p := range r.Provenance {
		out[p.Key] = p.Source
	}
	return out
}

var secretKey = regexp.MustCompile(`(?i)(key|password|token|secret)$`)

// Redact renders value for diagnostics, masking secrets by key name.
func Redact(key string, value any) string {
	s := fmt.Sprint(value)
	if secretKey.MatchString(key) && s != "" {
		return "****"
	}
	return s
}

// IsSecret reports whether values under key are masked in diagnostics.
func IsSecret(key string) bool {
	return secretKey.MatchString(strings.TrimSpace(key))
}
