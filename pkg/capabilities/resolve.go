package capabilities

import (
	"errors"
	"fmt"
	"time"

	"github.com/entrhq/pagerunner/pkg/configfile"
	"github.com/entrhq/pagerunner/pkg/logging"
	"github.com/entrhq/pagerunner/pkg/merge"
	"github.com/entrhq/pagerunner/pkg/session"
)

// Option configures Resolve.
type Option func(*options)

type options struct {
	log   session.Logger
	rules []Rule
	env   Env
}

// WithLogger sets the logger receiving provenance and notice lines.
func WithLogger(l session.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithRules replaces DefaultRules.
func WithRules(rules ...Rule) Option {
	return func(o *options) { o.rules = rules }
}

// WithClock sets the clock used for the grid build name.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.env.Now = now }
}

// Resolve builds the capability map of a resolved session. cmdLine is never
// modified. Zone-scoped app and device entries of the config file that
// cannot be resolved fail with session.ErrInvalidArgument.
func Resolve(cmdLine map[string]any, file *configfile.File, desc session.Descriptor, opts ...Option) (Map, []session.Notice, error) {
	o := options{log: logging.Nop(), rules: DefaultRules()}
	for _, opt := range opts {
		opt(&o)
	}

	fileCaps, err := FromFile(file, desc)
	if err != nil {
		return nil, nil, err
	}

	var cmdCaps map[string]any
	if cmdLine != nil {
		cmdCaps = Map(cmdLine).Clone()
	}
	merged := merge.Merge(cmdCaps, map[string]any(fileCaps))
	merged.Log(o.log, merge.KindCapability)

	caps := Map(merged.Items)
	var notices []session.Notice
	for _, rule := range o.rules {
		next, ns := rule.Apply(caps, desc, o.env)
		if next != nil {
			caps = next
		}
		for _, n := range ns {
			o.log.Warnf("%s (rule %s)", n.Reason, rule.Name)
		}
		notices = append(notices, ns...)
	}

	return caps, notices, nil
}

// FromFile returns the config file capabilities block of the session
// platform and mode, with app and device resolved for the session zone.
// It returns nil when the file or the block is absent.
func FromFile(file *configfile.File, desc session.Descriptor) (Map, error) {
	block, err := file.Capabilities(string(desc.Platform), string(desc.Mode()))
	if err != nil {
		if errors.Is(err, configfile.ErrInvalidDocument) {
			return nil, fmt.Errorf("%w: %w", session.ErrInvalidArgument, err)
		}
		return nil, err
	}
	if block == nil {
		return nil, nil
	}

	caps := Map(block).Clone()
	for _, key := range []string{KeyApp, KeyDevice} {
		v, err := selectZone(key, caps[key], desc.Zone)
		if err != nil {
			return nil, err
		}
		if v != nil {
			caps[key] = v
		}
	}
	return caps, nil
}

// selectZone resolves a zone-indexed value. Strings are used as they are;
// objects must hold an entry for the zone.
func selectZone(key string, value any, zone string) (any, error) {
	if isEmpty(value) {
		return nil, nil
	}
	switch v := value.(type) {
	case string:
		return v, nil
	case map[string]any:
		if zone == "" {
			return nil, session.InvalidArgumentf("capability %q is indexed by zone but no zone was provided", key)
		}
		entry, ok := v[zone]
		if !ok || isEmpty(entry) {
			return nil, session.InvalidArgumentf("capability %q has no entry for zone %q", key, zone)
		}
		return entry, nil
	default:
		return nil, session.InvalidArgumentf("capability %q must be a string or an object indexed by zone, got %T", key, value)
	}
}
