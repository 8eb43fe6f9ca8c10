// Package session resolves the run-level description of a test session from
// the command line and the optional config file.
package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/entrhq/pagerunner/pkg/configfile"
	"github.com/entrhq/pagerunner/pkg/logging"
	"github.com/entrhq/pagerunner/pkg/merge"
)

// Logger is the logging surface used during resolution.
type Logger interface {
	Debugf(format string, v ...any)
	Infof(format string, v ...any)
	Warnf(format string, v ...any)
}

// Option configures Resolve.
type Option func(*options)

type options struct {
	log Logger
}

// WithLogger sets the logger receiving provenance and notice lines.
func WithLogger(l Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

func newOptions(opts []Option) options {
	o := options{log: logging.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// ResolvePath loads the config file at path (empty for none) and resolves
// the session. The loaded file is returned for capability resolution.
func ResolvePath(args Args, path string, opts ...Option) (Descriptor, *configfile.File, []Notice, error) {
	file, err := configfile.Load(path)
	if err != nil {
		return Descriptor{}, nil, nil, err
	}
	desc, notices, err := Resolve(args, file, opts...)
	return desc, file, notices, err
}

// Resolve builds the session descriptor. Command-line values win over the
// config file session block; empty values count as not provided.
//
// It fails with ErrInvalidArgument when the environment is missing, when
// grid mode is requested without credentials, or when an input does not fit
// the descriptor. A headless request that cannot be honoured is turned off
// and reported as a Notice.
func Resolve(args Args, file *configfile.File, opts ...Option) (Descriptor, []Notice, error) {
	o := newOptions(opts)

	merged, err := mergeInputs(args, file)
	if err != nil {
		return Descriptor{}, nil, err
	}
	if file != nil {
		o.log.Infof("Configuration file found at %q.", file.Path())
	} else {
		o.log.Debugf("The config file was not provided. Proceeding without this information.")
	}
	merged.Log(o.log, merge.KindArgument)

	desc, err := decode(merged.Items)
	if err != nil {
		return Descriptor{}, nil, err
	}
	if desc.CommandExecutor == "" {
		desc.CommandExecutor = commandExecutor(desc)
	}

	if err := validate(desc); err != nil {
		return Descriptor{}, nil, err
	}

	desc, notices := repairHeadless(desc)
	for _, n := range notices {
		o.log.Warnf("%s Testing will continue with %s disabled (%v -> %v).", n.Reason, n.Field, n.From, n.To)
	}

	return desc, notices, nil
}

// Sources reports, per session key, whether the value Resolve uses comes
// from the command line or the config file. Derived values are absent.
func Sources(args Args, file *configfile.File) (map[string]merge.Source, error) {
	merged, err := mergeInputs(args, file)
	if err != nil {
		return nil, err
	}
	return merged.Sources(), nil
}

func mergeInputs(args Args, file *configfile.File) (merge.Result, error) {
	cmdItems, err := args.items()
	if err != nil {
		return merge.Result{}, err
	}
	fileItems, err := fileSessionItems(file)
	if err != nil {
		return merge.Result{}, err
	}
	return merge.Merge(cmdItems, fileItems), nil
}

// fileSessionItems extracts the config file session block, moving the keys
// the file nests differently to their session names.
func fileSessionItems(file *configfile.File) (map[string]any, error) {
	block, err := file.Session()
	if err != nil {
		if errors.Is(err, configfile.ErrInvalidDocument) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
		}
		return nil, err
	}
	if block == nil {
		return nil, nil
	}

	items := make(map[string]any, len(block))
	for k, v := range block {
		items[k] = v
	}
	for from, to := range map[string]string{
		FileKeyPlatformName: KeyPlatform,
		FileKeyGridUser:     KeyGridUser,
		FileKeyGridKey:      KeyGridKey,
	} {
		if v, ok := items[from]; ok {
			delete(items, from)
			items[to] = v
		}
	}
	return dropEmpty(items), nil
}

// decode maps the merged items onto the closed descriptor field set.
func decode(items map[string]any) (Descriptor, error) {
	data, err := json.Marshal(items)
	if err != nil {
		return Descriptor{}, InvalidArgumentf("session arguments cannot be encoded: %v", err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var desc Descriptor
	if err := dec.Decode(&desc); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return Descriptor{}, InvalidArgumentf("session argument %q must be a %s, got %s", typeErr.Field, typeErr.Type, typeErr.Value)
		}
		if field, ok := strings.CutPrefix(err.Error(), "json: unknown field "); ok {
			return Descriptor{}, InvalidArgumentf("unknown session argument %s", field)
		}
		return Descriptor{}, InvalidArgumentf("session arguments: %v", err)
	}
	return desc, nil
}

func validate(d Descriptor) error {
	if d.Environment == "" {
		return InvalidArgumentf("the %q was not provided", KeyEnvironment)
	}
	if d.Platform != "" && !d.Platform.Valid() {
		return InvalidArgumentf("the platform %q is not supported, expected one of %v", d.Platform, platforms)
	}
	if d.CloudGrid {
		if d.GridUser == "" {
			return InvalidArgumentf("the %q was not provided", FileKeyGridUser)
		}
		if d.GridKey == "" {
			return InvalidArgumentf("the %q was not provided", FileKeyGridKey)
		}
	}
	return nil
}

// repairHeadless forces headless off where it cannot run: on the cloud grid
// and on any platform other than web.
func repairHeadless(d Descriptor) (Descriptor, []Notice) {
	if !d.Headless {
		return d, nil
	}

	var reason string
	switch {
	case d.CloudGrid:
		reason = "Headless NOT supported on BrowserStack executions."
	case d.Platform != PlatformWeb:
		reason = fmt.Sprintf("Headless NOT supported for platform %q.", d.Platform)
	default:
		return d, nil
	}

	d.Headless = false
	return d, []Notice{{
		Kind:   NoticeDowngrade,
		Field:  KeyHeadless,
		From:   true,
		To:     false,
		Reason: reason,
	}}
}
