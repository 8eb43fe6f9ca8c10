package page

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gobwas/glob"

	"github.com/entrhq/pagerunner/pkg/logging"
)

// DuplicatePolicy decides what Load does with names registered twice.
type DuplicatePolicy int

const (
	// FailOnDuplicate makes Load fail with a *StructureError.
	FailOnDuplicate DuplicatePolicy = iota
	// FirstWins keeps the first registration and drops later ones.
	FirstWins
)

func (p DuplicatePolicy) String() string {
	switch p {
	case FailOnDuplicate:
		return "fail"
	case FirstWins:
		return "first-wins"
	}
	return fmt.Sprintf("DuplicatePolicy(%d)", int(p))
}

// ParsePolicy parses "fail" or "first-wins".
func ParsePolicy(s string) (DuplicatePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fail":
		return FailOnDuplicate, nil
	case "first-wins", "first_wins":
		return FirstWins, nil
	}
	return 0, fmt.Errorf("unknown duplicate policy %q (must be 'fail' or 'first-wins')", s)
}

// Logger is the logging surface used by Load.
type Logger interface {
	Debugf(format string, v ...any)
}

// LoadOption configures Load.
type LoadOption func(*loadOptions)

type loadOptions struct {
	policy   DuplicatePolicy
	patterns []string
	log      Logger
}

// WithDuplicatePolicy sets the duplicate name policy.
func WithDuplicatePolicy(p DuplicatePolicy) LoadOption {
	return func(o *loadOptions) { o.policy = p }
}

// WithPageFilter restricts loading to pages whose name matches one of the
// glob patterns.
func WithPageFilter(patterns ...string) LoadOption {
	return func(o *loadOptions) { o.patterns = append(o.patterns, patterns...) }
}

// WithLogger sets the logger.
func WithLogger(l Logger) LoadOption {
	return func(o *loadOptions) {
		if l != nil {
			o.log = l
		}
	}
}

// Registry holds one instance per page name. It is read-only after Load.
type Registry struct {
	pages    map[string]Page
	order    []Page
	mappings map[string]any
}

// Load instantiates the pages of catalog in registration order and returns
// the registry. Each page receives inj and the mapping of the same name;
// mappings without a page are ignored.
func Load(catalog *Catalog, inj Injection, opts ...LoadOption) (*Registry, error) {
	o := loadOptions{policy: FailOnDuplicate, log: logging.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	filter, err := compileFilter(o.patterns)
	if err != nil {
		return nil, err
	}

	pageEntries, mappingEntries := catalog.snapshot()

	mappingFactories := make(map[string]MappingFactory, len(mappingEntries))
	for _, e := range mappingEntries {
		if _, dup := mappingFactories[e.name]; dup {
			if o.policy == FailOnDuplicate {
				return nil, &StructureError{Kind: "mapping", Name: e.name, Reason: "registered more than once"}
			}
			continue
		}
		mappingFactories[e.name] = e.factory
	}

	reg := &Registry{
		pages:    make(map[string]Page, len(pageEntries)),
		mappings: make(map[string]any),
	}
	seen := make(map[string]bool, len(pageEntries))
	for _, e := range pageEntries {
		if seen[e.name] {
			if o.policy == FailOnDuplicate {
				return nil, &StructureError{Kind: "page", Name: e.name, Reason: "registered more than once"}
			}
			continue
		}
		seen[e.name] = true

		if filter != nil && !filter(e.name) {
			continue
		}

		p := e.factory()
		if isNilPage(p) || p.base() == nil {
			return nil, &StructureError{Kind: "page", Name: e.name, Reason: "factory returned nil"}
		}

		var mapping any
		if mf, ok := mappingFactories[e.name]; ok {
			mapping = mf()
			if err := validateMapping(e.name, mapping); err != nil {
				return nil, err
			}
			reg.mappings[e.name] = mapping
		}

		p.base().inject(e.name, inj, mapping)
		reg.pages[e.name] = p
		reg.order = append(reg.order, p)
		o.log.Debugf("Loaded page %q (mapping: %t).", e.name, mapping != nil)
	}

	return reg, nil
}

func compileFilter(patterns []string) (func(string) bool, error) {
	if len(patterns) == 0 {
		return nil, nil
	}
	globs := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid page filter %q: %w", p, err)
		}
		globs = append(globs, g)
	}
	return func(name string) bool {
		for _, g := range globs {
			if g.Match(name) {
				return true
			}
		}
		return false
	}, nil
}

// isNilPage reports a nil interface or a typed nil pointer.
func isNilPage(p Page) bool {
	if p == nil {
		return true
	}
	v := reflect.ValueOf(p)
	return v.Kind() == reflect.Pointer && v.IsNil()
}

var locatorType = reflect.TypeOf(Locator{})

// validateMapping checks every Locator field of a struct mapping.
func validateMapping(name string, mapping any) error {
	if mapping == nil {
		return &StructureError{Kind: "mapping", Name: name, Reason: "factory returned nil"}
	}
	v := reflect.ValueOf(mapping)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return &StructureError{Kind: "mapping", Name: name, Reason: "factory returned nil"}
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil
	}
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Type != locatorType || !f.IsExported() {
			continue
		}
		l := v.Field(i).Interface().(Locator)
		if !l.By.Valid() {
			return &StructureError{Kind: "mapping", Name: name, Reason: fmt.Sprintf("locator %s has unknown strategy %q", f.Name, l.By)}
		}
		if l.Selector == "" {
			return &StructureError{Kind: "mapping", Name: name, Reason: fmt.Sprintf("locator %s has an empty selector", f.Name)}
		}
	}
	return nil
}

// Page returns the page registered under name.
func (r *Registry) Page(name string) (Page, bool) {
	p, ok := r.pages[name]
	return p, ok
}

// MustPage returns the page registered under name and panics if there is
// none.
func (r *Registry) MustPage(name string) Page {
	p, ok := r.pages[name]
	if !ok {
		panic(fmt.Sprintf("page: %q is not registered", name))
	}
	return p
}

// Pages returns the loaded pages in load order.
func (r *Registry) Pages() []Page {
	return append([]Page(nil), r.order...)
}

// Names returns the loaded page names in load order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	for i, p := range r.order {
		names[i] = p.Name()
	}
	return names
}

// Mapping returns the mapping paired with the page name.
func (r *Registry) Mapping(name string) (any, bool) {
	m, ok := r.mappings[name]
	return m, ok
}

// Get returns the page registered under name as T.
func Get[T Page](r *Registry, name string) (T, error) {
	var zero T
	p, ok := r.Page(name)
	if !ok {
		return zero, fmt.Errorf("%w: %q", ErrNotRegistered, name)
	}
	t, ok := p.(T)
	if !ok {
		return zero, fmt.Errorf("page %q is a %T, not a %T", name, p, zero)
	}
	return t, nil
}

var (
	sharedOnce sync.Once
	shared     *Registry
	sharedErr  error
)

// Shared returns the process-wide registry. The first call loads it; later
// calls return the same registry (or error) and ignore their arguments.
func Shared(catalog *Catalog, inj Injection, opts ...LoadOption) (*Registry, error) {
	sharedOnce.Do(func() {
		shared, sharedErr = Load(catalog, inj, opts...)
	})
	return shared, sharedErr
}

type contextKey struct{}

// WithRegistry returns a copy of ctx carrying r.
func WithRegistry(ctx context.Context, r *Registry) context.Context {
	return context.WithValue(ctx, contextKey{}, r)
}

// FromContext returns the registry carried by ctx.
func FromContext(ctx context.Context) (*Registry, bool) {
	r, ok := ctx.Value(contextKey{}).(*Registry)
	return r, ok && r != nil
}
