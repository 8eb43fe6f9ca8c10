// Package page wires page objects to their locator mappings.
//
// Pages and mappings register themselves by logical name, usually from an
// init function:
//
//	func init() {
//		page.RegisterPage("landing", func() page.Page { return &Landing{} })
//		page.RegisterMapping("landing", func() any { return &LandingMapping{} })
//	}
//
// Load builds one instance per name, injects the driver, the test data and
// the mapping registered under the same name, and publishes the result in
// an immutable Registry.
package page

import (
	"github.com/entrhq/pagerunner/pkg/testdata"
)

// Page is implemented by embedding Base.
type Page interface {
	Name() string
	base() *Base
}

// Injection holds the shared objects set on every page.
type Injection struct {
	Driver Driver
	Data   *testdata.Store
	// Objects are extra named values, read with Base.Object.
	Objects map[string]any
}

// Base carries what Load injects into a page.
type Base struct {
	name    string
	driver  Driver
	data    *testdata.Store
	mapping any
	objects map[string]any
}

func (b *Base) base() *Base { return b }

// Name returns the logical page name.
func (b *Base) Name() string { return b.name }

// Driver returns the injected driver.
func (b *Base) Driver() Driver { return b.driver }

// Data returns the injected test data.
func (b *Base) Data() *testdata.Store { return b.data }

// Mapping returns the mapping registered under the page name, or nil.
func (b *Base) Mapping() any { return b.mapping }

// Object returns an injected object by key.
func (b *Base) Object(key string) (any, bool) {
	v, ok := b.objects[key]
	return v, ok
}

// MappingOf returns the mapping of p as T.
func MappingOf[T any](p Page) (T, bool) {
	m, ok := p.base().mapping.(T)
	return m, ok
}

func (b *Base) inject(name string, inj Injection, mapping any) {
	b.name = name
	b.driver = inj.Driver
	b.data = inj.Data
	b.mapping = mapping
	if len(inj.Objects) > 0 {
		b.objects = make(map[string]any, len(inj.Objects))
		for k, v := range inj.Objects {
			b.objects[k] = v
		}
	}
}
