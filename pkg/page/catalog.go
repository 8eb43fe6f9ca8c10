package page

import (
	"fmt"
	"sync"
)

// PageFactory builds a new page.
type PageFactory func() Page

// MappingFactory builds a new mapping, usually a pointer to a struct of
// Locator fields.
type MappingFactory func() any

type pageEntry struct {
	name    string
	factory PageFactory
}

type mappingEntry struct {
	name    string
	factory MappingFactory
}

// Catalog is the registration table of pages and mappings. Entries keep
// their registration order; duplicates are kept and resolved by Load.
type Catalog struct {
	mu       sync.RWMutex
	pages    []pageEntry
	mappings []mappingEntry
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{}
}

// DefaultCatalog receives the registrations made from init functions.
var DefaultCatalog = NewCatalog()

// RegisterPage registers a page factory in DefaultCatalog.
func RegisterPage(name string, factory PageFactory) {
	DefaultCatalog.RegisterPage(name, factory)
}

// RegisterMapping registers a mapping factory in DefaultCatalog.
func RegisterMapping(name string, factory MappingFactory) {
	DefaultCatalog.RegisterMapping(name, factory)
}

// RegisterPage adds a page factory. It panics on an empty name or a nil
// factory.
func (c *Catalog) RegisterPage(name string, factory PageFactory) {
	if name == "" {
		panic("page: name is required")
	}
	if factory == nil {
		panic(fmt.Sprintf("page: factory is required for %s", name))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pages = append(c.pages, pageEntry{name: name, factory: factory})
}

// RegisterMapping adds a mapping factory. It panics on an empty name or a
// nil factory.
func (c *Catalog) RegisterMapping(name string, factory MappingFactory) {
	if name == "" {
		panic("page: mapping name is required")
	}
	if factory == nil {
		panic(fmt.Sprintf("page: mapping factory is required for %s", name))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mappings = append(c.mappings, mappingEntry{name: name, factory: factory})
}

// PageNames returns the registered page names in registration order,
// duplicates included.
func (c *Catalog) PageNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, len(c.pages))
	for i, e := range c.pages {
		names[i] = e.name
	}
	return names
}

// MappingNames returns the registered mapping names in registration order,
// duplicates included.
func (c *Catalog) MappingNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, len(c.mappings))
	for i, e := range c.mappings {
		names[i] = e.name
	}
	return names
}

func (c *Catalog) snapshot() ([]pageEntry, []mappingEntry) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]pageEntry(nil), c.pages...), append([]mappingEntry(nil), c.mappings...)
}
