// Package testdata loads the static test data injected into pages.
//
// Data files live under <root>/static_data/<platform>/<zone>/ and may be
// JSON or YAML. Each file is exposed under its base name, so the key
// "messages.login.empty_password" of data.json is read with
// Get("data.messages.login.empty_password").
package testdata

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"
)

// DirName is the directory holding static data below the data root.
const DirName = "static_data"

var dataFiles = glob.MustCompile("*.{json,yaml,yml}")

// Store is a read-only view over the loaded data files.
type Store struct {
	dir   string
	files []string
	doc   []byte
}

// Empty returns a store without data.
func Empty() *Store {
	return &Store{doc: []byte("{}")}
}

// Dir returns the directory the data was loaded from.
func Dir(root, platform, zone string) string {
	return filepath.Join(root, DirName, platform, zone)
}

// Load reads every data file of platform and zone below root. A missing
// directory yields an empty store.
func Load(root, platform, zone string) (*Store, error) {
	dir := Dir(root, platform, zone)
	if !isWithin(filepath.Join(root, DirName), dir) {
		return nil, fmt.Errorf("test data directory %s is outside %s", dir, filepath.Join(root, DirName))
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s := Empty()
			s.dir = dir
			return s, nil
		}
		return nil, fmt.Errorf("failed to read test data directory %s: %w", dir, err)
	}

	docs := make(map[string]json.RawMessage)
	var files []string
	for _, e := range entries {
		if e.IsDir() || !dataFiles.Match(e.Name()) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		raw, err := readDocument(path)
		if err != nil {
			return nil, err
		}
		name := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		if _, dup := docs[name]; dup {
			return nil, fmt.Errorf("test data %q is defined by more than one file in %s", name, dir)
		}
		docs[name] = raw
		files = append(files, path)
	}
	sort.Strings(files)

	doc, err := json.Marshal(docs)
	if err != nil {
		return nil, fmt.Errorf("failed to assemble test data: %w", err)
	}
	return &Store{dir: dir, files: files, doc: doc}, nil
}

// isWithin reports whether path is base or below it.
func isWithin(base, path string) bool {
	rel, err := filepath.Rel(filepath.Clean(base), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// FromMap builds a store from in-memory documents keyed by name.
func FromMap(docs map[string]any) (*Store, error) {
	doc, err := json.Marshal(docs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode test data: %w", err)
	}
	return &Store{doc: doc}, nil
}

func readDocument(path string) (json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read test data file %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var v any
		if err := yaml.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("failed to parse test data file %s: %w", path, err)
		}
		if data, err = json.Marshal(v); err != nil {
			return nil, fmt.Errorf("failed to convert test data file %s: %w", path, err)
		}
	}

	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("test data file %s is not valid JSON", path)
	}
	return json.RawMessage(data), nil
}

// Get returns the value at a gjson path.
func (s *Store) Get(path string) gjson.Result {
	if s == nil {
		return gjson.Result{}
	}
	return gjson.GetBytes(s.doc, path)
}

// String returns the string at path, or "" when absent.
func (s *Store) String(path string) string {
	return s.Get(path).String()
}

// Lookup returns the string at path and whether it exists.
func (s *Store) Lookup(path string) (string, bool) {
	r := s.Get(path)
	return r.String(), r.Exists()
}

// Files returns the loaded file paths in lexical order.
func (s *Store) Files() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.files...)
}

// Dir returns the directory the store was loaded from.
func (s *Store) Dir() string {
	if s == nil {
		return ""
	}
	return s.dir
}
