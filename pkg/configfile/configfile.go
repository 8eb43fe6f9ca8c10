// Package configfile loads the run configuration file that complements the
// command line: a document with a top-level "session" object and a
// "capabilities" object indexed by platform and then by execution mode.
//
//	{
//	  "session": {"platformName": "android", "environment": "uat", "browserstack.user": "..."},
//	  "capabilities": {
//	    "android": {
//	      "local":        {"app": {"br": "/apps/br.apk"}, "deviceName": "emulator-5554"},
//	      "browserstack": {"device": {"br": "Google Pixel 7"}, "os_version": "13.0"}
//	    }
//	  }
//	}
//
// JSON is the reference format; .yaml and .yml files are accepted and
// normalised to JSON before any lookup.
package configfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"
)

const (
	SessionKey      = "session"
	CapabilitiesKey = "capabilities"
)

var (
	// ErrMissingFile is returned when a config file path is given but does not exist.
	ErrMissingFile = errors.New("config file not found")

	// ErrInvalidDocument is returned when the document or one of its blocks has the wrong shape.
	ErrInvalidDocument = errors.New("invalid config file")
)

// File is a loaded configuration document.
type File struct {
	path string
	raw  []byte
}

// Load reads the config file at path. An empty path means no config file
// and yields a nil *File without error.
func Load(path string) (*File, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: the config file path %q does not exist on the file system", ErrMissingFile, path)
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return Parse(path, data)
}

// Parse builds a File from raw content. The extension of name selects the
// decoder.
func Parse(name string, data []byte) (*File, error) {
	var raw []byte
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidDocument, name, err)
		}
		normalised, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidDocument, name, err)
		}
		raw = normalised
	default:
		raw = data
	}

	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("%w: %s is not valid JSON", ErrInvalidDocument, name)
	}
	if !gjson.ParseBytes(raw).IsObject() {
		return nil, fmt.Errorf("%w: %s must contain a JSON object", ErrInvalidDocument, name)
	}

	return &File{path: name, raw: raw}, nil
}

// Path returns the path the file was loaded from.
func (f *File) Path() string {
	if f == nil {
		return ""
	}
	return f.path
}

// Bytes returns the document normalised to JSON.
func (f *File) Bytes() []byte {
	if f == nil {
		return nil
	}
	return f.raw
}

// Session returns a copy of the "session" block, or nil when absent.
func (f *File) Session() (map[string]any, error) {
	if f == nil {
		return nil, nil
	}
	return f.object(SessionKey)
}

// Capabilities returns the capabilities block for platform and mode
// (capabilities.<platform>.<mode>), or nil when any level is absent.
func (f *File) Capabilities(platform, mode string) (map[string]any, error) {
	if f == nil || platform == "" || mode == "" {
		return nil, nil
	}
	if _, err := f.object(CapabilitiesKey); err != nil {
		return nil, err
	}
	platformPath := CapabilitiesKey + "." + escape(platform)
	if _, err := f.object(platformPath); err != nil {
		return nil, err
	}
	return f.object(platformPath + "." + escape(mode))
}

func (f *File) object(path string) (map[string]any, error) {
	res := gjson.GetBytes(f.raw, path)
	if !res.Exists() || res.Type == gjson.Null {
		return nil, nil
	}
	if !res.IsObject() {
		return nil, fmt.Errorf("%w: %q must be an object, got %s", ErrInvalidDocument, unescape(path), res.Type)
	}
	m, ok := res.Value().(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %q could not be decoded as an object", ErrInvalidDocument, unescape(path))
	}
	return m, nil
}

var (
	pathEscaper   = strings.NewReplacer(`\`, `\\`, ".", `\.`, "*", `\*`, "?", `\?`, "|", `\|`, "#", `\#`, "@", `\@`)
	pathUnescaper = strings.NewReplacer(`\.`, ".", `\*`, "*", `\?`, "?", `\|`, "|", `\#`, "#", `\@`, "@", `\\`, `\`)
)

func escape(key string) string {
	return pathEscaper.Replace(key)
}

func unescape(path string) string {
	return pathUnescaper.Replace(path)
}
