// Package capabilities resolves the capability map handed to the driver.
//
// The map is built from the config file capabilities block of the session
// platform and mode, overlaid with the command-line capabilities, and then
// passed through an ordered list of pure rules (grid metadata, Firefox
// marionette, headless arguments, Flutter engine).
package capabilities

import "github.com/entrhq/pagerunner/pkg/session"

// Capability keys with special handling.
const (
	KeyPlatformName   = "platformName"
	KeyBrowserName    = "browserName"
	KeyApp            = "app"
	KeyDevice         = "device"
	KeyDeviceName     = "deviceName"
	KeyOSVersion      = "os_version"
	KeyProject        = "project"
	KeyBuild          = "build"
	KeyName           = "name"
	KeyAppiumVersion  = "browserstack.appium_version"
	KeyChromeOptions  = "goog:chromeOptions"
	KeyFirefoxOptions = "moz:firefoxOptions"
	KeyArgs           = "args"
	KeyMarionette     = "marionette"
	KeyAutomationName = "automationName"
)

// Map is a capability map. Values are strings, booleans, numbers, lists or
// nested maps.
type Map map[string]any

// Clone returns a deep copy of m. Nested maps and lists are copied; other
// values are shared.
func (m Map) Clone() Map {
	if m == nil {
		return Map{}
	}
	out := make(Map, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case Map:
		return map[string]any(t.Clone())
	case map[string]any:
		return map[string]any(Map(t).Clone())
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = e
		}
		return out
	}
	return v
}

// String returns the value under key when it is a string.
func (m Map) String(key string) string {
	s, _ := m[key].(string)
	return s
}

// Bool returns the value under key and whether it is a boolean.
func (m Map) Bool(key string) (value, ok bool) {
	value, ok = m[key].(bool)
	return value, ok
}

// BrowserName returns the browserName capability.
func (m Map) BrowserName() session.Browser {
	return session.Browser(m.String(KeyBrowserName))
}

// Without returns a copy of m without keys.
func (m Map) Without(keys ...string) Map {
	out := m.Clone()
	for _, k := range keys {
		delete(out, k)
	}
	return out
}

// BrowserOptions returns the capabilities to hand to a browser options
// builder. platformName is stripped; browser engines reject it as a raw
// option.
func (m Map) BrowserOptions() Map {
	return m.Without(KeyPlatformName)
}

// Args returns the argument list of a browser options entry such as
// goog:chromeOptions.
func (m Map) Args(optionsKey string) []string {
	opts, ok := m[optionsKey].(map[string]any)
	if !ok {
		return nil
	}
	var out []string
	for _, a := range toList(opts[KeyArgs]) {
		if s, ok := a.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func toList(v any) []any {
	switch t := v.(type) {
	case []any:
		return t
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	}
	return nil
}
