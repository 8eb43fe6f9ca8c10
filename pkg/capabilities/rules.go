package capabilities

import (
	"fmt"
	"slices"
	"time"

	"github.com/entrhq/pagerunner/pkg/session"
)

const (
	// AppiumVersion is pinned on grid runs of non-web platforms.
	AppiumVersion = "1.22.0"

	// FlutterAutomationName selects the Flutter driver.
	FlutterAutomationName = "Flutter"

	buildTimestampLayout = "2006-01-02T15:04:05.000000"
)

var (
	chromeHeadlessArgs  = []string{"--headless", "window-size=1920x1080"}
	firefoxHeadlessArgs = []string{"-headless"}
)

// Env carries the inputs of rules that are not part of the session.
type Env struct {
	Now func() time.Time
}

func (e Env) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

// Rule is a pure transformation of a capability map. Apply must not modify
// its input; it returns the new map and any notices.
type Rule struct {
	Name  string
	Apply func(caps Map, desc session.Descriptor, env Env) (Map, []session.Notice)
}

var (
	// GridMetadata names the grid build and pins the automation server
	// version for devices.
	GridMetadata = Rule{Name: "grid-metadata", Apply: applyGridMetadata}

	// FirefoxMarionette enables marionette for local Firefox runs.
	FirefoxMarionette = Rule{Name: "firefox-marionette", Apply: applyFirefoxMarionette}

	// Headless injects the headless arguments of Chrome and Firefox.
	Headless = Rule{Name: "headless", Apply: applyHeadless}

	// Flutter selects the Flutter automation engine.
	Flutter = Rule{Name: "flutter", Apply: applyFlutter}
)

// DefaultRules returns the rules in the order they are applied.
func DefaultRules() []Rule {
	return []Rule{GridMetadata, FirefoxMarionette, Headless, Flutter}
}

// BuildName returns the grid build name of a session.
func BuildName(desc session.Descriptor, at time.Time) string {
	return fmt.Sprintf("%s_%s_%s_%s_%s",
		desc.Project, desc.Platform, desc.Environment, desc.Zone,
		at.UTC().Format(buildTimestampLayout))
}

func applyGridMetadata(caps Map, desc session.Descriptor, env Env) (Map, []session.Notice) {
	if !desc.CloudGrid {
		return caps, nil
	}
	out := caps.Clone()
	out[KeyProject] = desc.Project
	out[KeyBuild] = BuildName(desc, env.now())
	if v, ok := out[KeyOSVersion]; ok && isEmpty(v) {
		delete(out, KeyOSVersion)
	}
	if desc.Platform != session.PlatformWeb {
		out[KeyAppiumVersion] = AppiumVersion
	}
	return out, nil
}

func applyFirefoxMarionette(caps Map, desc session.Descriptor, _ Env) (Map, []session.Notice) {
	if desc.CloudGrid || !desc.IsWeb() || caps.BrowserName() != session.BrowserFirefox {
		return caps, nil
	}
	if v, ok := caps.Bool(KeyMarionette); ok && !v {
		return caps, nil
	}
	out := caps.Clone()
	out[KeyMarionette] = true
	return out, nil
}

func applyHeadless(caps Map, desc session.Descriptor, _ Env) (Map, []session.Notice) {
	if !desc.Headless || !desc.IsWeb() || desc.CloudGrid {
		return caps, nil
	}

	var optionsKey string
	var args []string
	switch caps.BrowserName() {
	case session.BrowserChrome:
		optionsKey, args = KeyChromeOptions, chromeHeadlessArgs
	case session.BrowserFirefox:
		optionsKey, args = KeyFirefoxOptions, firefoxHeadlessArgs
	default:
		return caps, []session.Notice{{
			Kind:   session.NoticeUnsupported,
			Field:  session.KeyHeadless,
			From:   true,
			To:     false,
			Reason: `Headless mode only supported for "Firefox" or "Chrome" browsers. Testing will continue with headless disabled.`,
		}}
	}

	out := caps.Clone()
	opts, ok := out[optionsKey].(map[string]any)
	if !ok {
		if out[optionsKey] != nil {
			return caps, []session.Notice{{
				Kind:   session.NoticeUnsupported,
				Field:  optionsKey,
				Reason: fmt.Sprintf("%q is not an object; headless arguments were not added.", optionsKey),
			}}
		}
		opts = map[string]any{}
	}
	opts[KeyArgs] = appendMissing(toList(opts[KeyArgs]), args)
	out[optionsKey] = opts
	return out, nil
}

func applyFlutter(caps Map, desc session.Descriptor, _ Env) (Map, []session.Notice) {
	if !desc.UsesFlutter() {
		return caps, nil
	}
	out := caps.Clone()
	out[KeyAutomationName] = FlutterAutomationName
	return out, nil
}

// appendMissing appends every value of add that list does not hold yet.
func appendMissing(list []any, add []string) []any {
	out := slices.Clone(list)
	for _, a := range add {
		if !slices.Contains(out, any(a)) {
			out = append(out, a)
		}
	}
	return out
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case bool:
		return !t
	case float64:
		return t == 0
	case int:
		return t == 0
	}
	return false
}
