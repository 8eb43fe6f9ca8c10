package session

import "strings"

// Args holds the session related command-line inputs.
type Args struct {
	// Capabilities are the --capabilities key=value pairs. A platformName
	// entry doubles as the session platform.
	Capabilities    map[string]any
	CommandExecutor string
	Environment     string
	CloudGrid       bool
	GridUser        string
	GridKey         string
	Headless        bool
	Docker          bool
	AppCenterToken  string
	Project         string
	Zone            string
}

// items returns the non-empty arguments keyed by session key.
func (a Args) items() (map[string]any, error) {
	items := map[string]any{
		KeyCommandExecutor: a.CommandExecutor,
		KeyEnvironment:     a.Environment,
		KeyCloudGrid:       a.CloudGrid,
		KeyGridUser:        a.GridUser,
		KeyGridKey:         a.GridKey,
		KeyHeadless:        a.Headless,
		KeyDocker:          a.Docker,
		KeyAppCenterToken:  a.AppCenterToken,
		KeyProject:         a.Project,
		KeyZone:            a.Zone,
	}
	if v, ok := a.Capabilities[FileKeyPlatformName]; ok {
		s, isString := v.(string)
		if !isString {
			return nil, InvalidArgumentf("capability %q must be a string, got %T", FileKeyPlatformName, v)
		}
		items[KeyPlatform] = s
	}
	return dropEmpty(items), nil
}

// ParseCapabilities builds a capability map from key=value pairs. The
// literals "true" and "false" (any case) become booleans; every other value
// stays a string. Later pairs override earlier ones.
func ParseCapabilities(pairs []string) (map[string]any, error) {
	caps := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, InvalidArgumentf("capability %q must have the form key=value", pair)
		}
		switch strings.ToLower(value) {
		case "true":
			caps[key] = true
		case "false":
			caps[key] = false
		default:
			caps[key] = value
		}
	}
	return caps, nil
}

// dropEmpty removes nil, empty and false values: absence, not a zero value,
// means "not provided".
func dropEmpty(items map[string]any) map[string]any {
	out := make(map[string]any, len(items))
	for k, v := range items {
		if !isEmpty(v) {
			out[k] = v
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
	case int:
		return t == 0
	case int64:
		return t == 0
	case float64:
		return t == 0
	case map[string]any:
		return len(t) == 0
	case []any:
		return len(t) == 0
	}
	return false
}
