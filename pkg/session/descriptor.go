package session

import (
	"encoding/json"
	"net/url"
)

// Descriptor is the resolved, read-only description of a test run.
// It is always handed out by value.
type Descriptor struct {
	Platform                Platform `json:"platform,omitempty"`
	Project                 string   `json:"project,omitempty"`
	Environment             string   `json:"environment,omitempty"`
	Zone                    string   `json:"zone,omitempty"`
	Partner                 string   `json:"partner,omitempty"`
	CloudGrid               bool     `json:"browserstack"`
	GridUser                string   `json:"browserstack_user,omitempty"`
	GridKey                 string   `json:"browserstack_key,omitempty"`
	GridSessionID           string   `json:"browserstack_id,omitempty"`
	GridURL                 string   `json:"browserstack_url,omitempty"`
	PublicGridSessionURL    string   `json:"public_browserstack_session_url,omitempty"`
	CommandExecutor         string   `json:"command_executor,omitempty"`
	AppCenterToken          string   `json:"app_center_token,omitempty"`
	DownloadPath            string   `json:"download_path,omitempty"`
	ReportPortalURL         string   `json:"report_portal_url,omitempty"`
	ZephyrURL               string   `json:"zephyr_url,omitempty"`
	Password                string   `json:"password,omitempty"`
	AppVersion              string   `json:"app_version,omitempty"`
	Telemetry               bool     `json:"segment,omitempty"`
	TelemetryLevel          string   `json:"segment_level,omitempty"`
	TelemetryToken          string   `json:"segment_token,omitempty"`
	TelemetryAnonymousID    string   `json:"segment_anonymous_id,omitempty"`
	TelemetryRecords        string   `json:"segment_records,omitempty"`
	Headless                bool     `json:"headless,omitempty"`
	Flutter                 bool     `json:"flutter,omitempty"`
	InactiveEnvironmentProd bool     `json:"inactive_environment_prod,omitempty"`
	Docker                  bool     `json:"web_docker,omitempty"`
	ConfluenceReport        bool     `json:"confluence_report,omitempty"`
	ResultPath              string   `json:"result_path,omitempty"`
}

// Mode returns the config file capabilities block used by the session.
func (d Descriptor) Mode() Mode {
	if d.CloudGrid {
		return ModeGrid
	}
	return ModeLocal
}

// IsWeb reports whether the session drives a browser.
func (d Descriptor) IsWeb() bool { return d.Platform == PlatformWeb }

// UsesFlutter reports whether the Flutter automation engine is selected.
func (d Descriptor) UsesFlutter() bool {
	return d.Flutter || d.Platform == PlatformFlutter
}

// Fields returns the non-empty descriptor fields keyed by session key.
func (d Descriptor) Fields() map[string]any {
	data, err := json.Marshal(d)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}

// GridExecutor returns the cloud grid hub URL carrying user and key.
func GridExecutor(user, key string) string {
	u := url.URL{
		Scheme: "http",
		User:   url.UserPassword(user, key),
		Host:   gridHost,
		Path:   gridPath,
	}
	return u.String()
}

// commandExecutor derives the executor when none was given: the grid hub
// for grid runs, the local mobile server for mobile platforms, and nothing
// otherwise so that the driver picks its own default.
func commandExecutor(d Descriptor) string {
	switch {
	case d.CloudGrid:
		return GridExecutor(d.GridUser, d.GridKey)
	case IsMobile(d.Platform):
		return LocalMobileExecutor
	}
	return ""
}
