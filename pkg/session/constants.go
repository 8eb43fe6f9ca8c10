package session

import "slices"

// Platform is the kind of application under test.
type Platform string

const (
	PlatformMobile  Platform = "mobile"
	PlatformAndroid Platform = "android"
	PlatformIOS     Platform = "ios"
	PlatformWeb     Platform = "web"
	PlatformFlutter Platform = "flutter"
)

var platforms = []Platform{PlatformMobile, PlatformAndroid, PlatformIOS, PlatformWeb, PlatformFlutter}

// Platforms returns every known platform.
func Platforms() []Platform { return slices.Clone(platforms) }

// Valid reports whether p is a known platform.
func (p Platform) Valid() bool { return slices.Contains(platforms, p) }

// IsMobile reports whether p is driven through the local mobile automation server.
func IsMobile(p Platform) bool {
	return p == PlatformAndroid || p == PlatformIOS
}

// Browser is a browser engine name as found in the browserName capability.
type Browser string

const (
	BrowserChrome  Browser = "chrome"
	BrowserEdge    Browser = "edge"
	BrowserFirefox Browser = "firefox"
	BrowserSafari  Browser = "safari"
)

var browsers = []Browser{BrowserChrome, BrowserEdge, BrowserFirefox, BrowserSafari}

// Browsers returns every browser with a local driver.
func Browsers() []Browser { return slices.Clone(browsers) }

func (b Browser) Valid() bool { return slices.Contains(browsers, b) }

// Environment is the deployment stage the tests run against.
type Environment string

const (
	EnvironmentUAT  Environment = "uat"
	EnvironmentSIT  Environment = "sit"
	EnvironmentProd Environment = "prod"
	EnvironmentQA   Environment = "qa"
	EnvironmentDev  Environment = "dev"
)

var environments = []Environment{EnvironmentUAT, EnvironmentSIT, EnvironmentProd, EnvironmentQA, EnvironmentDev}

func Environments() []Environment { return slices.Clone(environments) }

func (e Environment) Valid() bool { return slices.Contains(environments, e) }

// Zone is a country code selecting zone-scoped apps, devices and test data.
type Zone string

var zones = []Zone{
	"ar", "bo", "br", "ca", "cl", "co", "do", "ec", "gb", "hn",
	"mx", "pa", "pe", "py", "sv", "tz", "us", "uy", "za",
}

func Zones() []Zone { return slices.Clone(zones) }

func (z Zone) Valid() bool { return slices.Contains(zones, z) }

// Mode selects the capabilities block of the config file.
type Mode string

const (
	ModeLocal Mode = "local"
	ModeGrid  Mode = "browserstack"
)

// Session argument keys, shared by the command line, the config file
// session block and the descriptor.
const (
	KeyPlatform                = "platform"
	KeyProject                 = "project"
	KeyEnvironment             = "environment"
	KeyZone                    = "zone"
	KeyPartner                 = "partner"
	KeyCloudGrid               = "browserstack"
	KeyGridUser                = "browserstack_user"
	KeyGridKey                 = "browserstack_key"
	KeyGridSessionID           = "browserstack_id"
	KeyGridURL                 = "browserstack_url"
	KeyPublicGridSessionURL    = "public_browserstack_session_url"
	KeyCommandExecutor         = "command_executor"
	KeyAppCenterToken          = "app_center_token"
	KeyDownloadPath            = "download_path"
	KeyReportPortalURL         = "report_portal_url"
	KeyZephyrURL               = "zephyr_url"
	KeyPassword                = "password"
	KeyAppVersion              = "app_version"
	KeyTelemetry               = "segment"
	KeyTelemetryLevel          = "segment_level"
	KeyTelemetryToken          = "segment_token"
	KeyTelemetryAnonymousID    = "segment_anonymous_id"
	KeyTelemetryRecords        = "segment_records"
	KeyHeadless                = "headless"
	KeyFlutter                 = "flutter"
	KeyInactiveEnvironmentProd = "inactive_environment_prod"
	KeyDocker                  = "web_docker"
	KeyConfluenceReport        = "confluence_report"
	KeyResultPath              = "result_path"
)

// Keys nested differently in the config file session block.
const (
	FileKeyPlatformName = "platformName"
	FileKeyGridUser     = "browserstack.user"
	FileKeyGridKey      = "browserstack.key"
)

const (
	// LocalMobileExecutor is the default local mobile automation server.
	LocalMobileExecutor = "http://127.0.0.1:4723/wd/hub"

	gridHost = "hub.browserstack.com"
	gridPath = "/wd/hub"
)
