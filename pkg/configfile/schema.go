package configfile

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// Document describes the config file for schema generation.
type Document struct {
	Session      *SessionBlock                        `json:"session,omitempty"      jsonschema:"description=Session arguments; command-line values take precedence"`
	Capabilities map[string]map[string]map[string]any `json:"capabilities,omitempty" jsonschema:"description=Capabilities indexed by platform and then by mode (local or browserstack)"`
}

// SessionBlock lists the keys accepted in the "session" object.
type SessionBlock struct {
	PlatformName            string `json:"platformName,omitempty"              jsonschema:"enum=web,enum=android,enum=ios,enum=mobile,enum=flutter"`
	GridUser                string `json:"browserstack.user,omitempty"`
	GridKey                 string `json:"browserstack.key,omitempty"`
	Project                 string `json:"project,omitempty"`
	Environment             string `json:"environment,omitempty"`
	Zone                    string `json:"zone,omitempty"`
	Partner                 string `json:"partner,omitempty"`
	CloudGrid               bool   `json:"browserstack,omitempty"`
	GridSessionID           string `json:"browserstack_id,omitempty"`
	GridURL                 string `json:"browserstack_url,omitempty"`
	PublicGridSessionURL    string `json:"public_browserstack_session_url,omitempty"`
	CommandExecutor         string `json:"command_executor,omitempty"`
	AppCenterToken          string `json:"app_center_token,omitempty"`
	DownloadPath            string `json:"download_path,omitempty"`
	ReportPortalURL         string `json:"report_portal_url,omitempty"`
	ZephyrURL               string `json:"zephyr_url,omitempty"`
	Password                string `json:"password,omitempty"`
	AppVersion              string `json:"app_version,omitempty"`
	Telemetry               bool   `json:"segment,omitempty"`
	TelemetryLevel          string `json:"segment_level,omitempty"`
	TelemetryToken          string `json:"segment_token,omitempty"`
	TelemetryAnonymousID    string `json:"segment_anonymous_id,omitempty"`
	TelemetryRecords        string `json:"segment_records,omitempty"`
	Headless                bool   `json:"headless,omitempty"`
	Flutter                 bool   `json:"flutter,omitempty"`
	InactiveEnvironmentProd bool   `json:"inactive_environment_prod,omitempty"`
	Docker                  bool   `json:"web_docker,omitempty"`
	ConfluenceReport        bool   `json:"confluence_report,omitempty"`
	ResultPath              string `json:"result_path,omitempty"`
}

const schemaID = "https://github.com/entrhq/pagerunner/schemas/config-v1.json"

// GenerateJSONSchema produces the JSON Schema of the config file.
func GenerateJSONSchema() ([]byte, error) {
	r := new(jsonschema.Reflector)
	r.DoNotReference = false

	s := r.Reflect(&Document{})
	s.ID = jsonschema.ID(schemaID)
	s.Title = "pagerunner config file"
	s.Description = "Session and capability inputs for a pagerunner test run"

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	return data, nil
}

// ValidationError is a single schema violation.
type ValidationError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// Validate loads path and checks it against the config file schema.
// A nil result means the file is valid.
func Validate(path string) []*ValidationError {
	f, err := Load(path)
	if err != nil {
		return []*ValidationError{{Message: err.Error()}}
	}
	if f == nil {
		return []*ValidationError{{Message: "no config file given"}}
	}
	return f.Validate()
}

// Validate checks the loaded document against the config file schema.
func (f *File) Validate() []*ValidationError {
	schemaJSON, err := GenerateJSONSchema()
	if err != nil {
		return []*ValidationError{{Message: fmt.Sprintf("generate schema: %v", err)}}
	}
	schemaDoc, err := sjsonschema.UnmarshalJSON(strings.NewReader(string(schemaJSON)))
	if err != nil {
		return []*ValidationError{{Message: fmt.Sprintf("unmarshal schema: %v", err)}}
	}

	c := sjsonschema.NewCompiler()
	if err := c.AddResource(schemaID, schemaDoc); err != nil {
		return []*ValidationError{{Message: fmt.Sprintf("add schema resource: %v", err)}}
	}
	sch, err := c.Compile(schemaID)
	if err != nil {
		return []*ValidationError{{Message: fmt.Sprintf("compile schema: %v", err)}}
	}

	doc, err := sjsonschema.UnmarshalJSON(strings.NewReader(string(f.raw)))
	if err != nil {
		return []*ValidationError{{Message: fmt.Sprintf("unmarshal document: %v", err)}}
	}

	if err := sch.Validate(doc); err != nil {
		ve, ok := err.(*sjsonschema.ValidationError)
		if !ok {
			return []*ValidationError{{Message: err.Error()}}
		}
		var errs []*ValidationError
		for _, cause := range flattenValidationErrors(ve) {
			errs = append(errs, &ValidationError{
				Path:    "/" + strings.Join(cause.InstanceLocation, "/"),
				Message: fmt.Sprintf("%v", cause.ErrorKind),
			})
		}
		return errs
	}
	return nil
}

// flattenValidationErrors recursively collects all leaf validation errors.
func flattenValidationErrors(ve *sjsonschema.ValidationError) []*sjsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*sjsonschema.ValidationError{ve}
	}
	var flat []*sjsonschema.ValidationError
	for _, cause := range ve.Causes {
		flat = append(flat, flattenValidationErrors(cause)...)
	}
	return flat
}
