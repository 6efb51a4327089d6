package runloop

import "encoding/json"

// BlueprintStatus is the build state reported for a blueprint. Only the two
// build_* values are terminal; anything else means the build is still in
// flight.
type BlueprintStatus string

const (
	BlueprintProvisioning  BlueprintStatus = "provisioning"
	BlueprintBuilding      BlueprintStatus = "building"
	BlueprintBuildComplete BlueprintStatus = "build_complete"
	BlueprintBuildFailed   BlueprintStatus = "build_failed"
)

func (s BlueprintStatus) Terminal() bool {
	return s == BlueprintBuildComplete || s == BlueprintBuildFailed
}

// DevboxStatus is the lifecycle state reported for a devbox.
type DevboxStatus string

const (
	DevboxProvisioning DevboxStatus = "provisioning"
	DevboxInitializing DevboxStatus = "initializing"
	DevboxRunning      DevboxStatus = "running"
	DevboxFailed       DevboxStatus = "failed"
	DevboxShutdown     DevboxStatus = "shutdown"
)

func (s DevboxStatus) Terminal() bool {
	return s == DevboxRunning || s == DevboxFailed || s == DevboxShutdown
}

type LaunchParameters struct {
	LaunchCommands []string `json:"launch_commands,omitempty"`
}

type CreateBlueprintRequest struct {
	Name             string            `json:"name"`
	Dockerfile       string            `json:"dockerfile"`
	FileMounts       map[string]string `json:"file_mounts,omitempty"`
	LaunchParameters *LaunchParameters `json:"launch_parameters,omitempty"`
}

type Blueprint struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Status        BlueprintStatus `json:"status"`
	FailureReason string          `json:"failure_reason,omitempty"`
	CreateTimeMS  int64           `json:"create_time_ms,omitempty"`
}

type BlueprintLogEntry struct {
	Level       string `json:"level,omitempty"`
	Message     string `json:"message"`
	TimestampMS int64  `json:"timestamp_ms,omitempty"`
}

type BlueprintLogs struct {
	Logs []BlueprintLogEntry `json:"logs"`
}

type CreateDevboxRequest struct {
	BlueprintID string `json:"blueprint_id"`
	Name        string `json:"name,omitempty"`
}

type Devbox struct {
	ID            string       `json:"id"`
	Name          string       `json:"name,omitempty"`
	Status        DevboxStatus `json:"status"`
	BlueprintID   string       `json:"blueprint_id,omitempty"`
	FailureReason string       `json:"failure_reason,omitempty"`
}

type ExecuteRequest struct {
	Command string `json:"command"`
}

// ExecutionResult is the outcome of a synchronous command execution inside a
// devbox: the shell exit status plus captured output streams.
type ExecutionResult struct {
	DevboxID   string `json:"devbox_id,omitempty"`
	ExitStatus int    `json:"exit_status"`
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
}

type APIErrorEnvelope struct {
	Error APIErrorDetail `json:"error"`
}

type APIErrorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type APIError struct {
	StatusCode int
	Envelope   APIErrorEnvelope
	Body       []byte
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	if e.Envelope.Error.Message != "" {
		return e.Envelope.Error.Type + ": " + e.Envelope.Error.Message
	}
	return string(e.Body)
}

func ParseAPIErrorEnvelope(body []byte) (APIErrorEnvelope, bool) {
	var envelope APIErrorEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return APIErrorEnvelope{}, false
	}
	if envelope.Error.Type == "" && envelope.Error.Message == "" {
		return APIErrorEnvelope{}, false
	}
	return envelope, true
}
