package types

// ChatRequest represents a generation request payload.
type ChatRequest struct {
	// Required prompt text to generate a completion for.
	// example: Write a haiku about the ocean.
	Prompt string `json:"prompt" example:"Write a haiku about the ocean."`
	// Optional local path to an image attached to the prompt.
	// example: /data/gemmad/photo.png
	ImagePath string `json:"image_path,omitempty" example:"/data/gemmad/photo.png"`
}

// ChatResponse wraps the assistant message produced for a ChatRequest.
type ChatResponse struct {
	Message Message `json:"message"`
}

// MessagesResponse wraps the persisted chat log returned by GET /messages.
type MessagesResponse struct {
	Messages []Message `json:"messages"`
}

// RetryResponse is returned by POST /retry.
type RetryResponse struct {
	// Identifier of the background retry operation.
	// example: 3f2c9d8e-5a17-4d2e-9f0b-1c2d3e4f5a6b
	OpID string `json:"op_id" example:"3f2c9d8e-5a17-4d2e-9f0b-1c2d3e4f5a6b"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: prompt is required
	Error string `json:"error" example:"prompt is required"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Current session state (uninitialized, checking, downloading,
	// activating, ready, failed).
	// example: ready
	State string `json:"state" example:"ready"`
	// Failure reason, set only in the failed state.
	Reason string `json:"reason,omitempty"`
	// Short machine-readable failure code (e.g., auth_failure).
	ReasonCode string `json:"reason_code,omitempty"`
	// Latest download progress; meaningful while downloading.
	Progress DownloadProgress `json:"progress"`
	// Canonical local path of the model artifact.
	// example: /data/gemmad/gemma-2b-it.gguf
	ArtifactPath string `json:"artifact_path" example:"/data/gemmad/gemma-2b-it.gguf"`
	// Size of the published artifact in bytes, 0 if not yet present.
	// example: 1048576
	ArtifactBytes int64 `json:"artifact_bytes" example:"1048576"`
	// Number of messages in the persisted chat log.
	// example: 12
	MessageCount int `json:"message_count" example:"12"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
	// Total user-triggered retries since start.
	// example: 1
	RetriesTotal uint64 `json:"retries_total" example:"1"`
}
