package types

// Sender identifies the author of a chat message.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// Message is one entry in the persisted chat log. Messages are append-only:
// once written they are never mutated or deleted.
type Message struct {
	// Unique, time-derived identifier, strictly monotonic per process.
	// example: 1700000000123456789
	ID string `json:"id" example:"1700000000123456789"`
	// Message body.
	// example: Write a haiku about the ocean.
	Text string `json:"text" example:"Write a haiku about the ocean."`
	// Who authored the message (user or assistant).
	// example: user
	Sender Sender `json:"sender" example:"user"`
	// Optional local path of an image attached to the message.
	ImagePath string `json:"image_path,omitempty"`
	// Creation time in unix seconds.
	// example: 1700000000
	CreatedAt int64 `json:"created_at_unix" example:"1700000000"`
}

// DownloadProgress is a transient snapshot of an in-flight artifact download.
type DownloadProgress struct {
	// Bytes written to local storage so far.
	// example: 524288
	BytesWritten int64 `json:"bytes_written" example:"524288"`
	// Total bytes declared by the remote source, 0 when unknown.
	// example: 1048576
	TotalBytes int64 `json:"total_bytes" example:"1048576"`
	// Completion percentage in [0,100].
	// example: 50
	Percent float64 `json:"percent" example:"50"`
}

// ProgressOf builds a DownloadProgress, guarding the percentage against an
// unknown or zero total.
func ProgressOf(written, total int64) DownloadProgress {
	p := DownloadProgress{BytesWritten: written, TotalBytes: total}
	if total > 0 {
		p.Percent = float64(written) / float64(total) * 100
	}
	return p
}
