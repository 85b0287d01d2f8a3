package api //nolint:revive // package name is intentional

const (
	// DefaultMaxBodySize bounds request bodies. Conversations for extraction
	// are the largest payloads the service accepts.
	DefaultMaxBodySize = 1 << 20

	messageDeleted    = "Memory deleted successfully!"
	messageAllDeleted = "Memories deleted successfully!"
)
