package api

// API limits.
const (
	// MaxRequestBody bounds document and batch bodies (4 MB).
	MaxRequestBody = 4 << 20
)

// Route tags.
const (
	tagHealth    = "Health"
	tagDocuments = "Documents"
)
