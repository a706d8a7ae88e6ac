package utils

import (
	"time"
)

// HTTP constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400

	// RequestTimeout bounds every handler's business call
	RequestTimeout = 30 * time.Second

	// DefaultPageSize and MaxPageSize bound list endpoints
	DefaultPageSize = 50
	MaxPageSize     = 500
)

// Registry constants
const (
	// ExportSheetName is the worksheet used by the client export
	ExportSheetName = "Clients"
)
