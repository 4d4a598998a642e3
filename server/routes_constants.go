package server

// Route path constants
const (
	// Gate API
	RouteAdmissions = "/api/v1/admissions"
	RouteSecrets    = "/api/v1/secrets/{user}"

	// Operations
	RouteHealth  = "/healthz"
	RouteMetrics = "/metrics"
)
