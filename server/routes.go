package server

func (s *Server) initRoutes() {
	// Scans from gate devices
	s.RegisterRouteHandler("POST "+RouteAdmissions, ChainMiddleware(s.AdmissionHandler(), s.APIMiddleware(s.RequireDeviceAuth())...))

	// Secret issuance after the holder has authenticated
	if s.issuer != nil {
		s.RegisterRouteHandler("POST "+RouteSecrets, ChainMiddleware(s.IssueSecretHandler(), s.APIMiddleware(s.RequireDeviceAuth())...))
	}

	s.RegisterRouteHandler("GET "+RouteHealth, ChainMiddleware(s.HealthHandler(), s.RecoverMiddleware))
	s.RegisterRouteHandler("GET "+RouteMetrics, s.metrics.Handler())
}
