package http_api

// routes sets up the routes for the HTTP server.
func (s *HTTPServer) routes() {
	s.router.GET("/healthz", s.health)
	s.router.GET("/metrics", s.serveMetrics)

	v1 := s.router.Group("/api/v1")
	v1.GET("/chains", s.chains)
	v1.GET("/chains/:id", s.chain)
	v1.GET("/balances/:address", s.balances)
	v1.GET("/prices/:symbol", s.price)
	v1.GET("/quote", s.quote)
	v1.GET("/wallet", s.wallet)
	v1.POST("/withdrawals", s.withdraw)
	v1.GET("/transfers/:id", s.transferStatus)
	v1.GET("/history/:address", s.history)
}
