// Package adminapi exposes the REST surface of the mercadillo
// application under /api/v1.
package adminapi

// Init registers all admin API routes. The webserver must be
// initialized first.
func Init() {
	registerAuthRoutes()
	registerProductRoutes()
	registerMercadilloRoutes()
	registerIncomeRoutes()
	registerExpenseRoutes()
	registerStockRoutes()
	registerAuthorizedUserRoutes()
	registerSettingsRoutes()
	registerSchedulerRoutes()
	registerOprLogRoutes()
	registerMetricsRoutes()
}
