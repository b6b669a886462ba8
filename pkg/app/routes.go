package app

// initDefaultRoutes initializes the applications default routes.
//  These are the routes which always are the same in every application.
//  Things like version, health and the decoded packets.
func (app *App) initDefaultRoutes() {
	api := app.web.Group("/")
	if app.config.Webserver.Webservices["version"] {
		api.Get("/version", app.HandleVersion())
	}
	if app.config.Webserver.Webservices["health"] {
		api.Get("/health", app.HandleHealth())
	}
	if app.config.Webserver.Webservices["packets"] {
		api.Get("/packets", app.HandlePackets())
		api.Get("/packets/latest", app.HandleLatestPacket())
	}
	if app.config.Webserver.Webservices["stats"] {
		api.Get("/stats", app.HandleStats())
	}
}
