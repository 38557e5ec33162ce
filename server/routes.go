package server

func (s *Server) initRoutes() {
	s.RegisterRouteFunc("GET "+RouteHealth, s.HealthHandler())

	// Companion app API
	s.RegisterRouteHandler("GET "+exact(RouteGetLoginToken), ChainMiddleware(s.GetLoginTokenHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+exact(RouteRender), ChainMiddleware(s.RenderHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("OPTIONS "+exact(RouteGetLoginToken), ChainMiddleware(noContent, s.APIMiddleware()...))
	s.RegisterRouteHandler("OPTIONS "+exact(RouteRender), ChainMiddleware(noContent, s.APIMiddleware()...))

	// Browser pages
	s.RegisterRouteHandler("GET "+exact(RouteLogin), ChainMiddleware(s.LoginHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+exact(RouteSettings), ChainMiddleware(s.SettingsHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("POST "+exact(RouteSettingsSave), ChainMiddleware(s.SettingsSaveHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("POST "+exact(RouteLogout), ChainMiddleware(s.LogoutHandler(), s.HTMLMiddleWare()...))
}

// exact anchors a trailing slash route so it does not match the whole subtree
func exact(path string) string {
	return path + "{$}"
}
