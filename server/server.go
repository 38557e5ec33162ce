// Package server is the HTTP surface: the companion app API, the browser
// settings pages and the placeholder render endpoint.
package server

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"net/netip"
	"strings"

	"github.com/jrsteele09/go-device-link/auth"
	"github.com/jrsteele09/go-device-link/devices"
	"github.com/jrsteele09/go-device-link/internal/config"
	"github.com/jrsteele09/go-device-link/render"
	"github.com/rs/zerolog/log"
)

type LoginTokenIssuer interface {
	Issue(ctx context.Context, ownerID string, deviceIDs []string) (string, error)
}

// Services holds the domain dependencies the handlers call into
type Services struct {
	Auth    *auth.Service
	Tokens  LoginTokenIssuer
	Devices *devices.Authorizer
	Renders *render.Service
}

type Server struct {
	env      string
	mux      *http.ServeMux
	routes   []string
	config   config.Config
	services Services
	limiter  *ipRateLimiter
	proxies  []netip.Prefix
	settings *template.Template
}

func New(cfg config.Config, services Services) (*Server, error) {
	if services.Auth == nil || services.Tokens == nil || services.Devices == nil || services.Renders == nil {
		return nil, fmt.Errorf("[Server New] auth, tokens, devices and renders are required")
	}

	settingsTemplate, err := ParseTemplate(settingsTemplateName)
	if err != nil {
		return nil, fmt.Errorf("[Server New] failed to parse settings template: %w", err)
	}

	s := &Server{
		env:      cfg.GetEnv(),
		mux:      http.NewServeMux(),
		config:   cfg,
		services: services,
		limiter:  newIPRateLimiter(cfg.GetRateLimitPerMinute(), cfg.GetRateLimitBurst()),
		proxies:  cfg.GetTrustedProxies(),
		settings: settingsTemplate,
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		method, path, found := strings.Cut(route, " ")
		if !found {
			method, path = "", route
		}
		log.Debug().Msgf("[ %s] %s", colourMethod(method), strings.TrimSuffix(path, "{$}"))
	}
}
