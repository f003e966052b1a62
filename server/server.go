package server

import (
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/apannell/go-secure-api/accounts"
	"github.com/apannell/go-secure-api/handshake"
	"github.com/apannell/go-secure-api/internal/config"
	"github.com/apannell/go-secure-api/resettoken"
	"github.com/apannell/go-secure-api/token"
)

// Deps holds the collaborators the server composes at the endpoint layer.
type Deps struct {
	Handshake   *handshake.Service
	Tokens      *token.Authority
	Accounts    accounts.Repo
	ResetTokens resettoken.Store
	Notifier    Notifier
}

type Server struct {
	env    string // Environment (e.g., "DEV", "PROD")
	mux    *http.ServeMux
	routes []string
	config config.Config

	handshake   *handshake.Service
	tokens      *token.Authority
	accounts    accounts.Repo
	resetTokens resettoken.Store
	notifier    Notifier
}

func New(cfg config.Config, deps Deps) (*Server, error) {
	if deps.Handshake == nil {
		return nil, fmt.Errorf("[Server New] handshake service is required")
	}
	if deps.Tokens == nil {
		return nil, fmt.Errorf("[Server New] token authority is required")
	}
	if deps.Accounts == nil {
		return nil, fmt.Errorf("[Server New] account repo is required")
	}
	if deps.ResetTokens == nil {
		return nil, fmt.Errorf("[Server New] reset token store is required")
	}
	if deps.Notifier == nil {
		deps.Notifier = logNotifier{}
	}

	s := &Server{
		mux:         http.NewServeMux(),
		config:      cfg,
		handshake:   deps.Handshake,
		tokens:      deps.Tokens,
		accounts:    deps.Accounts,
		resetTokens: deps.ResetTokens,
		notifier:    deps.Notifier,
	}
	s.env = cfg.GetEnv()

	if err := s.InitialiseSystem(); err != nil {
		return nil, fmt.Errorf("[Server New] failed to initialise the system: %w", err)
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

func (s *Server) initRoutes() {
	// Channel bootstrap
	s.RegisterRouteHandler("GET "+RouteKeys, ChainMiddleware(s.PublicKeyHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteHandshake, ChainMiddleware(s.HandshakeHandler(), s.APIMiddleware()...))

	// Auth endpoints (bodies travel inside the secure channel)
	s.RegisterRouteHandler("POST "+RouteAuthLogin, ChainMiddleware(s.LoginHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteAuthLogout, ChainMiddleware(s.LogoutHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAuthForgotPassword, ChainMiddleware(s.ForgotPasswordHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAuthResetPassword, ChainMiddleware(s.ResetPasswordHandler(), s.APIMiddleware()...))

	// Identity-consuming routes
	s.RegisterRouteHandler("GET "+RouteAPISession, ChainMiddleware(s.SessionHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteAPIProfile, ChainMiddleware(s.ProfileHandler(), append(s.APIMiddleware(), s.RequireAuth())...))
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		log.Info().Str("route", route).Msg("registered")
	}
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
