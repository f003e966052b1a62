package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Channel bootstrap
	RouteKeys      = "/keys"
	RouteHandshake = "/handshake"

	// Auth (carried inside the secure channel)
	RouteAuthLogin          = "/auth/login"
	RouteAuthLogout         = "/auth/logout"
	RouteAuthForgotPassword = "/auth/forgot-password"
	RouteAuthResetPassword  = "/auth/reset-password"

	// Identity-consuming API routes
	RouteAPISession = "/api/session"
	RouteAPIProfile = "/api/profile"
)
