package api

import "github.com/gin-gonic/gin"

// Handlers groups everything mounted under the api prefix.
type Handlers struct {
	Trips    *TripHandler
	Bookings *BookingHandler
	Auth     *AuthHandler
}

// RegisterRoutes mounts the public API on router with the auth middleware
// each route needs.
func RegisterRoutes(router *gin.RouterGroup, h Handlers, authenticator Authenticator) {
	optional := OptionalAuth(authenticator)
	required := RequireAuth(authenticator)
	admin := RequireAdmin()

	h.Auth.Register(router.Group("/auth"))
	h.Trips.Register(router.Group("/trips"), required, admin)
	h.Bookings.Register(router.Group("/bookings"), optional, required, admin)
}
