package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/stresscall/stresscall-backend/internal/handlers"
)

func SetupRoutes(r *chi.Mux) {
	// Auth routes
	r.Post("/api/auth/signup", handlers.Signup)
	r.Post("/api/auth/signin", handlers.Signin)
	r.Post("/api/auth/federated", handlers.FederatedSignin)
	r.Post("/api/auth/signout", handlers.Signout)
	r.Get("/api/auth/me", handlers.GetMe)
	r.Put("/api/auth/profile", handlers.UpdateProfile)
	r.Post("/api/auth/change-password", handlers.ChangePassword)

	// Stress check routes
	r.Post("/api/stress/analyze", handlers.AnalyzeStress)
	r.Get("/api/stress/quota", handlers.GetQuota)

	// Report history
	r.Get("/api/reports", handlers.GetReports)

	// Billing (Stripe subscription upgrade)
	r.Post("/api/billing/checkout", handlers.CreateCheckout)
	r.Post("/api/billing/webhook", handlers.StripeWebhook)

	// WebSocket endpoint for live recording capture
	r.Get("/ws/capture", handlers.CaptureWebSocket)
}
