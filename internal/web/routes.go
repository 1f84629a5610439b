package web

import (
	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/frontdesk/internal/web/handlers"
	"github.com/kozaktomas/frontdesk/internal/web/middleware"
)

func (s *Server) setupRoutes() {
	// Create handlers
	sessionHandler := handlers.NewSessionHandler(s.engine)
	decisionHandler := handlers.NewDecisionHandler(s.engine)
	otpHandler := handlers.NewOTPHandler(s.engine)
	enrollHandler := handlers.NewEnrollHandler(s.engine)
	employeesHandler := handlers.NewEmployeesHandler(s.engine)
	identitiesHandler := handlers.NewIdentitiesHandler(s.engine)
	greetingHandler := handlers.NewGreetingHandler(s.base, s.engine)

	// Health check (no auth required)
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RequireAPIToken(s.config.Web.APIToken))

		// Session lifecycle
		r.Get("/session", sessionHandler.Get)
		r.Post("/session/wake", sessionHandler.Wake)
		r.Post("/session/goodbye", sessionHandler.Goodbye)
		r.Post("/session/role", sessionHandler.SelectRole)

		// Face decisions
		r.Post("/decision", decisionHandler.Decide)
		r.Post("/decision/stop", decisionHandler.Stop)

		// Employee login codes
		r.Post("/otp/request", otpHandler.Request)
		r.Post("/otp/verify", otpHandler.Verify)

		// Enrollment
		r.Post("/enroll/request", enrollHandler.Request)
		r.Post("/enroll/complete", enrollHandler.Complete)

		// Records
		r.Get("/employees/me", employeesHandler.Me)
		r.Post("/visitors", employeesHandler.LogVisitor)
		r.Post("/candidates", employeesHandler.CandidateCheckIn)

		// Identities
		r.Get("/identities", identitiesHandler.List)
		r.Get("/identities/{id}/similar", identitiesHandler.Similar)

		// Greeting loop
		r.Get("/greeting", greetingHandler.Status)
		r.Post("/greeting/start", greetingHandler.Start)
		r.Post("/greeting/stop", greetingHandler.Stop)
	})
}
