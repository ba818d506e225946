package router

import (
	"conference-webapp/handlers"
	"conference-webapp/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
)

type Options struct {
	SigningKey string
	// PublicReads leaves listing, lookup and dashboard routes open to
	// anonymous callers. Writes always need a session.
	PublicReads bool
}

func SetupRoutes(app *fiber.App, h *handlers.Handlers, opts Options) {
	guard := middleware.Authenticated(opts.SigningKey, h.Auth)
	read := guard
	if opts.PublicReads {
		read = nil
	}
	with := func(chain []fiber.Handler, handler fiber.Handler) []fiber.Handler {
		return append(append([]fiber.Handler{}, chain...), handler)
	}

	api := app.Group("/", logger.New())
	api.Get("/health", h.GetHealth)

	//Auth
	api.Post("/register", h.Register)
	api.Post("/login", h.Login)
	api.Post("/logout", with(guard, h.Logout)...)
	api.Get("/me", with(guard, h.Me)...)

	//Dashboard
	dashboard := api.Group("/dashboard")
	dashboard.Get("/", with(read, h.GetDashboard)...)
	dashboard.Get("/counts", with(read, h.GetDashboardCounts)...)

	//Conference
	conference := api.Group("/conference")
	conference.Get("/", with(read, h.GetConferences)...)
	conference.Get("/:id", with(read, h.GetConference)...)
	conference.Get("/:id/stats", with(read, h.GetConferenceStats)...)
	conference.Post("/", with(guard, h.CreateNewConference)...)
	conference.Put("/:id", with(guard, h.UpdateConference)...)
	conference.Patch("/:id/status", with(guard, h.UpdateConference)...)
	conference.Delete("/:id", with(guard, h.DeleteConference)...)

	conference.Get("/:confId/attendee", with(read, h.GetAttendees)...)
	conference.Post("/:confId/attendee", with(guard, h.RegisterAttendee)...)
	conference.Get("/:confId/session", with(read, h.GetSessions)...)
	conference.Post("/:confId/session", with(guard, h.ScheduleSession)...)

	//Attendee
	attendee := api.Group("/attendee")
	attendee.Get("/", with(read, h.GetAttendees)...)
	attendee.Get("/:id", with(read, h.GetAttendee)...)
	attendee.Post("/", with(guard, h.RegisterAttendee)...)
	attendee.Put("/:id", with(guard, h.UpdateAttendee)...)
	attendee.Patch("/:id/confirm", with(guard, h.ConfirmAttendee)...)
	attendee.Patch("/:id/cancel", with(guard, h.CancelAttendee)...)
	attendee.Delete("/:id", with(guard, h.DeleteAttendee)...)

	//Speaker
	speaker := api.Group("/speaker")
	speaker.Get("/", with(read, h.GetSpeakers)...)
	speaker.Get("/:id", with(read, h.GetSpeaker)...)
	speaker.Post("/", with(guard, h.CreateSpeaker)...)
	speaker.Put("/:id", with(guard, h.UpdateSpeaker)...)
	speaker.Delete("/:id", with(guard, h.DeleteSpeaker)...)

	//Session
	session := api.Group("/session")
	session.Get("/", with(read, h.GetSessions)...)
	session.Get("/:id", with(read, h.GetSession)...)
	session.Post("/", with(guard, h.ScheduleSession)...)
	session.Put("/:id", with(guard, h.UpdateSession)...)
	session.Delete("/:id", with(guard, h.DeleteSession)...)
}
