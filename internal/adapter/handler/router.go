package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/summarizer-bot/meeting-summarizer/pkg/config"
)

// Router holds all handlers
type Router struct {
	cfg       *config.Config
	eventGrid *EventGrid
	callbacks *Callbacks
	media     *MediaStream
	demo      *Demo
}

// NewRouter creates a new router with all handlers
func NewRouter(cfg *config.Config, eventGrid *EventGrid, callbacks *Callbacks, media *MediaStream, demo *Demo) *Router {
	return &Router{
		cfg:       cfg,
		eventGrid: eventGrid,
		callbacks: callbacks,
		media:     media,
		demo:      demo,
	}
}

// Setup configures all application routes
func (rt *Router) Setup(e *echo.Echo) {
	e.GET("/health", rt.healthCheck)

	api := e.Group("/api")
	api.POST("/eventgrid", rt.eventGrid.Handle)
	api.POST("/callbacks", rt.callbacks.Handle)

	demo := api.Group("/demo")
	demo.GET("/status", rt.demo.Status)
	demo.GET("/transcript/:id", rt.demo.Transcript)
	demo.POST("/stop", rt.demo.Stop)
	demo.GET("/events", rt.demo.Events)
	demo.GET("/events/:id", rt.demo.Events)

	e.GET("/ws/audio", rt.media.Handle)
}

// healthCheck returns health status
func (rt *Router) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"environment": rt.cfg.Server.Environment,
	})
}
