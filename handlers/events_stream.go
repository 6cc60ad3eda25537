package handlers

import (
	"bufio"
	"encoding/json"
	"fmt"
	"time"

	"quest-progression-system/logger"
	"quest-progression-system/middleware"
	"quest-progression-system/notifications"

	"github.com/gofiber/fiber/v2"
)

const keepAliveInterval = 15 * time.Second

// SetupEventStreamRoute streams the authenticated user's progression events
// (level ups, milestones, penalties...) as server-sent events.
func SetupEventStreamRoute(app *fiber.App, hub *notifications.Hub, log *logger.Logger) {
	log = log.With("handler", "events_stream")

	app.Get("/user/events/stream", middleware.UserContextMiddleware(log), func(c *fiber.Ctx) error {
		userID := middleware.UserID(c)

		// SSE headers
		c.Set("Content-Type", "text/event-stream")
		c.Set("Cache-Control", "no-cache")
		c.Set("Connection", "keep-alive")
		c.Set("X-Accel-Buffering", "no") // nginx

		// Subscribe before the writer runs so nothing published in between is lost.
		sub := hub.Subscribe(userID)
		done := c.Context().Done()

		c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
			defer sub.Close()

			keepAlive := time.NewTicker(keepAliveInterval)
			defer keepAlive.Stop()

			// Initial keepalive (comment event)
			w.WriteString(":\n\n")
			if err := w.Flush(); err != nil {
				return
			}

			for {
				select {
				case ev, ok := <-sub.C:
					if !ok {
						return
					}
					payload, err := json.Marshal(ev)
					if err != nil {
						log.Warn("failed to encode event", "type", ev.Type, "error", err)
						continue
					}
					fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, payload)
					if err := w.Flush(); err != nil {
						// Client disconnected
						return
					}

				case <-keepAlive.C:
					w.WriteString(":\n\n")
					if err := w.Flush(); err != nil {
						return
					}

				case <-done:
					return
				}
			}
		})
		return nil
	})
}
