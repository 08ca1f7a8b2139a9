package handler

import (
	"bufio"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/consultorio_backend/internal/syncstore"
)

const keepAliveInterval = 25 * time.Second

// sseEvent writes one server-sent event and flushes it. A flush error means
// the client went away.
func sseEvent(w *bufio.Writer, event string, data any) error {
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, b); err != nil {
		return err
	}
	return w.Flush()
}

func sseHeaders(c fiber.Ctx) {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")
}

// streamSnapshots relays a live subscription as "snapshot" events until the
// client disconnects or the subscription is closed, e.g. on sign-out.
func streamSnapshots(c fiber.Ctx, sub *syncstore.Subscription, render func(syncstore.Snapshot) any) error {
	sseHeaders(c)
	return c.SendStreamWriter(func(w *bufio.Writer) {
		defer sub.Close()

		tick := time.NewTicker(keepAliveInterval)
		defer tick.Stop()

		for {
			select {
			case snap, open := <-sub.Updates():
				if !open {
					_ = sseEvent(w, "closed", fiber.Map{"reason": "subscription closed"})
					return
				}
				if err := sseEvent(w, "snapshot", render(snap)); err != nil {
					return
				}
			case <-tick.C:
				if _, err := w.WriteString(": ping\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	})
}
