package app

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/womat/debug"
)

// runWebServer starts the applications web server and listens for web requests.
//  It's designed to run in a separate go function to not block the main go function.
//  e.g.: go runWebServer()
//  See app.Run()
func (app *App) runWebServer() {
	err := app.web.Listen(app.urlParsed.Host)
	debug.ErrorLog.Print(err)
}

// HandlePackets returns the last decoded packets, the newest last.
//  The query parameter n limits the number of packets, e.g. /packets?n=10
func (app *App) HandlePackets() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		debug.InfoLog.Print("web request packets")

		n := 0
		if q := ctx.Query("n"); q != "" {
			var err error
			if n, err = strconv.Atoi(q); err != nil || n < 0 {
				return fiber.NewError(http.StatusBadRequest, "invalid packet count "+strconv.Quote(q))
			}
		}
		return ctx.JSON(app.packets.Last(n))
	}
}

// HandleLatestPacket returns the newest decoded packet.
func (app *App) HandleLatestPacket() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		debug.InfoLog.Print("web request latest packet")

		r, ok := app.packets.Latest()
		if !ok {
			return fiber.NewError(http.StatusNotFound, "no packet received")
		}
		return ctx.JSON(r)
	}
}

// HandleStats returns the decoder statistics.
func (app *App) HandleStats() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		debug.InfoLog.Print("web request stats")

		return ctx.JSON(app.stats.Snapshot())
	}
}
