package app

import (
	"context"
	"net/url"

	"irdl/pkg/app/config"
	"irdl/pkg/mqtt"
	"irdl/pkg/r05d"
	"irdl/pkg/source"

	"github.com/gofiber/fiber/v2"
	"github.com/womat/debug"
)

// App is the main application struct.
// App is where the application is wired up.
type App struct {
	// web is the fiber web framework instance
	web *fiber.App

	// config is the application configuration
	config *config.Config

	// urlParsed contains the parsed Config.Url parameter
	// and makes it easier to get params out of e.g.
	// url: https://0.0.0.0:7844/?minTls=1.2&bodyLimit=50MB
	urlParsed *url.URL

	// mqtt is the handler to the mqtt broker
	mqtt *mqtt.Handler

	// source delivers the edges of the IR line
	source *source.Source

	// receiver drives the decoder session from the source
	receiver *r05d.Receiver

	// packets holds the last decoded packets
	packets *Store

	// stats counts packets and decoder warnings
	stats *Statistics

	// restart signals application restart
	restart chan struct{}
	// shutdown signals application shutdown
	shutdown chan struct{}
}

// New checks the Web server URL and initialize the main app structure
func New(config *config.Config) (*App, error) {
	u, err := url.Parse(config.Webserver.URL)
	if err != nil {
		debug.ErrorLog.Printf("Error parsing url %q: %s", config.Webserver.URL, err.Error())
		return &App{}, err
	}

	return &App{
		config:    config,
		urlParsed: u,

		web:     fiber.New(fiber.Config{DisableStartupMessage: true}),
		mqtt:    mqtt.New(),
		packets: NewStore(config.Webserver.History),
		stats:   NewStatistics(),

		restart:  make(chan struct{}),
		shutdown: make(chan struct{}),
	}, err
}

// Run starts the application.
func (app *App) Run() error {
	if err := app.init(); err != nil {
		return err
	}

	go app.mqtt.Service()
	go app.runWebServer()
	go app.watchReceiver()

	return nil
}

// init initializes the application.
func (app *App) init() (err error) {
	cfg := app.config.Decoder.Config
	cfg.Logger = debug.TraceLog

	if app.source, err = source.Open(context.Background(), app.config.SourceConfig()); err != nil {
		debug.ErrorLog.Printf("can't open edge source: %v", err)
		return err
	}
	if r := app.source.SampleRate(); r > 0 && r != cfg.SampleRate {
		debug.InfoLog.Printf("%s defines the sample rate %d Hz", app.source.Name(), r)
		cfg.SampleRate = r
	}

	session, err := r05d.NewSession(cfg, app)
	if err != nil {
		debug.ErrorLog.Printf("can't start decoder: %v", err)
		return err
	}

	m := app.config.MQTT
	if err = app.mqtt.Connect(mqtt.Options{
		Broker:      m.Connection,
		ClientID:    m.ClientID,
		Username:    m.Username,
		Password:    m.Password,
		StatusTopic: m.StatusTopic,
	}); err != nil {
		debug.ErrorLog.Printf("can't open mqtt broker %v", err)
		return err
	}

	// initDefaultRoutes is called after the source is open, the health handler reports it
	app.initDefaultRoutes()

	app.receiver = r05d.NewReceiver(app.source.C, session, app.config.Decoder.IdleTimeout)
	return nil
}

// watchReceiver signals shutdown when the edge source has ended, e.g. at the
// end of a capture file.
func (app *App) watchReceiver() {
	<-app.receiver.Done()
	if err := app.source.Err(); err != nil {
		debug.ErrorLog.Printf("%s: %v", app.source.Name(), err)
	}
	debug.InfoLog.Printf("%s ended", app.source.Name())

	select {
	case <-app.shutdown:
	default:
		close(app.shutdown)
	}
}

// Restart returns the read only restart channel.
// Restart is used to be able to react on application restart. (see cmd/irdl.go)
func (app *App) Restart() <-chan struct{} {
	return app.restart
}

// Shutdown returns the read only shutdown channel.
// Shutdown is used to be able to react on application shutdown. (see cmd/irdl.go)
func (app *App) Shutdown() <-chan struct{} {
	return app.shutdown
}

func (app *App) Close() error {
	// the receiver flushes the last packet, so it is closed before mqtt
	if app.receiver != nil {
		_ = app.receiver.Close()
	}
	if app.source != nil {
		_ = app.source.Close()
	}
	if app.mqtt != nil {
		_ = app.mqtt.Disconnect()
	}
	if app.web != nil {
		_ = app.web.Shutdown()
	}

	if app.stats != nil {
		debug.InfoLog.Print(app.stats.Snapshot())
	}
	return nil
}
