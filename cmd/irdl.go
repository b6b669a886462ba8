package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"irdl/pkg/app"
	"irdl/pkg/app/config"
	"irdl/pkg/capture"
	"irdl/pkg/r05d"
	"irdl/pkg/source"

	"github.com/urfave/cli/v2"
	"github.com/womat/debug"
)

const defaultConfigFile = "/opt/womat/config/" + app.MODULE + ".yaml"

func main() {
	exitCode := 1
	defer func() {
		os.Exit(exitCode)
	}()

	// cfg holds the application configuration
	cfg := config.NewConfig()

	cliApp := &cli.App{
		Name:    app.MODULE,
		Usage:   "R05D infrared decoder for air conditioner remote controls",
		Version: app.VERSION,
		Description: "Decode the pulse distance signal of R05D remote controls into address, fan speed, mode and temperature" +
			"\n the edges are read from a GPIO line, a serial or websocket logic sniffer or a capture file" +
			"\n and the decoded packets are published to mqtt and a web api.",
		UsageText: "irdl [--config <file>] [--log error|debug|trace] [run|decode|record]" +
			"\n\nEXAMPLE:" +
			"\n\tstart the decoder service and use the configuration file irdl.yaml" +
			"\n\t\tirdl --config /opt/womat/irdl.yaml run" +
			"\n\tprint the packets and warnings of a capture file" +
			"\n\t\tirdl decode --kinds packet,warning capture.txt",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Destination: &cfg.Flag.ConfigFile, Value: defaultConfigFile, Usage: "load configuration from `FILE`"},
			&cli.StringFlag{Name: "log", Aliases: []string{"l"}, Destination: &cfg.Flag.Debug, Usage: "`LEVEL` defines the log level (fatal|info|warning|error|debug|trace)"},
		},
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "decode the configured edge source and publish the packets",
				Action: func(ctx *cli.Context) error { return run(cfg) },
			},
			{
				Name:      "decode",
				Usage:     "print the annotations of a capture file",
				ArgsUsage: "FILE",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "layout", Usage: "packet `LAYOUT` (r05d|r05d-single|generic)"},
					&cli.StringFlag{Name: "polarity", Usage: "line `POLARITY` (active-low|active-high)"},
					&cli.Int64Flag{Name: "samplerate", Usage: "sample rate in `HZ` if the file has no samplerate header"},
					&cli.StringSliceFlag{Name: "kinds", Aliases: []string{"k"}, Usage: "print only annotations of `KIND`, e.g. packet,warning"},
				},
				Action: func(ctx *cli.Context) error { return decode(ctx, cfg) },
			},
			{
				Name:      "record",
				Usage:     "write the edges of the configured source to a capture file",
				ArgsUsage: "FILE",
				Action:    func(ctx *cli.Context) error { return record(ctx, cfg) },
			},
		},
		Action: func(ctx *cli.Context) error { return run(cfg) },
	}

	// we expect to have more command line flags in the future - sort them
	sort.Sort(cli.FlagsByName(cliApp.Flags))
	sort.Sort(cli.CommandsByName(cliApp.Commands))

	err := cliApp.Run(os.Args)
	if err != nil {
		debug.FatalLog.Print(err)
		exitCode = 1
		return
	}

	exitCode = 0
	return
}

// load reads the configuration and sets up the debug output.
func load(cfg *config.Config) (func(), error) {
	if err := cfg.LoadConfig(); err != nil {
		return nil, err
	}

	debug.SetDebug(cfg.Debug.File, cfg.Debug.Flag)
	return func() {
		debug.InfoLog.Printf("closing debug file %s", cfg.Debug.FileString)
		_ = cfg.Debug.File.Close()
	}, nil
}

// run starts the decoder service and waits for an exit signal or the end of
// the edge source.
func run(cfg *config.Config) error {
	done, err := load(cfg)
	if err != nil {
		return err
	}
	defer done()

	a, err := app.New(cfg)
	defer func() {
		debug.InfoLog.Printf("closing app %s", app.Version())
		_ = a.Close()
	}()

	if err != nil {
		return err
	}

	debug.InfoLog.Printf("starting app %s", app.Version())
	if err = a.Run(); err != nil {
		return err
	}

	quit := notify()
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		debug.InfoLog.Printf("Got %s signal. Aborting...", sig)
	case <-a.Shutdown():
		debug.InfoLog.Print("edge source ended")
	}
	return nil
}

// decode prints the annotations of a capture file and the statistics.
func decode(ctx *cli.Context, cfg *config.Config) error {
	if ctx.NArg() != 1 {
		return errors.New("decode needs exactly one capture file")
	}
	// a missing default configuration file is not an error for offline decoding
	if !ctx.IsSet("config") {
		if _, err := os.Stat(cfg.Flag.ConfigFile); err != nil {
			cfg.Flag.ConfigFile = ""
		}
	}
	if l := ctx.String("layout"); l != "" {
		cfg.Decoder.Layout = l
	}
	if p := ctx.String("polarity"); p != "" {
		cfg.Decoder.Polarity = p
	}
	if r := ctx.Int64("samplerate"); r > 0 {
		cfg.Decoder.SampleRate = r
	}

	done, err := load(cfg)
	if err != nil {
		return err
	}
	defer done()

	var kinds []r05d.Kind
	for _, s := range ctx.StringSlice("kinds") {
		for _, name := range strings.Split(s, ",") {
			k, ok := r05d.ParseKind(strings.TrimSpace(name))
			if !ok {
				return fmt.Errorf("unknown annotation kind %q", name)
			}
			kinds = append(kinds, k)
		}
	}

	f, err := os.Open(ctx.Args().First())
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	rate, edges, err := capture.ReadAll(f)
	if err != nil {
		return err
	}

	dc := cfg.Decoder.Config
	dc.Logger = debug.TraceLog
	if rate > 0 {
		dc.SampleRate = rate
	}

	printer := app.NewPrinter(os.Stdout, kinds...)
	stats := app.NewStatistics()
	session, err := r05d.NewSession(dc, r05d.MultiSink(printer, stats))
	if err != nil {
		return err
	}

	for _, e := range edges {
		session.OnEdge(e)
	}
	session.OnSessionEnd()
	if err = printer.Err(); err != nil {
		return err
	}

	fmt.Println(stats.Snapshot())
	return nil
}

// record writes the edges of the configured source to a capture file until
// an exit signal arrives or the source ends.
func record(ctx *cli.Context, cfg *config.Config) error {
	if ctx.NArg() != 1 {
		return errors.New("record needs exactly one output file")
	}

	done, err := load(cfg)
	if err != nil {
		return err
	}
	defer done()

	src, err := source.Open(ctx.Context, cfg.SourceConfig())
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	f, err := os.Create(ctx.Args().First())
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	rate := src.SampleRate()
	if rate == 0 {
		rate = cfg.Decoder.SampleRate
	}
	w, err := capture.NewWriter(f, rate)
	if err != nil {
		return err
	}
	if err = w.Comment(src.Name()); err != nil {
		return err
	}

	quit := notify()
	defer signal.Stop(quit)

	var n int
	defer func() { debug.InfoLog.Printf("recorded %d edges to %s", n, f.Name()) }()

	for {
		select {
		case e, ok := <-src.C:
			if !ok {
				if err = w.Flush(); err != nil {
					return err
				}
				return src.Err()
			}
			if err = w.Write(e); err != nil {
				return err
			}
			n++
		case sig := <-quit:
			debug.InfoLog.Printf("Got %s signal. Stop recording", sig)
			return w.Flush()
		}
	}
}

// notify captures exit signals to ensure resources are released on exit.
func notify() chan os.Signal {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	return quit
}
