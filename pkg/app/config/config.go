package config

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/womat/debug"
	"gopkg.in/yaml.v2"

	"irdl/pkg/port"
	"irdl/pkg/r05d"
	"irdl/pkg/source"
	"irdl/pkg/timing"
)

// Config defines the struct of global config and the struct of the configuration file
type Config struct {
	Flag      FlagConfig      `yaml:"-"`
	Decoder   DecoderConfig   `yaml:"decoder"`
	Source    SourceConfig    `yaml:"source"`
	Debug     DebugConfig     `yaml:"debug"`
	Webserver WebserverConfig `yaml:"webserver"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
}

// FlagConfig defines the configured flags (parameters)
type FlagConfig struct {
	Version    bool
	Debug      string
	ConfigFile string
}

// DecoderConfig defines the protocol and timing parameters.
// The timing overrides are keyed by category name, e.g. bit1high.
type DecoderConfig struct {
	Polarity   string                  `yaml:"polarity"`
	SampleRate int64                   `yaml:"samplerate"`
	Tolerance  float64                 `yaml:"tolerance"`
	Timings    map[string]TimingConfig `yaml:"timings"`

	Layout         string `yaml:"layout"`
	BlockBytes     int    `yaml:"blockbytes"`
	Blocks         int    `yaml:"blocks"`
	MinBytes       int    `yaml:"minbytes"`
	LeaderPerBlock *bool  `yaml:"leaderperblock"`
	Checksum       string `yaml:"checksum"`

	// IdleTimeout is the wall clock time after which a live receiver
	// forces the idle timeout.
	IdleTimeout    time.Duration `yaml:"-"`
	IdleTimeoutInt int           `yaml:"idletimeout"`

	// Config is the resolved decoder configuration.
	Config r05d.Config `yaml:"-"`
}

// TimingConfig overrides one timing category.
type TimingConfig struct {
	// Nominal is the nominal duration in ms.
	Nominal float64 `yaml:"nominal"`
	// Tolerance is the tolerance in percent of the nominal duration.
	Tolerance *float64 `yaml:"tolerance"`
	// Margin is the minimal tolerance in µs.
	Margin int `yaml:"margin"`
}

// SourceConfig defines the edge source, see package source.
type SourceConfig struct {
	Type        string        `yaml:"type"`
	File        string        `yaml:"file"`
	Chip        string        `yaml:"chip"`
	Line        int           `yaml:"line"`
	Bias        string        `yaml:"bias"`
	DebounceInt int           `yaml:"debounce"`
	Debounce    time.Duration `yaml:"-"`
	Port        string        `yaml:"port"`
	Baud        int           `yaml:"baud"`
	URL         string        `yaml:"url"`
	Username    string        `yaml:"username"`
	Password    string        `yaml:"password"`
	SkipVerify  bool          `yaml:"skipverify"`
}

// WebserverConfig defines the struct of the webserver and webservice configuration and configuration file
type WebserverConfig struct {
	URL         string          `yaml:"url"`
	Webservices map[string]bool `yaml:"webservices"`
	// History is the number of packets kept for /packets.
	History int `yaml:"history"`
}

// MQTTConfig defines the struct of the mqtt client configuration and configuration file
type MQTTConfig struct {
	Connection  string `yaml:"connection"`
	ClientID    string `yaml:"clientid"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	Topic       string `yaml:"topic"`
	StatusTopic string `yaml:"statustopic"`
	Retained    bool   `yaml:"retained"`
	// Format is the payload encoding: json or cbor.
	Format string `yaml:"format"`
	// InvalidPackets also publishes packets that failed the checksum.
	InvalidPackets bool `yaml:"invalidpackets"`
}

// DebugConfig defines the struct of the debug configuration and configuration file
type DebugConfig struct {
	File       io.WriteCloser `yaml:"-"`
	Flag       int            `yaml:"-"`
	FlagString string         `yaml:"flag"`
	FileString string         `yaml:"file"`
}

func NewConfig() *Config {
	return &Config{
		Flag: FlagConfig{},
		Decoder: DecoderConfig{
			Polarity:       port.ActiveLow.String(),
			SampleRate:     port.Microseconds,
			Tolerance:      timing.DefaultTolerance,
			Layout:         r05d.R05D.Name,
			IdleTimeoutInt: 100,
		},
		Source: SourceConfig{
			Type: source.TypeGPIO,
			Chip: "gpiochip0",
			Line: 17,
			Bias: "pullup",
			Baud: 115200,
		},
		Debug: DebugConfig{
			FileString: "stderr",
			FlagString: "standard",
		},
		Webserver: WebserverConfig{
			URL: "http://0.0.0.0:4000",
			Webservices: map[string]bool{
				"version": true,
				"health":  true,
				"packets": true,
				"stats":   true,
			},
			History: 100,
		},
		MQTT: MQTTConfig{
			Connection: "",
			ClientID:   "irdl",
			Topic:      "irdl/r05d",
			Format:     "json",
		},
	}
}

// LoadConfig reads the config file (if any), applies the flags and resolves
// the decoder configuration.
func (c *Config) LoadConfig() error {
	if c.Flag.ConfigFile != "" {
		if err := c.readConfigFile(); err != nil {
			return fmt.Errorf("error reading config file %q: %w", c.Flag.ConfigFile, err)
		}
	}

	if c.Flag.Debug != "" {
		c.Debug.FlagString = c.Flag.Debug
	}
	if err := c.setDebugConfig(); err != nil {
		return fmt.Errorf("unable to open debug file %q: %w", c.Debug.FileString, err)
	}

	c.Decoder.IdleTimeout = time.Duration(c.Decoder.IdleTimeoutInt) * time.Millisecond
	c.Source.Debounce = time.Duration(c.Source.DebounceInt) * time.Microsecond

	return c.Resolve()
}

// Resolve validates the decoder and output settings and builds
// Decoder.Config.
func (c *Config) Resolve() error {
	pol, ok := port.ParsePolarity(c.Decoder.Polarity)
	if !ok {
		return fmt.Errorf("%w: polarity %q", r05d.ErrInvalidConfig, c.Decoder.Polarity)
	}

	table := timing.DefaultTable(c.Decoder.Tolerance)
	for name, t := range c.Decoder.Timings {
		cat, ok := timing.ParseCategory(name)
		if !ok {
			return fmt.Errorf("%w: unknown timing %q", r05d.ErrInvalidConfig, name)
		}
		if t.Nominal > 0 {
			table[cat].Nominal = time.Duration(math.Round(t.Nominal * float64(time.Millisecond)))
		}
		if t.Tolerance != nil {
			table[cat].Percent = *t.Tolerance
		}
		if t.Margin > 0 {
			table[cat].Margin = time.Duration(t.Margin) * time.Microsecond
		}
	}

	layout, err := c.layout()
	if err != nil {
		return err
	}

	cfg := r05d.Config{
		Polarity:   pol,
		SampleRate: c.Decoder.SampleRate,
		Timings:    table,
		Layout:     layout,
	}
	if _, err := cfg.Timings.Resolve(cfg.SampleRate); err != nil {
		return fmt.Errorf("%w: %w", r05d.ErrInvalidConfig, err)
	}
	c.Decoder.Config = cfg

	switch c.MQTT.Format {
	case "json", "cbor":
	default:
		return fmt.Errorf("%w: mqtt format %q (use json or cbor)", r05d.ErrInvalidConfig, c.MQTT.Format)
	}
	return nil
}

func (c *Config) layout() (r05d.Layout, error) {
	d := c.Decoder
	l, err := r05d.LayoutByName(d.Layout)
	if err != nil {
		return l, err
	}

	if d.BlockBytes > 0 {
		l.BlockBytes = d.BlockBytes
	}
	if d.Blocks > 0 {
		l.Blocks = d.Blocks
	}
	if d.MinBytes > 0 {
		l.MinBytes = d.MinBytes
	}
	if d.LeaderPerBlock != nil {
		l.LeaderPerBlock = *d.LeaderPerBlock
	}
	if d.Checksum != "" {
		if l.Checksum, err = r05d.ChecksumByName(d.Checksum); err != nil {
			return l, err
		}
	}
	return l, l.Validate()
}

// SourceConfig returns the configuration of the edge source.
func (c *Config) SourceConfig() source.Config {
	s := c.Source
	return source.Config{
		Type:       s.Type,
		File:       s.File,
		Chip:       s.Chip,
		Line:       s.Line,
		Bias:       s.Bias,
		Debounce:   s.Debounce,
		Port:       s.Port,
		Baud:       s.Baud,
		URL:        s.URL,
		Username:   s.Username,
		Password:   s.Password,
		SkipVerify: s.SkipVerify,
	}
}

func (c *Config) readConfigFile() error {
	file, err := os.Open(c.Flag.ConfigFile)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	// strict mode rejects keys already present in a map, the file is decoded
	// into an empty webservices map and merged over the defaults
	defaults := c.Webserver.Webservices
	c.Webserver.Webservices = nil

	decoder := yaml.NewDecoder(file)
	decoder.SetStrict(true)
	err = decoder.Decode(c)

	services := c.Webserver.Webservices
	c.Webserver.Webservices = make(map[string]bool, len(defaults)+len(services))
	for k, v := range defaults {
		c.Webserver.Webservices[k] = v
	}
	for k, v := range services {
		c.Webserver.Webservices[k] = v
	}
	return err
}

func (c *Config) setDebugConfig() (err error) {
	// defines Debug section of global.Config
	switch strings.ToLower(c.Debug.FlagString) {
	case "trace", "full":
		c.Debug.Flag = debug.Full
	case "debug":
		c.Debug.Flag = debug.Warning | debug.Info | debug.Error | debug.Fatal | debug.Debug
	case "standard":
		c.Debug.Flag = debug.Standard
	case "info":
		c.Debug.Flag = debug.Info | debug.Warning | debug.Error | debug.Fatal
	case "warning":
		c.Debug.Flag = debug.Warning | debug.Error | debug.Fatal
	case "error":
		c.Debug.Flag = debug.Error | debug.Fatal
	case "fatal":
		c.Debug.Flag = debug.Fatal
	default:
		return fmt.Errorf("unknown log level %q", c.Debug.FlagString)
	}

	switch c.Debug.FileString {
	case "stderr":
		c.Debug.File = nopCloser{os.Stderr}
	case "stdout":
		c.Debug.File = nopCloser{os.Stdout}
	default:
		if c.Debug.File, err = os.OpenFile(c.Debug.FileString, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666); err != nil {
			return
		}
	}

	return
}

// nopCloser keeps stderr and stdout open when the debug file is closed.
type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
