package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ayusman/headsup/internal/gesture"
	"github.com/ayusman/headsup/internal/orientation"
)

type Config struct {
	bind             string
	configFile       string
	db               string
	mqttBroker       string
	mqttClientID     string
	mqttPublishTopic string
	mqttTopic        string
	port             int
	preset           string
	publicURL        string
	serialBaud       int
	serialPort       string
	source           string
	staticDir        string
	tray             bool
	verbose          bool
	version          bool

	// resolved by load
	gesture gesture.Config
}

var sources = []string{"ws", "mqtt", "serial"}

func (c *Config) validate() error {
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}

	switch c.source {
	case "ws":
	case "mqtt":
		if c.mqttBroker == "" {
			return errors.New("--source mqtt requires --mqtt-broker")
		}
		if c.mqttTopic == "" {
			return errors.New("--source mqtt requires --mqtt-topic")
		}
	case "serial":
		if c.serialPort == "" {
			return errors.New("--source serial requires --serial-port")
		}
	default:
		return fmt.Errorf("invalid source %q (must be one of %s)", c.source, strings.Join(sources, ", "))
	}

	if c.mqttPublishTopic != "" && c.mqttBroker == "" {
		return errors.New("--mqtt-publish-topic requires --mqtt-broker")
	}
	if c.serialBaud < 1 {
		return fmt.Errorf("invalid serial baud rate: %d", c.serialBaud)
	}
	return nil
}

// dbPath returns the configured database path, defaulting to a file in the
// user's home directory. The parent directory is created.
func (c *Config) dbPath() (string, error) {
	path := c.db
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, ".headsup", "headsup.db")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	return path, nil
}

// load reads the optional config file into v, lets it fill flags that were
// not given on the command line and resolves the gesture thresholds.
func (c *Config) load(v *viper.Viper, fs *pflag.FlagSet) error {
	if c.configFile != "" {
		v.SetConfigFile(c.configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", c.configFile, err)
		}
		bindFlags(v, fs)
	}

	g, err := gesture.Preset(c.preset)
	if err != nil {
		return err
	}
	if v.IsSet("gesture") {
		if err := v.UnmarshalKey("gesture", &g); err != nil {
			return fmt.Errorf("decode gesture block: %w", err)
		}
	}
	if err := g.Validate(); err != nil {
		return err
	}

	c.gesture = g
	return nil
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) {
	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("HEADSUP")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "headsup",
		Short:         "Recognizes heads-up tilt gestures from phones and sensors held to the forehead.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return cfg.load(v, cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}

	normalize := func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	}

	pfs := cmd.PersistentFlags()
	pfs.SetNormalizeFunc(normalize)

	pfs.StringVarP(&cfg.configFile, "config", "c", "", "path to a yaml, toml or json config file (env: HEADSUP_CONFIG)")
	pfs.StringVar(&cfg.db, "db", "", "path to the sqlite database, default ~/.headsup/headsup.db (env: HEADSUP_DB)")
	pfs.StringVar(&cfg.preset, "preset", gesture.DefaultPreset, "threshold preset: "+strings.Join(gesture.PresetNames(), ", ")+" (env: HEADSUP_PRESET)")
	pfs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: HEADSUP_VERBOSE)")

	fs := cmd.Flags()
	fs.SetNormalizeFunc(normalize)

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: HEADSUP_BIND)")
	fs.StringVar(&cfg.mqttBroker, "mqtt-broker", "", "mqtt broker url, e.g. tcp://localhost:1883 (env: HEADSUP_MQTT_BROKER)")
	fs.StringVar(&cfg.mqttClientID, "mqtt-client-id", "headsup", "mqtt client id (env: HEADSUP_MQTT_CLIENT_ID)")
	fs.StringVar(&cfg.mqttPublishTopic, "mqtt-publish-topic", "", "publish recognized gestures to this mqtt topic (env: HEADSUP_MQTT_PUBLISH_TOPIC)")
	fs.StringVar(&cfg.mqttTopic, "mqtt-topic", "headsup/orientation", "mqtt topic carrying orientation readings (env: HEADSUP_MQTT_TOPIC)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: HEADSUP_PORT)")
	fs.StringVar(&cfg.publicURL, "public-url", "", "join url shown to phones, e.g. behind a reverse proxy (env: HEADSUP_PUBLIC_URL)")
	fs.IntVar(&cfg.serialBaud, "serial-baud", orientation.DefaultBaudRate, "serial baud rate (env: HEADSUP_SERIAL_BAUD)")
	fs.StringVar(&cfg.serialPort, "serial-port", "", "serial port of an imu board, e.g. /dev/ttyUSB0 (env: HEADSUP_SERIAL_PORT)")
	fs.StringVarP(&cfg.source, "source", "s", "ws", "extra sensor source besides phones: "+strings.Join(sources, ", ")+" (env: HEADSUP_SOURCE)")
	fs.StringVar(&cfg.staticDir, "static-dir", "", "serve the phone page from this directory instead of the built-in one (env: HEADSUP_STATIC_DIR)")
	fs.BoolVarP(&cfg.tray, "tray", "t", false, "show a system tray icon (env: HEADSUP_TRAY)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: HEADSUP_VERSION)")

	bindFlags(v, pfs)
	bindFlags(v, fs)

	cmd.AddCommand(newReplayCmd(cfg), newCalibrateCmd(cfg))

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("headsup v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
