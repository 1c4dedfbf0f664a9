// Package config loads the settings of the commands from flags, environment
// variables prefixed with ELGAMAL_, and an optional config file.
package config

import (
	"errors"
	"fmt"
	"io"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "ELGAMAL"

// Keys of the settings.
const (
	KeyConfig       = "config"
	KeyRounds       = "rounds"
	KeyEndpoint     = "endpoint"
	KeyListen       = "listen"
	KeyProbeTimeout = "probe-timeout"
	KeyParamsTopic  = "params-topic"
	KeyResultTopic  = "result-topic"
	KeyLogLevel     = "log-level"
	KeyLogFormat    = "log-format"
	KeyBacklog      = "backlog"

	KeyEndpointListen = "endpoint-listen"
	KeyBridge         = "bridge"
	KeyInterval       = "interval"
	KeyP              = "p"
	KeyA              = "a"
	KeyBits           = "bits"
)

const (
	DefaultProbeTimeout = time.Second
	DefaultInterval     = time.Second
)

const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Config holds the settings of both commands.
type Config struct {
	// Rounds is the number of rounds the client completes.
	Rounds int
	// Endpoint is the URL of the encrypting party.
	Endpoint string
	// Listen is the address of the client bus bridge.
	Listen       string
	ProbeTimeout time.Duration
	ParamsTopic  string
	ResultTopic  string
	LogLevel     zerolog.Level
	LogFormat    string
	// Backlog is the number of messages kept per bus topic.
	Backlog int

	// EndpointListen is the address the encrypting party serves on.
	EndpointListen string
	// Bridge is the URL of the client bridge parameters are published to.
	Bridge string
	// Interval separates two parameter publications.
	Interval time.Duration
	// P and A are fixed domain parameters. If P is 0, a safe prime of Bits bits
	// and a generator are drawn at startup.
	P, A uint64
	Bits int
}

// SetDefaults registers the default value of every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyRounds, 5)
	v.SetDefault(KeyEndpoint, "http://127.0.0.1:8461")
	v.SetDefault(KeyListen, "127.0.0.1:8460")
	v.SetDefault(KeyProbeTimeout, DefaultProbeTimeout)
	v.SetDefault(KeyParamsTopic, "elgamal_params")
	v.SetDefault(KeyResultTopic, "elgamal_result")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, FormatConsole)
	v.SetDefault(KeyBacklog, 64)

	v.SetDefault(KeyEndpointListen, "127.0.0.1:8461")
	v.SetDefault(KeyBridge, "http://127.0.0.1:8460")
	v.SetDefault(KeyInterval, DefaultInterval)
	v.SetDefault(KeyP, 0)
	v.SetDefault(KeyA, 0)
	v.SetDefault(KeyBits, 31)
}

// New returns a viper instance reading the environment and holding the defaults.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// BindFlags binds every flag of fs to the key of the same name.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	var err error
	fs.VisitAll(func(f *pflag.Flag) {
		if err == nil {
			err = v.BindPFlag(f.Name, f)
		}
	})
	return err
}

// Load reads the config file named by the config key, if any, and returns the
// validated settings.
func Load(v *viper.Viper) (Config, error) {
	if file := v.GetString(KeyConfig); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: failed to read %s: %w", file, err)
		}
	}
	level, err := zerolog.ParseLevel(strings.ToLower(v.GetString(KeyLogLevel)))
	if err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", KeyLogLevel, err)
	}
	cfg := Config{
		Rounds:         v.GetInt(KeyRounds),
		Endpoint:       v.GetString(KeyEndpoint),
		Listen:         v.GetString(KeyListen),
		ProbeTimeout:   v.GetDuration(KeyProbeTimeout),
		ParamsTopic:    v.GetString(KeyParamsTopic),
		ResultTopic:    v.GetString(KeyResultTopic),
		LogLevel:       level,
		LogFormat:      strings.ToLower(v.GetString(KeyLogFormat)),
		Backlog:        v.GetInt(KeyBacklog),
		EndpointListen: v.GetString(KeyEndpointListen),
		Bridge:         v.GetString(KeyBridge),
		Interval:       v.GetDuration(KeyInterval),
		P:              v.GetUint64(KeyP),
		A:              v.GetUint64(KeyA),
		Bits:           v.GetInt(KeyBits),
	}
	if err = cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings.
func (c Config) Validate() error {
	var errs []error
	if c.Rounds < 1 || c.Rounds > math.MaxUint16 {
		errs = append(errs, fmt.Errorf("%s must be in [1, %d], got %d", KeyRounds, math.MaxUint16, c.Rounds))
	}
	if c.ProbeTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", KeyProbeTimeout))
	}
	if c.Interval <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", KeyInterval))
	}
	if c.ParamsTopic == "" || c.ResultTopic == "" {
		errs = append(errs, errors.New("topics must not be empty"))
	} else if c.ParamsTopic == c.ResultTopic {
		errs = append(errs, fmt.Errorf("%s and %s must differ", KeyParamsTopic, KeyResultTopic))
	}
	if c.LogFormat != FormatConsole && c.LogFormat != FormatJSON {
		errs = append(errs, fmt.Errorf("%s must be %q or %q, got %q", KeyLogFormat, FormatConsole, FormatJSON, c.LogFormat))
	}
	if c.Backlog < 1 {
		errs = append(errs, fmt.Errorf("%s must be positive", KeyBacklog))
	}
	for key, raw := range map[string]string{KeyEndpoint: c.Endpoint, KeyBridge: c.Bridge} {
		if err := checkURL(raw); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}
	if c.P == 0 && (c.Bits < 3 || c.Bits > 63) {
		errs = append(errs, fmt.Errorf("%s must be in [3, 63], got %d", KeyBits, c.Bits))
	}
	if c.P != 0 && c.P < 3 {
		errs = append(errs, fmt.Errorf("%s must be at least 3", KeyP))
	} else if c.P != 0 && (c.A < 2 || c.A >= c.P) {
		errs = append(errs, fmt.Errorf("%s must be in [2, %s)", KeyA, KeyP))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func checkURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid url %q", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid url %q: missing host", raw)
	}
	return nil
}

// Logger returns the logger configured by c, writing to w.
func (c Config) Logger(w io.Writer) zerolog.Logger {
	if c.LogFormat == FormatConsole {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(c.LogLevel).With().Timestamp().Logger()
}
