// Package config provides configuration management for reelsmith.
//
// Values are layered: built-in defaults, then an optional TOML file named by
// REELSMITH_CONFIG, then REELSMITH_* environment variables. The environment
// variable for a key is its upper-cased TOML name with the prefix, e.g.
// max_upload_mb -> REELSMITH_MAX_UPLOAD_MB.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/reelsmith/reelsmith/internal/media"
)

const (
	// Default values
	DefaultPort        = 8790
	DefaultBind        = "127.0.0.1"
	DefaultLogLevel    = "info"
	DefaultDataDir     = ".reelsmith"
	DefaultMaxUploadMB = 512
	DefaultTranscriber = "whisper-cpp"
	DefaultKafkaTopic  = "reelsmith.jobs"
	DefaultKafkaGroup  = "reelsmith"

	DefaultStageTimeout = 20 * time.Minute
	DefaultProgressTTL  = 30 * time.Minute

	EnvPrefix = "REELSMITH_"
	// EnvConfigFile names the optional TOML file.
	EnvConfigFile = EnvPrefix + "CONFIG"

	// Database filename
	DBFilename = "reelsmith.db"
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	Addr() string
	LogLevel() string
	DataDir() string
	DBPath() string
	AssetsDir() string
	OutputsDir() string
	UploadsDir() string
	MaxUploadBytes() int64
	FFmpegPath() string
	FFprobePath() string
	StageTimeout() time.Duration
	Transcription() Transcription
	Tuning() Tuning
	RedisURL() string
	ProgressTTL() time.Duration
	S3() S3
	Kafka() Kafka
}

// Transcription selects and configures the speech-to-text backend.
type Transcription struct {
	Kind         string `toml:"transcriber"`
	WhisperBin   string `toml:"whisper_bin"`
	WhisperModel string `toml:"whisper_model"`
	URL          string `toml:"transcribe_url"`
	APIKey       string `toml:"transcribe_api_key"`
	Model        string `toml:"transcribe_model"`
	Language     string `toml:"transcribe_language"`
}

// Tuning holds the default pipeline knobs; requests may override some.
type Tuning struct {
	SilenceThresholdDB    float64        `toml:"silence_threshold_db"`
	MinSilenceSec         float64        `toml:"min_silence_sec"`
	SilencePaddingSec     float64        `toml:"silence_padding_sec"`
	FillerSensitivity     float64        `toml:"filler_sensitivity"`
	FillerUpperDB         float64        `toml:"filler_upper_db"`
	FillerMinSec          float64        `toml:"filler_min_sec"`
	FillerMaxSec          float64        `toml:"filler_max_sec"`
	FillerPaddingSec      float64        `toml:"filler_padding_sec"`
	StopListOnItemFailure bool           `toml:"stop_list_on_item_failure"`
	Zoom                  media.ZoomSpec `toml:"zoom"`
}

// S3 configures artifact publishing. An empty Bucket disables it.
type S3 struct {
	Bucket    string `toml:"s3_bucket"`
	Region    string `toml:"s3_region"`
	Prefix    string `toml:"s3_prefix"`
	Endpoint  string `toml:"s3_endpoint"`
	PathStyle bool   `toml:"s3_path_style"`
}

func (s S3) Enabled() bool { return s.Bucket != "" }

// Kafka configures queue intake. No brokers disables it.
type Kafka struct {
	Brokers []string `toml:"kafka_brokers"`
	Topic   string   `toml:"kafka_topic"`
	Group   string   `toml:"kafka_group"`
}

func (k Kafka) Enabled() bool { return len(k.Brokers) > 0 }

// duration decodes "90s" style strings from TOML.
type duration time.Duration

func (d *duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = duration(v)
	return nil
}

type values struct {
	Port        int    `toml:"port"`
	Bind        string `toml:"bind"`
	LogLevel    string `toml:"log_level"`
	DataDir     string `toml:"data_dir"`
	AssetsDir   string `toml:"assets_dir"`
	MaxUploadMB int64  `toml:"max_upload_mb"`

	FFmpeg       string   `toml:"ffmpeg"`
	FFprobe      string   `toml:"ffprobe"`
	StageTimeout duration `toml:"stage_timeout"`

	Transcription
	Tuning

	RedisURL    string   `toml:"redis_url"`
	ProgressTTL duration `toml:"progress_ttl"`

	S3
	Kafka
}

// EnvConfig is the resolved configuration.
type EnvConfig struct {
	v    values
	file string
}

// New creates a new EnvConfig from defaults, the optional config file and
// environment variable overrides.
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{v: defaults()}

	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
		cfg.file = path
	}
	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}
	if cfg.v.AssetsDir == "" {
		cfg.v.AssetsDir = filepath.Join(cfg.v.DataDir, "assets")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() values {
	return values{
		Port:         DefaultPort,
		Bind:         DefaultBind,
		LogLevel:     DefaultLogLevel,
		DataDir:      defaultDataDir(),
		MaxUploadMB:  DefaultMaxUploadMB,
		FFmpeg:       "ffmpeg",
		FFprobe:      "ffprobe",
		StageTimeout: duration(DefaultStageTimeout),
		Transcription: Transcription{
			Kind:     DefaultTranscriber,
			Language: "auto",
		},
		Tuning: Tuning{
			SilenceThresholdDB: -35,
			MinSilenceSec:      0.25,
			SilencePaddingSec:  0.12,
			FillerSensitivity:  1,
			FillerUpperDB:      -10,
			FillerMinSec:       0.15,
			FillerMaxSec:       0.8,
			Zoom: media.ZoomSpec{
				StartZoom: 1.0,
				EndZoom:   1.15,
				Duration:  1.0,
				Easing:    media.DefaultEasing,
			},
		},
		ProgressTTL: duration(DefaultProgressTTL),
		Kafka: Kafka{
			Topic: DefaultKafkaTopic,
			Group: DefaultKafkaGroup,
		},
	}
}

// loadFile decodes the TOML file over the current values; keys absent from
// the file keep their defaults.
func (c *EnvConfig) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := toml.Unmarshal(data, &c.v); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return fmt.Errorf("config file %s:%d:%d: %w", path, row, col, err)
		}
		return fmt.Errorf("config file %s: %w", path, err)
	}
	return nil
}

func (c *EnvConfig) loadEnv() error {
	v := &c.v
	var errs []error
	str := func(key string, dst *string) {
		if s := os.Getenv(envName(key)); s != "" {
			*dst = s
		}
	}
	num := func(key string, dst *float64) {
		if s := os.Getenv(envName(key)); s != "" {
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s: %w", envName(key), err))
				return
			}
			*dst = f
		}
	}
	integer := func(key string, dst *int64) {
		if s := os.Getenv(envName(key)); s != "" {
			n, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s: %w", envName(key), err))
				return
			}
			*dst = n
		}
	}
	boolean := func(key string, dst *bool) {
		if s := os.Getenv(envName(key)); s != "" {
			b, err := strconv.ParseBool(s)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s: %w", envName(key), err))
				return
			}
			*dst = b
		}
	}
	dur := func(key string, dst *duration) {
		if s := os.Getenv(envName(key)); s != "" {
			if err := dst.UnmarshalText([]byte(s)); err != nil {
				errs = append(errs, fmt.Errorf("invalid %s: %w", envName(key), err))
			}
		}
	}

	port := int64(v.Port)
	integer("port", &port)
	v.Port = int(port)
	str("bind", &v.Bind)
	str("log_level", &v.LogLevel)
	str("data_dir", &v.DataDir)
	str("assets_dir", &v.AssetsDir)
	integer("max_upload_mb", &v.MaxUploadMB)

	str("ffmpeg", &v.FFmpeg)
	str("ffprobe", &v.FFprobe)
	dur("stage_timeout", &v.StageTimeout)

	str("transcriber", &v.Kind)
	str("whisper_bin", &v.WhisperBin)
	str("whisper_model", &v.WhisperModel)
	str("transcribe_url", &v.URL)
	str("transcribe_api_key", &v.APIKey)
	str("transcribe_model", &v.Model)
	str("transcribe_language", &v.Language)

	num("silence_threshold_db", &v.SilenceThresholdDB)
	num("min_silence_sec", &v.MinSilenceSec)
	num("silence_padding_sec", &v.SilencePaddingSec)
	num("filler_sensitivity", &v.FillerSensitivity)
	num("filler_upper_db", &v.FillerUpperDB)
	num("filler_min_sec", &v.FillerMinSec)
	num("filler_max_sec", &v.FillerMaxSec)
	num("filler_padding_sec", &v.FillerPaddingSec)
	boolean("stop_list_on_item_failure", &v.StopListOnItemFailure)
	num("zoom_start", &v.Zoom.StartZoom)
	num("zoom_end", &v.Zoom.EndZoom)
	num("zoom_duration", &v.Zoom.Duration)
	easing := string(v.Zoom.Easing)
	str("zoom_easing", &easing)
	v.Zoom.Easing = media.Easing(easing)

	str("redis_url", &v.RedisURL)
	dur("progress_ttl", &v.ProgressTTL)

	str("s3_bucket", &v.Bucket)
	str("s3_region", &v.Region)
	str("s3_prefix", &v.Prefix)
	str("s3_endpoint", &v.Endpoint)
	boolean("s3_path_style", &v.PathStyle)

	if s := os.Getenv(envName("kafka_brokers")); s != "" {
		v.Brokers = splitList(s)
	}
	str("kafka_topic", &v.Topic)
	str("kafka_group", &v.Group)

	return errors.Join(errs...)
}

func (c *EnvConfig) validate() error {
	v := c.v
	if v.Port < 1 || v.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be between 1 and 65535", v.Port)
	}
	if v.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max_upload_mb %d: must be positive", v.MaxUploadMB)
	}
	if v.StageTimeout < 0 || v.ProgressTTL < 0 {
		return errors.New("stage_timeout and progress_ttl must not be negative")
	}
	switch v.Kind {
	case "whisper-cpp":
	case "http":
		if v.URL == "" {
			return errors.New("transcriber \"http\" requires transcribe_url")
		}
	default:
		return fmt.Errorf("unknown transcriber %q", v.Kind)
	}
	if err := v.Zoom.Validate(); err != nil {
		return fmt.Errorf("zoom: %w", err)
	}
	if v.Tuning.FillerMinSec > v.Tuning.FillerMaxSec {
		return errors.New("filler_min_sec must not exceed filler_max_sec")
	}
	return nil
}

func envName(key string) string {
	return EnvPrefix + strings.ToUpper(key)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// File returns the config file that was loaded, or "".
func (c *EnvConfig) File() string {
	return c.file
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.v.Port
}

// Addr returns the listen address.
func (c *EnvConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.v.Bind, c.v.Port)
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.v.LogLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.v.DataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.v.DataDir, DBFilename)
}

func (c *EnvConfig) AssetsDir() string {
	return c.v.AssetsDir
}

// OutputsDir holds finished artifacts served by /download.
func (c *EnvConfig) OutputsDir() string {
	return filepath.Join(c.v.DataDir, "outputs")
}

// UploadsDir holds multipart uploads until their run ends.
func (c *EnvConfig) UploadsDir() string {
	return filepath.Join(c.v.DataDir, "uploads")
}

func (c *EnvConfig) MaxUploadBytes() int64 {
	return c.v.MaxUploadMB << 20
}

func (c *EnvConfig) FFmpegPath() string {
	return c.v.FFmpeg
}

func (c *EnvConfig) FFprobePath() string {
	return c.v.FFprobe
}

func (c *EnvConfig) StageTimeout() time.Duration {
	return time.Duration(c.v.StageTimeout)
}

func (c *EnvConfig) Transcription() Transcription {
	return c.v.Transcription
}

func (c *EnvConfig) Tuning() Tuning {
	return c.v.Tuning
}

// RedisURL is empty when progress is kept in memory.
func (c *EnvConfig) RedisURL() string {
	return c.v.RedisURL
}

func (c *EnvConfig) ProgressTTL() time.Duration {
	return time.Duration(c.v.ProgressTTL)
}

func (c *EnvConfig) S3() S3 {
	return c.v.S3
}

func (c *EnvConfig) Kafka() Kafka {
	k := c.v.Kafka
	k.Brokers = append([]string(nil), k.Brokers...)
	return k
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
