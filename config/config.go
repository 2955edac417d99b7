package config

import (
	"embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"remarknews/types"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

//go:embed default_config.yaml
var defaultConfigFS embed.FS

// DefaultConfigPath is used when no --config flag is given.
const DefaultConfigPath = "remarknews.yaml"

type Source struct {
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	Disabled bool   `yaml:"disabled,omitempty"`
}

type ExtractionConfig struct {
	MinImageWidth       int      `yaml:"min_image_width"`
	MinImageHeight      int      `yaml:"min_image_height"`
	ContentClassPattern string   `yaml:"content_class_pattern"`
	ImageAttributes     []string `yaml:"image_attributes"`
	MaxNodes            int      `yaml:"max_nodes"`
}

type HTTPConfig struct {
	UserAgent    string        `yaml:"user_agent"`
	FeedTimeout  time.Duration `yaml:"feed_timeout"`
	PageTimeout  time.Duration `yaml:"page_timeout"`
	ImageTimeout time.Duration `yaml:"image_timeout"`
	PerHostRPS   float64       `yaml:"per_host_rps"`
	PerHostBurst int           `yaml:"per_host_burst"`
}

type ConcurrencyConfig struct {
	Feeds    int `yaml:"feeds"`
	Articles int `yaml:"articles"`
	Images   int `yaml:"images"`
}

type SummaryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Provider string `yaml:"provider"` // "ollama", "openai" or "anthropic"
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url,omitempty"`
	APIKey   string `yaml:"api_key,omitempty"`
}

type WeatherConfig struct {
	APIKey   string `yaml:"api_key,omitempty"`
	Lat      string `yaml:"lat,omitempty"`
	Lon      string `yaml:"lon,omitempty"`
	Location string `yaml:"location,omitempty"`
}

// Enabled reports whether all values needed for a forecast lookup are set.
func (w WeatherConfig) Enabled() bool {
	return w.APIKey != "" && w.Lat != "" && w.Lon != ""
}

type RenderConfig struct {
	IncludeImages bool   `yaml:"include_images"`
	Title         string `yaml:"title"`
}

type EmailConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	Sender   string `yaml:"sender,omitempty"`
	Receiver string `yaml:"receiver,omitempty"`
}

type S3Config struct {
	Bucket       string `yaml:"bucket,omitempty"`
	Region       string `yaml:"region,omitempty"`
	Profile      string `yaml:"profile,omitempty"`
	Prefix       string `yaml:"prefix,omitempty"`
	UsePathStyle bool   `yaml:"use_path_style,omitempty"`
}

type DriveConfig struct {
	ServiceAccountFile string `yaml:"service_account_file,omitempty"`
	FolderID           string `yaml:"folder_id,omitempty"`
}

type RemarkableConfig struct {
	Binary string `yaml:"binary"`
	Folder string `yaml:"folder"`
}

type DeliveryConfig struct {
	Target     string           `yaml:"target"`
	Email      EmailConfig      `yaml:"email"`
	S3         S3Config         `yaml:"s3"`
	Drive      DriveConfig      `yaml:"drive"`
	Remarkable RemarkableConfig `yaml:"remarkable"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file,omitempty"`
}

type ServiceConfig struct {
	RedisAddr     string   `yaml:"redis_addr,omitempty"`
	RedisPassword string   `yaml:"redis_password,omitempty"`
	KafkaBrokers  []string `yaml:"kafka_brokers,omitempty"`
	KafkaTopic    string   `yaml:"kafka_topic,omitempty"`
	KafkaGroupID  string   `yaml:"kafka_group_id,omitempty"`
}

// Config is the complete runtime configuration handed to the pipeline.
type Config struct {
	OutputDir      string            `yaml:"output_dir"`
	FreshnessHours int               `yaml:"freshness_hours"`
	Format         string            `yaml:"format"`
	RunTimeout     time.Duration     `yaml:"run_timeout"`
	Sources        []Source          `yaml:"sources"`
	Extraction     ExtractionConfig  `yaml:"extraction"`
	HTTP           HTTPConfig        `yaml:"http"`
	Concurrency    ConcurrencyConfig `yaml:"concurrency"`
	Summary        SummaryConfig     `yaml:"summary"`
	Weather        WeatherConfig     `yaml:"weather"`
	Render         RenderConfig      `yaml:"render"`
	Delivery       DeliveryConfig    `yaml:"delivery"`
	Logging        LoggingConfig     `yaml:"logging"`
	Service        ServiceConfig     `yaml:"service"`
}

// EnabledSources returns the configured feeds that are not disabled, in order.
func (c *Config) EnabledSources() []types.FeedSource {
	var out []types.FeedSource
	for _, s := range c.Sources {
		if !s.Disabled {
			out = append(out, types.FeedSource{Name: s.Name, URL: s.URL})
		}
	}
	return out
}

// ContentClassRegexp compiles the main-content class pattern.
func (c *Config) ContentClassRegexp() *regexp.Regexp {
	re, err := regexp.Compile(c.Extraction.ContentClassPattern)
	if err != nil {
		return regexp.MustCompile(DefaultContentClassPattern)
	}
	return re
}

// ApplyFormatOverride adjusts the render format for delivery targets that
// only accept one format. It returns true if the format changed.
func (c *Config) ApplyFormatOverride() bool {
	if c.Delivery.Target == DeliveryEmail && c.Format != FormatEPUB {
		c.Format = FormatEPUB
		return true
	}
	return false
}

// Default returns the embedded default configuration.
func Default() (*Config, error) {
	data, err := defaultConfigFS.ReadFile("default_config.yaml")
	if err != nil {
		return nil, fmt.Errorf("reading embedded config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded config: %w", err)
	}
	cfg.fillDefaults()
	return &cfg, nil
}

// Load reads the configuration at path on top of the embedded defaults,
// then applies environment overrides (including a .env file, if present).
func Load(path string) (*Config, error) {
	// Load environment variables from .env if present (non-fatal if missing)
	_ = godotenv.Load()

	cfg, err := Default()
	if err != nil {
		return nil, err
	}

	explicit := path != ""
	if path == "" {
		path = DefaultConfigPath
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
		// embedded defaults only
	default:
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg.fillDefaults()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) fillDefaults() {
	if c.OutputDir == "" {
		c.OutputDir = DefaultOutputDir
	}
	if c.FreshnessHours <= 0 {
		c.FreshnessHours = DefaultFreshnessHours
	}
	if c.Format == "" {
		c.Format = DefaultFormat
	}
	if c.RunTimeout <= 0 {
		c.RunTimeout = DefaultRunTimeout
	}

	e := &c.Extraction
	if e.MinImageWidth <= 0 {
		e.MinImageWidth = DefaultMinImageWidth
	}
	if e.MinImageHeight <= 0 {
		e.MinImageHeight = DefaultMinImageHeight
	}
	if e.ContentClassPattern == "" {
		e.ContentClassPattern = DefaultContentClassPattern
	}
	if len(e.ImageAttributes) == 0 {
		e.ImageAttributes = append([]string(nil), DefaultImageAttributes...)
	}
	if e.MaxNodes <= 0 {
		e.MaxNodes = DefaultMaxNodes
	}

	h := &c.HTTP
	if h.UserAgent == "" {
		h.UserAgent = DefaultUserAgent
	}
	if h.FeedTimeout <= 0 {
		h.FeedTimeout = DefaultFeedTimeout
	}
	if h.PageTimeout <= 0 {
		h.PageTimeout = DefaultPageTimeout
	}
	if h.ImageTimeout <= 0 {
		h.ImageTimeout = DefaultImageTimeout
	}
	if h.PerHostRPS <= 0 {
		h.PerHostRPS = DefaultPerHostRPS
	}
	if h.PerHostBurst <= 0 {
		h.PerHostBurst = DefaultPerHostBurst
	}

	cc := &c.Concurrency
	if cc.Feeds <= 0 {
		cc.Feeds = DefaultFeedWorkers
	}
	if cc.Articles <= 0 {
		cc.Articles = DefaultArticleWorkers
	}
	if cc.Images <= 0 {
		cc.Images = DefaultImageWorkers
	}

	if c.Summary.Provider == "" {
		c.Summary.Provider = "ollama"
	}
	if c.Summary.Provider == "ollama" {
		if c.Summary.Model == "" {
			c.Summary.Model = DefaultOllamaModel
		}
		if c.Summary.BaseURL == "" {
			c.Summary.BaseURL = DefaultOllamaURL
		}
	}

	if c.Delivery.Target == "" {
		c.Delivery.Target = DefaultDelivery
	}
	if c.Delivery.Email.Host == "" {
		c.Delivery.Email.Host = "smtp.gmail.com"
	}
	if c.Delivery.Email.Port == 0 {
		c.Delivery.Email.Port = 587
	}
	if c.Delivery.Remarkable.Binary == "" {
		c.Delivery.Remarkable.Binary = "rmapi"
	}
	if c.Delivery.Remarkable.Folder == "" {
		c.Delivery.Remarkable.Folder = DefaultRemarkableDir
	}
	if c.Render.Title == "" {
		c.Render.Title = "ReMarkNews"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Service.KafkaTopic == "" {
		c.Service.KafkaTopic = "digest-run-requests"
	}
	if c.Service.KafkaGroupID == "" {
		c.Service.KafkaGroupID = "remarknews-runner"
	}
}

// applyEnv overrides secrets and infrastructure settings from the environment.
func (c *Config) applyEnv() {
	setString(&c.Weather.APIKey, "OPENWEATHER_API_KEY")
	setString(&c.Weather.Lat, "WEATHER_LAT")
	setString(&c.Weather.Lon, "WEATHER_LON")

	setString(&c.Delivery.Email.Username, "SMTP_USERNAME")
	setString(&c.Delivery.Email.Password, "SMTP_PASSWORD")
	setString(&c.Delivery.Email.Sender, "EMAIL_SENDER")
	setString(&c.Delivery.Email.Receiver, "EMAIL_RECEIVER")

	setString(&c.Delivery.S3.Bucket, "S3_BUCKET")
	setString(&c.Delivery.S3.Region, "S3_REGION")
	setString(&c.Delivery.S3.Profile, "S3_PROFILE")
	setString(&c.Delivery.S3.Prefix, "S3_PREFIX")
	if v := strings.TrimSpace(os.Getenv("S3_USE_PATH_STYLE")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Delivery.S3.UsePathStyle = b
		}
	}

	setString(&c.Delivery.Drive.ServiceAccountFile, "GOOGLE_SERVICE_ACCOUNT_FILE")
	setString(&c.Delivery.Drive.FolderID, "DRIVE_FOLDER_ID")

	switch c.Summary.Provider {
	case "openai":
		setString(&c.Summary.APIKey, "OPENAI_API_KEY")
	case "anthropic":
		setString(&c.Summary.APIKey, "ANTHROPIC_API_KEY")
	case "ollama":
		setString(&c.Summary.BaseURL, "OLLAMA_URL")
	}

	setString(&c.Service.RedisAddr, "REDIS_ADDR")
	setString(&c.Service.RedisPassword, "REDIS_PASS")
	if v := strings.TrimSpace(os.Getenv("KAFKA_BOOTSTRAP_SERVERS")); v != "" {
		c.Service.KafkaBrokers = strings.Split(v, ",")
	}
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

// Validate checks the configuration for values the pipeline cannot run with.
func (c *Config) Validate() error {
	for i, s := range c.Sources {
		if s.Name == "" {
			return fmt.Errorf("source %d: name is required", i)
		}
		if s.URL == "" {
			return fmt.Errorf("source %q: url is required", s.Name)
		}
		u, err := url.Parse(s.URL)
		if err != nil {
			return fmt.Errorf("source %q: invalid url: %w", s.Name, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("source %q: url scheme must be http or https, got %q", s.Name, u.Scheme)
		}
	}

	switch c.Format {
	case FormatPDF, FormatEPUB:
	default:
		return fmt.Errorf("unknown format %q (valid: pdf, epub)", c.Format)
	}

	switch c.Delivery.Target {
	case DeliveryNone, DeliveryRemarkable, DeliveryEmail, DeliveryS3, DeliveryDrive:
	default:
		return fmt.Errorf("unknown delivery target %q (valid: none, rmapi, email, s3, drive)", c.Delivery.Target)
	}

	switch c.Summary.Provider {
	case "ollama", "openai", "anthropic":
	default:
		return fmt.Errorf("unknown summary provider %q (valid: ollama, openai, anthropic)", c.Summary.Provider)
	}

	if _, err := regexp.Compile(c.Extraction.ContentClassPattern); err != nil {
		return fmt.Errorf("invalid content_class_pattern: %w", err)
	}
	return nil
}
