package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// MaxListingsCap is the hard upper bound on listings collected per run.
const MaxListingsCap = 500

type Config struct {
	BaseURL     string `mapstructure:"base_url"`
	PortalURL   string `mapstructure:"portal_url"`
	Pages       int    `mapstructure:"pages"`
	PageStep    int    `mapstructure:"page_step"`
	MaxListings int    `mapstructure:"max_listings"`

	FetchMode      string        `mapstructure:"fetch_mode"`
	MaxWorkers     int           `mapstructure:"max_workers"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MinDelay       time.Duration `mapstructure:"min_delay"`
	MaxDelay       time.Duration `mapstructure:"max_delay"`
	RatePerSecond  float64       `mapstructure:"rate_per_second"`
	RateBurst      int           `mapstructure:"rate_burst"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	RetryBackoff   time.Duration `mapstructure:"retry_backoff"`
	Headless       bool          `mapstructure:"headless"`
	MaxTabs        int64         `mapstructure:"max_tabs"`

	Selectors Selectors `mapstructure:"selectors"`

	StoreDriver string `mapstructure:"store_driver"`
	SQLitePath  string `mapstructure:"sqlite_path"`
	DBHost      string `mapstructure:"db_host"`
	DBPort      int    `mapstructure:"db_port"`
	DBUser      string `mapstructure:"db_user"`
	DBPassword  string `mapstructure:"db_password"`
	DBName      string `mapstructure:"db_name"`
	DBSSLMode   string `mapstructure:"db_sslmode"`

	ExportDir   string `mapstructure:"export_dir"`
	ChartPath   string `mapstructure:"chart_path"`
	SummaryPath string `mapstructure:"summary_path"`
	ChartBins   int    `mapstructure:"chart_bins"`
	LogFile     string `mapstructure:"log_file"`
}

// Selectors locate listing fields inside a search result page.
type Selectors struct {
	Card        string `mapstructure:"card"`
	Price       string `mapstructure:"price"`
	Address     string `mapstructure:"address"`
	Bedrooms    string `mapstructure:"bedrooms"`
	Size        string `mapstructure:"size"`
	Link        string `mapstructure:"link"`
	Description string `mapstructure:"description"`
}

func DefaultConfig() *Config {
	return &Config{
		BaseURL:        "https://www.rightmove.co.uk/property-for-sale/find.html?locationIdentifier=REGION%5E87490&index={index}",
		PortalURL:      "https://www.rightmove.co.uk",
		Pages:          21,
		PageStep:       24,
		MaxListings:    MaxListingsCap,
		FetchMode:      "static",
		MaxWorkers:     5,
		RequestTimeout: 15 * time.Second,
		MinDelay:       1 * time.Second,
		MaxDelay:       3 * time.Second,
		RatePerSecond:  2,
		RateBurst:      5,
		MaxAttempts:    1,
		RetryBackoff:   2 * time.Second,
		Headless:       true,
		MaxTabs:        3,
		Selectors:      DefaultSelectors(),
		StoreDriver:    "sqlite",
		SQLitePath:     "data/property_listings.db",
		DBHost:         "localhost",
		DBPort:         5432,
		DBUser:         "postgres",
		DBPassword:     "postgres",
		DBName:         "property_monitor",
		DBSSLMode:      "disable",
		ExportDir:      "output",
		ChartPath:      "output/price_distribution.png",
		SummaryPath:    "output/summary.yaml",
		ChartBins:      20,
		LogFile:        "output/scrape.log",
	}
}

func DefaultSelectors() Selectors {
	return Selectors{
		Card:        `div[class^="PropertyCard_propertyCardContainer__"]`,
		Price:       `div[class^="PropertyPrice_price__"]`,
		Address:     `address[class^="PropertyAddress_address__"]`,
		Bedrooms:    `span[class^="PropertyInformation_bedroomsCount__"]`,
		Size:        `span[class^="PropertyInformation_size__"]`,
		Link:        `a.propertyCard-link`,
		Description: `p[class^="PropertyCardSummary_summary__"]`,
	}
}

// Load layers defaults, an optional YAML file, an optional .env file and
// PROPMON_* environment variables, in that order of precedence (lowest first).
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("property-monitor")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("PROPMON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("base_url", d.BaseURL)
	v.SetDefault("portal_url", d.PortalURL)
	v.SetDefault("pages", d.Pages)
	v.SetDefault("page_step", d.PageStep)
	v.SetDefault("max_listings", d.MaxListings)
	v.SetDefault("fetch_mode", d.FetchMode)
	v.SetDefault("max_workers", d.MaxWorkers)
	v.SetDefault("request_timeout", d.RequestTimeout)
	v.SetDefault("min_delay", d.MinDelay)
	v.SetDefault("max_delay", d.MaxDelay)
	v.SetDefault("rate_per_second", d.RatePerSecond)
	v.SetDefault("rate_burst", d.RateBurst)
	v.SetDefault("max_attempts", d.MaxAttempts)
	v.SetDefault("retry_backoff", d.RetryBackoff)
	v.SetDefault("headless", d.Headless)
	v.SetDefault("max_tabs", d.MaxTabs)
	v.SetDefault("selectors.card", d.Selectors.Card)
	v.SetDefault("selectors.price", d.Selectors.Price)
	v.SetDefault("selectors.address", d.Selectors.Address)
	v.SetDefault("selectors.bedrooms", d.Selectors.Bedrooms)
	v.SetDefault("selectors.size", d.Selectors.Size)
	v.SetDefault("selectors.link", d.Selectors.Link)
	v.SetDefault("selectors.description", d.Selectors.Description)
	v.SetDefault("store_driver", d.StoreDriver)
	v.SetDefault("sqlite_path", d.SQLitePath)
	v.SetDefault("db_host", d.DBHost)
	v.SetDefault("db_port", d.DBPort)
	v.SetDefault("db_user", d.DBUser)
	v.SetDefault("db_password", d.DBPassword)
	v.SetDefault("db_name", d.DBName)
	v.SetDefault("db_sslmode", d.DBSSLMode)
	v.SetDefault("export_dir", d.ExportDir)
	v.SetDefault("chart_path", d.ChartPath)
	v.SetDefault("summary_path", d.SummaryPath)
	v.SetDefault("chart_bins", d.ChartBins)
	v.SetDefault("log_file", d.LogFile)
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.MaxWorkers < 1:
		return fmt.Errorf("config: max_workers must be at least 1, got %d", c.MaxWorkers)
	case c.MaxListings < 0 || c.MaxListings > MaxListingsCap:
		return fmt.Errorf("config: max_listings must be between 0 and %d, got %d", MaxListingsCap, c.MaxListings)
	case c.Pages < 0:
		return fmt.Errorf("config: pages must not be negative, got %d", c.Pages)
	case c.PageStep < 1:
		return fmt.Errorf("config: page_step must be at least 1, got %d", c.PageStep)
	case c.MaxAttempts < 1:
		return fmt.Errorf("config: max_attempts must be at least 1, got %d", c.MaxAttempts)
	case c.MaxDelay < c.MinDelay:
		return fmt.Errorf("config: max_delay (%v) is shorter than min_delay (%v)", c.MaxDelay, c.MinDelay)
	case c.ChartBins < 1:
		return fmt.Errorf("config: chart_bins must be at least 1, got %d", c.ChartBins)
	}

	switch c.FetchMode {
	case "static", "browser":
	default:
		return fmt.Errorf("config: unknown fetch_mode %q", c.FetchMode)
	}

	switch c.StoreDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("config: unknown store_driver %q", c.StoreDriver)
	}

	return nil
}

// ListingLimit is the effective cap on pages and listings per run;
// max_listings of 0 means the hard cap.
func (c *Config) ListingLimit() int {
	if c.MaxListings <= 0 || c.MaxListings > MaxListingsCap {
		return MaxListingsCap
	}
	return c.MaxListings
}

// PostgresDSN builds the connection string for the postgres store driver.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser,
		c.DBPassword,
		c.DBHost,
		c.DBPort,
		c.DBName,
		c.DBSSLMode,
	)
}
