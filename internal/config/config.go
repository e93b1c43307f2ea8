// Package config loads run settings from defaults, TWCAL_* environment
// variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"taiwan-calendar/internal/logger"
	"taiwan-calendar/internal/source"
)

// EnvPrefix prefixes every environment variable, e.g. TWCAL_OUT_DIR.
const EnvPrefix = "TWCAL"

// Keys.
const (
	KeyFromYear            = "from"
	KeyToYear              = "to"
	KeyForce               = "force"
	KeyOutDir              = "out-dir"
	KeyRawDir              = "raw-dir"
	KeyCacheDir            = "cache-dir"
	KeyCacheTTL            = "cache-ttl"
	KeyRefreshListing      = "refresh-listing"
	KeyGCSBucket           = "gcs-bucket"
	KeyFirestoreProject    = "firestore-project"
	KeyFirestoreCollection = "firestore-collection"
	KeyDatasetURL          = "dataset-url"
	KeyIndexURL            = "index-url"
	KeyUseBrowser          = "browser"
	KeyChromePath          = "chrome-path"
	KeyConcurrency         = "concurrency"
	KeyRunTimeout          = "run-timeout"
	KeyFetchTimeout        = "fetch-timeout"
	KeyFetchAttempts       = "fetch-attempts"
	KeyLogLevel            = "log-level"
	KeyLogJSON             = "log-json"
	KeyPort                = "port"
)

// Config holds every setting shared by the commands.
type Config struct {
	FromYear int
	ToYear   int
	Force    bool

	OutDir   string
	RawDir   string // empty disables raw persistence
	CacheDir string
	CacheTTL time.Duration
	// RefreshListing drops cached listings before the run.
	RefreshListing bool

	GCSBucket           string // empty selects the local store
	FirestoreProject    string // empty disables the mirror
	FirestoreCollection string

	DatasetURL string
	IndexURL   string
	UseBrowser bool
	ChromePath string

	Concurrency   int
	RunTimeout    time.Duration
	FetchTimeout  time.Duration
	FetchAttempts int

	LogLevel string
	LogJSON  bool

	Port string
}

// New returns a viper instance with defaults for now and environment
// lookup configured.
func New(now time.Time) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv(KeyPort, EnvPrefix+"_PORT", "PORT")

	v.SetDefault(KeyFromYear, now.Year())
	v.SetDefault(KeyToYear, now.Year()+1)
	v.SetDefault(KeyForce, false)
	v.SetDefault(KeyOutDir, "docs")
	v.SetDefault(KeyRawDir, "origin")
	v.SetDefault(KeyCacheDir, "cache")
	v.SetDefault(KeyCacheTTL, 6*time.Hour)
	v.SetDefault(KeyRefreshListing, false)
	v.SetDefault(KeyFirestoreCollection, "calendar")
	v.SetDefault(KeyDatasetURL, source.DefaultDatasetURL)
	v.SetDefault(KeyIndexURL, source.DefaultIndexURL)
	v.SetDefault(KeyConcurrency, 2)
	v.SetDefault(KeyRunTimeout, 10*time.Minute)
	v.SetDefault(KeyFetchTimeout, 60*time.Second)
	v.SetDefault(KeyFetchAttempts, 3)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogJSON, false)
	v.SetDefault(KeyPort, "8080")
	return v
}

// BindFlags binds flags to keys. flagToKey maps a flag name to its key;
// flags not listed bind to the key of the same name.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet, flagToKey map[string]string) error {
	var errs []error
	fs.VisitAll(func(f *pflag.Flag) {
		key, ok := flagToKey[f.Name]
		if !ok {
			key = f.Name
		}
		if err := v.BindPFlag(key, f); err != nil {
			errs = append(errs, fmt.Errorf("binding flag %s: %w", f.Name, err))
		}
	})
	return errors.Join(errs...)
}

// Load reads a Config from v and validates it.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		FromYear:            v.GetInt(KeyFromYear),
		ToYear:              v.GetInt(KeyToYear),
		Force:               v.GetBool(KeyForce),
		OutDir:              v.GetString(KeyOutDir),
		RawDir:              v.GetString(KeyRawDir),
		CacheDir:            v.GetString(KeyCacheDir),
		CacheTTL:            v.GetDuration(KeyCacheTTL),
		RefreshListing:      v.GetBool(KeyRefreshListing),
		GCSBucket:           v.GetString(KeyGCSBucket),
		FirestoreProject:    v.GetString(KeyFirestoreProject),
		FirestoreCollection: v.GetString(KeyFirestoreCollection),
		DatasetURL:          v.GetString(KeyDatasetURL),
		IndexURL:            v.GetString(KeyIndexURL),
		UseBrowser:          v.GetBool(KeyUseBrowser),
		ChromePath:          v.GetString(KeyChromePath),
		Concurrency:         v.GetInt(KeyConcurrency),
		RunTimeout:          v.GetDuration(KeyRunTimeout),
		FetchTimeout:        v.GetDuration(KeyFetchTimeout),
		FetchAttempts:       v.GetInt(KeyFetchAttempts),
		LogLevel:            v.GetString(KeyLogLevel),
		LogJSON:             v.GetBool(KeyLogJSON),
		Port:                v.GetString(KeyPort),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings no run could succeed with.
func (c *Config) Validate() error {
	var errs []error
	if c.FromYear > c.ToYear {
		errs = append(errs, fmt.Errorf("from year %d is after to year %d", c.FromYear, c.ToYear))
	}
	if c.FromYear < source.MinYear {
		errs = append(errs, fmt.Errorf("from year %d is before %d, the first published calendar", c.FromYear, source.MinYear))
	}
	if c.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("concurrency must be positive, got %d", c.Concurrency))
	}
	if c.FetchAttempts < 1 {
		errs = append(errs, fmt.Errorf("fetch attempts must be positive, got %d", c.FetchAttempts))
	}
	if c.OutDir == "" && c.GCSBucket == "" {
		errs = append(errs, errors.New("an output directory or GCS bucket is required"))
	}
	if c.FirestoreProject != "" && c.FirestoreCollection == "" {
		errs = append(errs, errors.New("firestore collection is required when a project is set"))
	}
	return errors.Join(errs...)
}

// Logger builds the logger described by c.
func (c *Config) Logger() logger.Logger {
	lc := logger.DefaultConfig()
	lc.Level = c.LogLevel
	lc.JSON = c.LogJSON
	return logger.New(lc)
}

// FlagKeys maps short flag names to their keys.
var FlagKeys = map[string]string{
	"out": KeyOutDir,
	"raw": KeyRawDir,
}

// RegisterFlags defines the flags shared by every command, defaulting to the
// values v currently resolves.
func RegisterFlags(v *viper.Viper, fs *pflag.FlagSet) {
	fs.String("out", v.GetString(KeyOutDir), "Directory (or bucket prefix) of published artifacts")
	fs.String(KeyCacheDir, v.GetString(KeyCacheDir), "Directory of the resource listing cache (empty disables it)")
	fs.Duration(KeyCacheTTL, v.GetDuration(KeyCacheTTL), "How long a cached resource listing stays fresh")
	fs.Bool(KeyRefreshListing, v.GetBool(KeyRefreshListing), "Ignore cached resource listings and list the portal again")
	fs.String(KeyGCSBucket, v.GetString(KeyGCSBucket), "Cloud Storage bucket (empty uses the local filesystem)")
	fs.String(KeyDatasetURL, v.GetString(KeyDatasetURL), "Dataset page listing the yearly resources")
	fs.String(KeyIndexURL, v.GetString(KeyIndexURL), "Dataset metadata API")
	fs.Bool(KeyUseBrowser, v.GetBool(KeyUseBrowser), "Fall back to a headless browser for the dataset page")
	fs.String(KeyChromePath, v.GetString(KeyChromePath), "Chrome executable for --browser")
	fs.Duration(KeyFetchTimeout, v.GetDuration(KeyFetchTimeout), "Timeout of a single HTTP request")
	fs.String(KeyLogLevel, v.GetString(KeyLogLevel), "Log level (debug, info, warn, error)")
	fs.Bool(KeyLogJSON, v.GetBool(KeyLogJSON), "Log as JSON")
}
