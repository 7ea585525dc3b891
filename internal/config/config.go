package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type PollMode struct {
	SettleDelay  time.Duration `yaml:"settleDelay"`
	Interval     time.Duration `yaml:"interval"`
	FileAttempts int           `yaml:"fileAttempts"`
	URLAttempts  int           `yaml:"urlAttempts"`
}

type Config struct {
	Server struct {
		Port             int           `yaml:"port"`
		ReadTimeout      time.Duration `yaml:"readTimeout"`
		WriteTimeout     time.Duration `yaml:"writeTimeout"`
		BlockPrivateURLs bool          `yaml:"blockPrivateURLs"`
		CORSOrigins      []string      `yaml:"corsOrigins"`
	} `yaml:"server"`

	Database struct {
		Driver   string `yaml:"driver"` // memory | file | mysql | postgres
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslMode"`
		File     string `yaml:"file"`
		Migrate  bool   `yaml:"migrate"`
	} `yaml:"database"`

	Minio struct {
		Enabled    bool          `yaml:"enabled"`
		Endpoint   string        `yaml:"endpoint"`
		AccessKey  string        `yaml:"accessKey"`
		SecretKey  string        `yaml:"secretKey"`
		BucketName string        `yaml:"bucketName"`
		Region     string        `yaml:"region"`
		UseSSL     bool          `yaml:"useSSL"`
		PresignTTL time.Duration `yaml:"presignTTL"`
	} `yaml:"minio"`

	Provider struct {
		BaseURL        string        `yaml:"baseURL"`
		APIKey         string        `yaml:"apiKey"`
		TestMode       bool          `yaml:"testMode"`
		RequestTimeout time.Duration `yaml:"requestTimeout"`
		MaxFileSize    int64         `yaml:"maxFileSize"`
	} `yaml:"provider"`

	Polling struct {
		Express       PollMode `yaml:"express"`
		Comprehensive PollMode `yaml:"comprehensive"`
	} `yaml:"polling"`

	Store struct {
		MaxScans int `yaml:"maxScans"`
	} `yaml:"store"`

	OpenAI struct {
		APIKey  string `yaml:"apiKey"`
		Model   string `yaml:"model"`
		BaseURL string `yaml:"baseURL"`
	} `yaml:"openai"`

	Auth struct {
		APIKeys map[string]string `yaml:"apiKeys"` // client -> key
	} `yaml:"auth"`

	RateLimit struct {
		Capacity   int `yaml:"capacity"`
		RefillRate int `yaml:"refillRate"`
	} `yaml:"rateLimit"`
}

// Default returns a config with every knob set.
func Default() *Config {
	var c Config
	c.Server.Port = 8080
	c.Server.ReadTimeout = 30 * time.Second
	// comprehensive scans may poll for a minute
	c.Server.WriteTimeout = 3 * time.Minute
	c.Server.CORSOrigins = []string{"*"}

	c.Database.Driver = "memory"
	c.Database.SSLMode = "disable"
	c.Database.Migrate = true

	c.Minio.BucketName = "threatlens-samples"
	c.Minio.Region = "us-east-1"

	c.Provider.BaseURL = "https://www.virustotal.com/api/v3"
	c.Provider.RequestTimeout = 30 * time.Second
	c.Provider.MaxFileSize = 32 << 20

	c.Polling.Express = PollMode{SettleDelay: 2 * time.Second, Interval: time.Second, FileAttempts: 10, URLAttempts: 5}
	c.Polling.Comprehensive = PollMode{Interval: 2 * time.Second, FileAttempts: 30, URLAttempts: 15}

	c.Store.MaxScans = 50
	c.OpenAI.Model = "gpt-4o-mini"
	c.RateLimit.Capacity = 30
	c.RateLimit.RefillRate = 1
	return &c
}

// Load baca file config.yaml di atas default, lalu env override.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read is Load without validation, for callers that adjust the config first.
func Read(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func (c *Config) applyEnv() {
	c.Provider.APIKey = getenv("VT_API_KEY", c.Provider.APIKey)
	c.Provider.BaseURL = getenv("VT_BASE_URL", c.Provider.BaseURL)
	c.Provider.TestMode = getenvBool("THREATLENS_TEST_MODE", c.Provider.TestMode)
	c.Database.Driver = getenv("DATABASE_DRIVER", c.Database.Driver)
	c.Database.Password = getenv("DATABASE_PASSWORD", c.Database.Password)
	c.Server.Port = getenvInt("LISTEN_PORT", c.Server.Port)
	c.OpenAI.APIKey = getenv("OPENAI_API_KEY", c.OpenAI.APIKey)
}

// Validate checks the values Load cannot default.
func (c *Config) Validate() error {
	var errs []error
	switch c.Database.Driver {
	case "memory", "file", "mysql", "postgres":
	default:
		errs = append(errs, fmt.Errorf("database.driver: unknown driver %q", c.Database.Driver))
	}
	if !c.Provider.TestMode && strings.TrimSpace(c.Provider.APIKey) == "" {
		errs = append(errs, errors.New("provider.apiKey: required unless provider.testMode is set (VT_API_KEY)"))
	}
	for name, m := range map[string]PollMode{"express": c.Polling.Express, "comprehensive": c.Polling.Comprehensive} {
		if m.FileAttempts <= 0 || m.URLAttempts <= 0 {
			errs = append(errs, fmt.Errorf("polling.%s: attempts must be positive", name))
		}
		if m.Interval < 0 || m.SettleDelay < 0 {
			errs = append(errs, fmt.Errorf("polling.%s: durations cannot be negative", name))
		}
	}
	if c.Store.MaxScans <= 0 {
		errs = append(errs, errors.New("store.maxScans: must be positive"))
	}
	if c.Provider.MaxFileSize <= 0 {
		errs = append(errs, errors.New("provider.maxFileSize: must be positive"))
	}
	if c.Minio.Enabled && c.Minio.Endpoint == "" {
		errs = append(errs, errors.New("minio.endpoint: required when minio is enabled"))
	}
	return errors.Join(errs...)
}

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// PostgresDSN builds a lib/pq keyword DSN.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}
