package config

import (
	"net"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Host            string        // listen address, ex: "0.0.0.0"
	Port            string        // listen port, ex: "3000"
	ShutdownTimeout time.Duration // ex: 5s

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	GeoIPDir   string // directory holding GeoLite2-City.mmdb / GeoLite2-ASN.mmdb
	ProbesFile string // path to the probe credentials JSON file

	CredentialsPollInterval time.Duration // credentials file mtime poll granularity

	TaskTimeout       time.Duration // per-task dispatcher timeout
	JavaTimeout       time.Duration // Java TCP exchange timeout
	BedrockTimeout    time.Duration // Bedrock UDP round-trip timeout
	DNSTimeout        time.Duration // per-query DNS timeout
	BedrockMaxRetries int           // resend bedrock pings after timeout
}

// fileConfig mirrors the optional YAML file named by MINESCOPE_CONFIG_FILE.
// Environment variables override file values.
type fileConfig struct {
	Host            string `yaml:"host"`
	Port            string `yaml:"port"`
	LogLevel        string `yaml:"log_level"`
	GeoIPDir        string `yaml:"geoip_dir"`
	ProbesFile      string `yaml:"probes_file"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
	TaskTimeout     string `yaml:"task_timeout"`
	JavaTimeout     string `yaml:"java_timeout"`
	BedrockTimeout  string `yaml:"bedrock_timeout"`
	DNSTimeout      string `yaml:"dns_timeout"`
	BedrockRetries  *int   `yaml:"bedrock_max_retries"`
}

func Load() *Config {
	fc := loadFile(os.Getenv("MINESCOPE_CONFIG_FILE"))

	return &Config{
		Host:            getenv("HOST", or(fc.Host, "0.0.0.0")),
		Port:            getenv("PORT", or(fc.Port, "3000")),
		ShutdownTimeout: mustDuration("SHUTDOWN_TIMEOUT", fileDuration(fc.ShutdownTimeout, 5*time.Second)),

		LogLevel:  getenv("LOG_LEVEL", or(fc.LogLevel, "info")),
		PrettyLog: mustBool("PRETTY_LOG", false),

		GeoIPDir:   getenv("GEOIP_DIR", or(fc.GeoIPDir, "./data/geoip")),
		ProbesFile: getenv("PROBES_FILE", or(fc.ProbesFile, "./probes.json")),

		CredentialsPollInterval: mustDuration("CREDENTIALS_POLL_INTERVAL", time.Second),

		TaskTimeout:       mustDuration("TASK_TIMEOUT", fileDuration(fc.TaskTimeout, 6*time.Second)),
		JavaTimeout:       mustDuration("JAVA_TIMEOUT", fileDuration(fc.JavaTimeout, 5*time.Second)),
		BedrockTimeout:    mustDuration("BEDROCK_TIMEOUT", fileDuration(fc.BedrockTimeout, 3*time.Second)),
		DNSTimeout:        mustDuration("DNS_TIMEOUT", fileDuration(fc.DNSTimeout, 3*time.Second)),
		BedrockMaxRetries: getenvInt("BEDROCK_MAX_RETRIES", orInt(fc.BedrockRetries, 0)),
	}
}

// ListenAddr joins host and port into the address the server binds.
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

func loadFile(path string) fileConfig {
	var fc fileConfig
	if path == "" {
		return fc
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fc
	}
	_ = yaml.Unmarshal(data, &fc)
	return fc
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func or(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func orInt(v *int, def int) int {
	if v != nil {
		return *v
	}
	return def
}

func fileDuration(v string, def time.Duration) time.Duration {
	if v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
