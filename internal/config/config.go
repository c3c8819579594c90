// Package config assembles the service configuration from defaults, an optional
// JSON file, environment variables (and a .env file) and command-line flags,
// in increasing order of priority.
package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	env "github.com/caarlos0/env/v6"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds every runtime setting of the service.
type Config struct {
	RunAddr             string        `env:"SERVER_ADDRESS" validate:"hostname_port"`
	LogLevel            string        `env:"LOG_LEVEL" validate:"loglevel"`
	DBFileName          string        `env:"FILE_STORAGE_PATH" validate:"filepath"`
	DatabaseDSN         string        `env:"DATABASE_DSN"`
	DBConnectionTimeout time.Duration `env:"DB_CONNECTION_TIMEOUT" validate:"gt=0"`
	TrustedSubnet       string        `env:"TRUSTED_SUBNET" validate:"omitempty,cidr"`
	CORSAllowedOrigins  []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
	EnableHTTPS         bool          `env:"ENABLE_HTTPS"`
	TLSCertFile         string        `env:"TLS_CERT_FILE" validate:"required_if=EnableHTTPS true"`
	TLSKeyFile          string        `env:"TLS_KEY_FILE" validate:"required_if=EnableHTTPS true"`
	ConfigFile          string        `env:"CONFIG"`
}

// jsonConfig mirrors Config in the JSON file; durations are strings like "10s".
type jsonConfig struct {
	RunAddr             string   `json:"server_address"`
	LogLevel            string   `json:"log_level"`
	DBFileName          string   `json:"file_storage_path"`
	DatabaseDSN         string   `json:"database_dsn"`
	DBConnectionTimeout string   `json:"db_connection_timeout"`
	TrustedSubnet       string   `json:"trusted_subnet"`
	CORSAllowedOrigins  []string `json:"cors_allowed_origins"`
	EnableHTTPS         bool     `json:"enable_https"`
	TLSCertFile         string   `json:"tls_cert_file"`
	TLSKeyFile          string   `json:"tls_key_file"`
}

var defaultConfig = Config{
	RunAddr:             ":5000",
	LogLevel:            "info",
	DBFileName:          "",
	DatabaseDSN:         "",
	DBConnectionTimeout: 10 * time.Second,
	TrustedSubnet:       "",
	CORSAllowedOrigins:  []string{"*"},
}

var allowedLogLevels = map[string]bool{
	"debug":  true,
	"info":   true,
	"warn":   true,
	"error":  true,
	"dpanic": true,
	"panic":  true,
	"fatal":  true,
}

// InitOption customizes New.
type InitOption func(*initOptions)

type initOptions struct {
	disableFlagsParsing bool
	args                []string
}

// WithDisableFlagsParsing skips command-line flags, which tests rely on.
func WithDisableFlagsParsing(disableFlagsParsing bool) InitOption {
	return func(options *initOptions) {
		options.disableFlagsParsing = disableFlagsParsing
	}
}

// WithArgs parses the given arguments instead of os.Args[1:].
func WithArgs(args []string) InitOption {
	return func(options *initOptions) {
		options.args = args
	}
}

// New builds the configuration. Priority: flags > environment > JSON file > defaults.
func New(optionsProto ...InitOption) (*Config, error) {
	options := &initOptions{
		disableFlagsParsing: false,
		args:                os.Args[1:],
	}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	if err := godotenv.Load(); err != nil {
		log.Printf("Unable to load .env file: %v", err)
	}

	values := &Config{}
	applyDefaults(values, defaultConfig)

	var fromFlags *Config
	var setFlags map[string]bool
	if !options.disableFlagsParsing {
		var err error
		fromFlags, setFlags, err = parseFlags(options.args)
		if err != nil {
			return nil, err
		}
	}

	var valuesFromEnv Config
	if err := env.Parse(&valuesFromEnv); err != nil {
		return nil, err
	}

	configFile := valuesFromEnv.ConfigFile
	if setFlags["c"] {
		configFile = fromFlags.ConfigFile
	}
	if configFile != "" {
		if err := values.loadJSON(configFile); err != nil {
			return nil, err
		}
		values.ConfigFile = configFile
	}

	values.applyEnv(&valuesFromEnv)

	if fromFlags != nil {
		values.applyFlags(fromFlags, setFlags)
	}

	if err := values.validate(); err != nil {
		return nil, err
	}

	return values, nil
}

func applyDefaults(values *Config, defaults Config) {
	*values = defaults
	values.CORSAllowedOrigins = append([]string(nil), defaults.CORSAllowedOrigins...)
}

func parseFlags(args []string) (*Config, map[string]bool, error) {
	result := &Config{}
	var corsOrigins string

	flagSet := flag.NewFlagSet("interioai", flag.ContinueOnError)
	flagSet.StringVar(&result.RunAddr, "a", defaultConfig.RunAddr, "address and port to run server")
	flagSet.StringVar(&result.LogLevel, "l", defaultConfig.LogLevel, "logger level")
	flagSet.StringVar(&result.DBFileName, "f", "", "JSON file name with database")
	flagSet.StringVar(&result.DatabaseDSN, "d", "", "A string with the database connection details")
	flagSet.StringVar(&result.TrustedSubnet, "t", "", "trusted subnet (CIDR) allowed to read internal stats")
	flagSet.StringVar(&corsOrigins, "o", "", "comma-separated list of allowed CORS origins")
	flagSet.BoolVar(&result.EnableHTTPS, "s", false, "serve HTTPS")
	flagSet.StringVar(&result.ConfigFile, "c", "", "path to the JSON configuration file")
	if err := flagSet.Parse(args); err != nil {
		return nil, nil, err
	}

	if corsOrigins != "" {
		result.CORSAllowedOrigins = splitList(corsOrigins)
	}

	setFlags := map[string]bool{}
	flagSet.Visit(func(f *flag.Flag) {
		setFlags[f.Name] = true
	})

	return result, setFlags, nil
}

func (c *Config) loadJSON(fileName string) error {
	data, err := os.ReadFile(fileName)
	if err != nil {
		return fmt.Errorf("in internal/config/config.go/loadJSON(): error while `os.ReadFile()` calling: %w", err)
	}

	var fromJSON jsonConfig
	if err := json.Unmarshal(data, &fromJSON); err != nil {
		return fmt.Errorf("in internal/config/config.go/loadJSON(): error while `json.Unmarshal()` calling: %w", err)
	}

	if fromJSON.RunAddr != "" {
		c.RunAddr = fromJSON.RunAddr
	}
	if fromJSON.LogLevel != "" {
		c.LogLevel = fromJSON.LogLevel
	}
	if fromJSON.DBFileName != "" {
		c.DBFileName = fromJSON.DBFileName
	}
	if fromJSON.DatabaseDSN != "" {
		c.DatabaseDSN = fromJSON.DatabaseDSN
	}
	if fromJSON.DBConnectionTimeout != "" {
		timeout, err := time.ParseDuration(fromJSON.DBConnectionTimeout)
		if err != nil {
			return fmt.Errorf("in internal/config/config.go/loadJSON(): bad db_connection_timeout: %w", err)
		}
		c.DBConnectionTimeout = timeout
	}
	if fromJSON.TrustedSubnet != "" {
		c.TrustedSubnet = fromJSON.TrustedSubnet
	}
	if len(fromJSON.CORSAllowedOrigins) > 0 {
		c.CORSAllowedOrigins = fromJSON.CORSAllowedOrigins
	}
	if fromJSON.EnableHTTPS {
		c.EnableHTTPS = true
	}
	if fromJSON.TLSCertFile != "" {
		c.TLSCertFile = fromJSON.TLSCertFile
	}
	if fromJSON.TLSKeyFile != "" {
		c.TLSKeyFile = fromJSON.TLSKeyFile
	}

	return nil
}

func (c *Config) applyEnv(valuesFromEnv *Config) {
	if valuesFromEnv.RunAddr != "" {
		c.RunAddr = valuesFromEnv.RunAddr
	}
	if valuesFromEnv.LogLevel != "" {
		c.LogLevel = valuesFromEnv.LogLevel
	}
	if valuesFromEnv.DBFileName != "" {
		c.DBFileName = valuesFromEnv.DBFileName
	}
	if valuesFromEnv.DatabaseDSN != "" {
		c.DatabaseDSN = valuesFromEnv.DatabaseDSN
	}
	if valuesFromEnv.DBConnectionTimeout != 0 {
		c.DBConnectionTimeout = valuesFromEnv.DBConnectionTimeout
	}
	if valuesFromEnv.TrustedSubnet != "" {
		c.TrustedSubnet = valuesFromEnv.TrustedSubnet
	}
	if len(valuesFromEnv.CORSAllowedOrigins) > 0 {
		c.CORSAllowedOrigins = valuesFromEnv.CORSAllowedOrigins
	}
	if valuesFromEnv.EnableHTTPS {
		c.EnableHTTPS = true
	}
	if valuesFromEnv.TLSCertFile != "" {
		c.TLSCertFile = valuesFromEnv.TLSCertFile
	}
	if valuesFromEnv.TLSKeyFile != "" {
		c.TLSKeyFile = valuesFromEnv.TLSKeyFile
	}
}

func (c *Config) applyFlags(fromFlags *Config, setFlags map[string]bool) {
	if setFlags["a"] {
		c.RunAddr = fromFlags.RunAddr
	}
	if setFlags["l"] {
		c.LogLevel = fromFlags.LogLevel
	}
	if setFlags["f"] {
		c.DBFileName = fromFlags.DBFileName
	}
	if setFlags["d"] {
		c.DatabaseDSN = fromFlags.DatabaseDSN
	}
	if setFlags["t"] {
		c.TrustedSubnet = fromFlags.TrustedSubnet
	}
	if setFlags["o"] && len(fromFlags.CORSAllowedOrigins) > 0 {
		c.CORSAllowedOrigins = fromFlags.CORSAllowedOrigins
	}
	if setFlags["s"] {
		c.EnableHTTPS = fromFlags.EnableHTTPS
	}
}

func splitList(value string) []string {
	var result []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			result = append(result, item)
		}
	}

	return result
}

func validateFilePath(fieldLevel validator.FieldLevel) bool {
	path := fieldLevel.Field().String()
	if path == "" {
		return true
	}
	_, err := os.Stat(path)

	return err == nil || os.IsNotExist(err)
}

func validateLogLevel(fieldLevel validator.FieldLevel) bool {
	return allowedLogLevels[fieldLevel.Field().String()]
}

func (c *Config) validate() error {
	validate := validator.New()

	err := validate.RegisterValidation("loglevel", validateLogLevel)
	if err != nil {
		return err
	}

	err = validate.RegisterValidation("filepath", validateFilePath)
	if err != nil {
		return err
	}

	return validate.Struct(c)
}
