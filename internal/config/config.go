package config

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/drstein77/storefront/internal/cartsync"
	"github.com/joho/godotenv"
)

type Options struct {
	runAddr        string
	logLevel       string
	dataBaseDSN    string
	apiEndpoint    string
	redisAddr      string
	requestTimeout time.Duration
	searchDebounce time.Duration
	catalogTTL     time.Duration
	sessionTTL     time.Duration
	cartMode       string
	cookieSecure   bool
}

func NewOptions() *Options {
	return new(Options)
}

// ParseFlags handles command line arguments
// and stores their values in the corresponding variables.
func (o *Options) ParseFlags() {
	// Load environment variables from the .env file
	loadEnvFile()

	if err := o.parse(flag.CommandLine, os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

// Parse reads options from args and the environment without touching the
// process-wide flag set.
func (o *Options) Parse(args []string) error {
	return o.parse(flag.NewFlagSet("storefront", flag.ContinueOnError), args)
}

func (o *Options) parse(fs *flag.FlagSet, args []string) error {
	// Override variable values with values from command line flags
	fs.StringVar(&o.runAddr, "a", getEnvOrDefault("RUN_ADDRESS", ":8080"), "address and port to run server")
	fs.StringVar(&o.logLevel, "l", getEnvOrDefault("LOG_LEVEL", "info"), "log level")
	fs.StringVar(&o.dataBaseDSN, "d", getEnvOrDefault("DATABASE_URI", ""), "database connection string, sessions stay in memory when empty")
	fs.StringVar(&o.apiEndpoint, "e", getEnvOrDefault("API_ENDPOINT", "http://localhost:8082/api/v1"), "storefront API endpoint")
	fs.StringVar(&o.redisAddr, "r", getEnvOrDefault("REDIS_ADDRESS", ""), "redis address for the catalog cache, disabled when empty")
	fs.StringVar(&o.cartMode, "m", getEnvOrDefault("CART_MUTATION_MODE", string(cartsync.Reject)), "concurrent cart updates: reject or queue")

	durations := []struct {
		p     *time.Duration
		name  string
		env   string
		value string
		usage string
	}{
		{&o.requestTimeout, "t", "REQUEST_TIMEOUT", "10s", "timeout of a call to the storefront API"},
		{&o.searchDebounce, "s", "SEARCH_DEBOUNCE", "500ms", "pause in typing before a live search runs"},
		{&o.catalogTTL, "c", "CATALOG_TTL", "1m", "lifetime of the cached catalog"},
		{&o.sessionTTL, "ttl", "SESSION_TTL", "24h", "lifetime of a login session"},
	}
	for _, d := range durations {
		def, err := time.ParseDuration(getEnvOrDefault(d.env, d.value))
		if err != nil {
			return fmt.Errorf("%s: %w", d.env, err)
		}
		fs.DurationVar(d.p, d.name, def, d.usage)
	}

	secure, err := strconv.ParseBool(getEnvOrDefault("COOKIE_SECURE", "false"))
	if err != nil {
		return fmt.Errorf("COOKIE_SECURE: %w", err)
	}
	fs.BoolVar(&o.cookieSecure, "secure", secure, "mark the session cookie Secure")

	// parse the arguments passed to the server into registered variables
	if err := fs.Parse(args); err != nil {
		return err
	}

	if _, err := cartsync.ParseMode(o.cartMode); err != nil {
		return err
	}
	return nil
}

func (o *Options) RunAddr() string {
	return o.runAddr
}

func (o *Options) LogLevel() string {
	return o.logLevel
}

func (o *Options) DataBaseDSN() string {
	return o.dataBaseDSN
}

func (o *Options) APIEndpoint() string {
	return o.apiEndpoint
}

func (o *Options) RedisAddr() string {
	return o.redisAddr
}

func (o *Options) RequestTimeout() time.Duration {
	return o.requestTimeout
}

func (o *Options) SearchDebounce() time.Duration {
	return o.searchDebounce
}

func (o *Options) CatalogTTL() time.Duration {
	return o.catalogTTL
}

func (o *Options) SessionTTL() time.Duration {
	return o.sessionTTL
}

// CartMode is validated while parsing, so the error is dropped here.
func (o *Options) CartMode() cartsync.Mode {
	mode, _ := cartsync.ParseMode(o.cartMode)
	return mode
}

func (o *Options) CookieSecure() bool {
	return o.cookieSecure
}

// getEnvOrDefault reads an environment variable or returns a default value if the variable is not set or is empty.
func getEnvOrDefault(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

// loadEnvFile loads environment variables from a .env file
func loadEnvFile() {
	// Determine the path to the .env file relative to the current working directory
	cwd, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}
	envPath := filepath.Join(cwd, ".env")

	// Load environment variables from the .env file
	err = godotenv.Load(envPath)
	if err != nil {
		log.Printf("No .env file found at %s, proceeding without it", envPath)
	} else {
		log.Printf(".env file loaded from %s", envPath)
	}
}
