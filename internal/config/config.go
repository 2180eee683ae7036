package config // package config loads application configuration from environment variables

import (
    "log"     // log is used to report configuration errors and halt execution
    "os"      // os provides access to environment variables
    "time"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Config is built once at startup and shared
// read-only by every request afterwards.
type Config struct {
    Env       string // application environment (e.g. "dev", "prod")
    Port      string // HTTP port to listen on
    LogLevel  string // zerolog level name (debug, info, warn, error)
    BodyLimit string // maximum request body size accepted by echo (e.g. "10K")

    DBUser string // database username
    DBPass string // database password (optional)
    DBHost string // database host address
    DBPort string // database port number
    DBName string // database name

    JWTSecret         string        // secret used to sign identity tokens
    JWTExpiresIn      time.Duration // identity token lifetime
    JWTCookieDays     int           // lifetime of the jwt cookie in days
    BcryptCost        int           // bcrypt cost for password hashing
    ResetTokenTTL     time.Duration // validity window of password reset tokens

    Mail MailConfig // outbound mail settings
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
    return Config{
        Env:       must("APP_ENV"),
        Port:      must("APP_PORT"),
        LogLevel:  envStr("LOG_LEVEL", "info"),
        BodyLimit: envStr("BODY_LIMIT", "10K"),

        DBUser: must("DB_USER"),
        DBPass: os.Getenv("DB_PASS"), // empty allowed
        DBHost: must("DB_HOST"),
        DBPort: must("DB_PORT"),
        DBName: must("DB_NAME"),

        JWTSecret:     must("JWT_SECRET"),
        JWTExpiresIn:  mustDur("JWT_EXPIRES_IN"),
        JWTCookieDays: envInt("JWT_COOKIE_EXPIRES_DAYS", 90),
        BcryptCost:    envInt("BCRYPT_COST", 12),
        ResetTokenTTL: envDur("RESET_TOKEN_TTL", 10*time.Minute),

        Mail: LoadMailConfig(),
    }
}

// CookieTTL is how long the jwt cookie stays in the browser.
func (c Config) CookieTTL() time.Duration {
    return time.Duration(c.JWTCookieDays) * 24 * time.Hour
}

// IsProduction reports whether the service runs with APP_ENV=prod.
func (c Config) IsProduction() bool {
    return c.Env == "prod" || c.Env == "production"
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        log.Fatalf("missing required env var: %s", key)
    }
    return v
}

// mustDur is like must() but parses the value as a time.Duration.
func mustDur(key string) time.Duration {
    s := must(key)
    d, err := time.ParseDuration(s)
    if err != nil || d <= 0 {
        log.Fatalf("invalid duration for %s: %q", key, s)
    }
    return d
}
