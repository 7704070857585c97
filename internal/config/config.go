package config

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/viper"
)

// Config holds all application settings.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Auth     AuthConfig
	OTP      OTPConfig
	Email    EmailConfig
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Port         string
	ReadTimeout  int
	WriteTimeout int
}

// DatabaseConfig holds the PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds the redis connection settings for the rate limiter.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// JWTConfig holds the session token settings.
type JWTConfig struct {
	Secret        string `mapstructure:"secret"`
	ExpirationHrs int    `mapstructure:"expirationHrs"`
}

// AuthConfig holds the account-security knobs. These are read per request by
// the handlers so a config reload takes effect without a restart.
type AuthConfig struct {
	// MaxLoginAttempts locks an account after this many consecutive failures.
	MaxLoginAttempts int `mapstructure:"maxLoginAttempts"`
	// LockoutMinutes is how long a triggered lock lasts.
	LockoutMinutes int `mapstructure:"lockoutMinutes"`
	// PasswordPolicy is one of easy, medium, strong.
	PasswordPolicy string `mapstructure:"passwordPolicy"`
	// AllowRegistration gates self-registration.
	AllowRegistration bool `mapstructure:"allowRegistration"`
	// MaxUsers caps the account population; 0 means unlimited.
	MaxUsers int64 `mapstructure:"maxUsers"`
}

// OTPConfig holds the one-time-code settings.
type OTPConfig struct {
	// CodeTTLMinutes is the validity window of an issued code.
	CodeTTLMinutes int `mapstructure:"codeTTLMinutes"`
	// MaxVerifyAttempts bounds guesses against a single challenge.
	MaxVerifyAttempts int `mapstructure:"maxVerifyAttempts"`
	// RateWindowMinutes is the rolling lookback for the issuance limit.
	RateWindowMinutes int `mapstructure:"rateWindowMinutes"`
	// MaxCodesPerWindow caps issuances per (email, purpose) inside the window.
	MaxCodesPerWindow int `mapstructure:"maxCodesPerWindow"`
}

// EmailConfig selects and configures the notification provider.
type EmailConfig struct {
	// Provider is "resend" or "noop".
	Provider     string `mapstructure:"provider"`
	ResendAPIKey string `mapstructure:"resendApiKey"`
	From         string `mapstructure:"from"`
}

// PostgresConnectionString builds the PostgreSQL DSN.
func (d *DatabaseConfig) PostgresConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// Load reads configuration from an optional file plus explicitly bound
// environment variables, applies defaults and validates required values.
func Load(configPath string) (*Config, error) {
	vip := viper.New()

	vip.SetDefault("server.port", "8080")
	vip.SetDefault("server.readTimeout", 10)
	vip.SetDefault("server.writeTimeout", 10)
	vip.SetDefault("database.sslmode", "disable")
	vip.SetDefault("jwt.expirationHrs", 24)
	vip.SetDefault("auth.maxLoginAttempts", 5)
	vip.SetDefault("auth.lockoutMinutes", 15)
	vip.SetDefault("auth.passwordPolicy", "medium")
	vip.SetDefault("auth.allowRegistration", true)
	vip.SetDefault("auth.maxUsers", 0)
	vip.SetDefault("otp.codeTTLMinutes", 10)
	vip.SetDefault("otp.maxVerifyAttempts", 3)
	vip.SetDefault("otp.rateWindowMinutes", 60)
	vip.SetDefault("otp.maxCodesPerWindow", 3)
	vip.SetDefault("email.provider", "noop")

	vip.BindEnv("server.port", "SERVER_PORT")
	vip.BindEnv("server.readTimeout", "SERVER_READTIMEOUT")
	vip.BindEnv("server.writeTimeout", "SERVER_WRITETIMEOUT")

	vip.BindEnv("database.host", "DATABASE_HOST")
	vip.BindEnv("database.port", "DATABASE_PORT")
	vip.BindEnv("database.user", "DATABASE_USER")
	vip.BindEnv("database.password", "DATABASE_PASSWORD")
	vip.BindEnv("database.dbname", "DATABASE_DBNAME")
	vip.BindEnv("database.sslmode", "DATABASE_SSLMODE")

	vip.BindEnv("redis.addr", "REDIS_ADDR")
	vip.BindEnv("redis.password", "REDIS_PASSWORD")
	vip.BindEnv("redis.db", "REDIS_DB")

	vip.BindEnv("jwt.secret", "JWT_SECRET")
	vip.BindEnv("jwt.expirationHrs", "JWT_EXPIRATIONHRS")

	vip.BindEnv("auth.maxLoginAttempts", "AUTH_MAXLOGINATTEMPTS")
	vip.BindEnv("auth.lockoutMinutes", "AUTH_LOCKOUTMINUTES")
	vip.BindEnv("auth.passwordPolicy", "AUTH_PASSWORDPOLICY")
	vip.BindEnv("auth.allowRegistration", "AUTH_ALLOWREGISTRATION")
	vip.BindEnv("auth.maxUsers", "AUTH_MAXUSERS")

	vip.BindEnv("otp.codeTTLMinutes", "OTP_CODETTLMINUTES")
	vip.BindEnv("otp.maxVerifyAttempts", "OTP_MAXVERIFYATTEMPTS")
	vip.BindEnv("otp.rateWindowMinutes", "OTP_RATEWINDOWMINUTES")
	vip.BindEnv("otp.maxCodesPerWindow", "OTP_MAXCODESPERWINDOW")

	vip.BindEnv("email.provider", "EMAIL_PROVIDER")
	vip.BindEnv("email.resendApiKey", "RESEND_API_KEY")
	vip.BindEnv("email.from", "EMAIL_FROM")

	if configPath != "" {
		vip.SetConfigFile(configPath)
		if err := vip.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); ok {
				log.Printf("config file '%s' not found, relying on environment variables and defaults", configPath)
			} else {
				log.Printf("warning: could not read config file '%s': %v", configPath, err)
			}
		}
	}

	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if os.Getenv("GIN_MODE") != "release" {
		log.Printf("--- loaded configuration ---")
		log.Printf("server port: %s", cfg.Server.Port)
		log.Printf("database host: %s, dbname: %s", cfg.Database.Host, cfg.Database.DBName)
		log.Printf("redis addr: %s", cfg.Redis.Addr)
		log.Printf("jwt secret set: %t, expiration hrs: %d", cfg.JWT.Secret != "", cfg.JWT.ExpirationHrs)
		log.Printf("auth: maxLoginAttempts=%d lockoutMinutes=%d passwordPolicy=%s allowRegistration=%t maxUsers=%d",
			cfg.Auth.MaxLoginAttempts, cfg.Auth.LockoutMinutes, cfg.Auth.PasswordPolicy,
			cfg.Auth.AllowRegistration, cfg.Auth.MaxUsers)
		log.Printf("otp: ttlMinutes=%d maxVerifyAttempts=%d rateWindowMinutes=%d maxCodesPerWindow=%d",
			cfg.OTP.CodeTTLMinutes, cfg.OTP.MaxVerifyAttempts, cfg.OTP.RateWindowMinutes, cfg.OTP.MaxCodesPerWindow)
		log.Printf("email provider: %s", cfg.Email.Provider)
		log.Printf("----------------------------")
	}

	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("JWT secret is required (check JWT_SECRET env var)")
	}
	if cfg.Database.Host == "" || cfg.Database.DBName == "" || cfg.Database.User == "" {
		return nil, fmt.Errorf("database configuration (host, dbname, user) is incomplete (check DATABASE_HOST, DATABASE_DBNAME, DATABASE_USER env vars)")
	}
	if cfg.Email.Provider == "resend" && cfg.Email.ResendAPIKey == "" {
		return nil, fmt.Errorf("resend api key is required when email provider is 'resend' (check RESEND_API_KEY env var)")
	}

	return &cfg, nil
}
