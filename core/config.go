package core

import (
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Addr            string
		Host            string
		DebugHost       string
		ShutdownTimeout time.Duration
	}

	SessionConfig struct {
		CookieName    string
		CookieSecure  bool
		IdleTimeout   time.Duration
		SweepInterval time.Duration
	}

	GuardConfig struct {
		PolicyFile     string
		LoadingTimeout time.Duration
		CacheTTL       time.Duration
		RenewURL       string
		LoginURL       string
		PasswordURL    string
	}

	Config struct {
		Debug    bool
		TestMode bool
		Env      string
		Build    string
		AppName  string
		WorkDir  string

		APIBaseURL string
		APITimeout time.Duration

		Server  ServerConfig
		Session SessionConfig
		Guard   GuardConfig

		NotificationPollInterval time.Duration
		ExportWrapWidth          float64

		RollbarToken     string
		SendgridApiKey   string
		defaultFromEmail string
	}
)

// NewConfig loads the portal configuration from defaults, an optional
// config/.env.<env> file and <ENV>_* environment variables.
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("build", "develop")
	v.SetDefault("appName", "Masomo")
	v.SetDefault("apiBaseURL", "http://localhost:8000/v1")
	v.SetDefault("apiTimeout", 10*time.Second)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("session.cookieName", "masomo_session")
	v.SetDefault("session.cookieSecure", false)
	v.SetDefault("session.idleTimeout", 12*time.Hour)
	v.SetDefault("session.sweepInterval", 5*time.Minute)
	v.SetDefault("guard.policyFile", "")
	v.SetDefault("guard.loadingTimeout", 2*time.Second)
	v.SetDefault("guard.cacheTTL", time.Minute)
	v.SetDefault("guard.renewURL", "/subscription/renew")
	v.SetDefault("guard.loginURL", "/login")
	v.SetDefault("guard.passwordURL", "/change-password")
	v.SetDefault("notifications.pollInterval", 30*time.Second)
	v.SetDefault("export.wrapWidth", 180.0)
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("defaultFromEmail", "Masomo <noreply@localhost>")

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}
	if env == "TEST" {
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	wd, _ := os.Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		Debug:      v.GetBool("debug"),
		TestMode:   v.GetBool("testMode"),
		Env:        env,
		Build:      v.GetString("build"),
		AppName:    v.GetString("appName"),
		WorkDir:    wd,
		APIBaseURL: strings.TrimRight(v.GetString("apiBaseURL"), "/"),
		APITimeout: v.GetDuration("apiTimeout"),
		Server: ServerConfig{
			Addr:            v.GetString("server.addr"),
			Host:            v.GetString("server.host"),
			DebugHost:       v.GetString("server.debugHost"),
			ShutdownTimeout: v.GetDuration("server.shutdownTimeout"),
		},
		Session: SessionConfig{
			CookieName:    v.GetString("session.cookieName"),
			CookieSecure:  v.GetBool("session.cookieSecure"),
			IdleTimeout:   v.GetDuration("session.idleTimeout"),
			SweepInterval: v.GetDuration("session.sweepInterval"),
		},
		Guard: GuardConfig{
			PolicyFile:     v.GetString("guard.policyFile"),
			LoadingTimeout: v.GetDuration("guard.loadingTimeout"),
			CacheTTL:       v.GetDuration("guard.cacheTTL"),
			RenewURL:       v.GetString("guard.renewURL"),
			LoginURL:       v.GetString("guard.loginURL"),
			PasswordURL:    v.GetString("guard.passwordURL"),
		},
		NotificationPollInterval: v.GetDuration("notifications.pollInterval"),
		ExportWrapWidth:          v.GetFloat64("export.wrapWidth"),
		RollbarToken:             v.GetString("rollbarToken"),
		SendgridApiKey:           v.GetString("sendgridApiKey"),
		defaultFromEmail:         v.GetString("defaultFromEmail"),
	}
}

// DefaultFromEmail parses the configured sender address, falling back to noreply@localhost.
func (c *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(c.defaultFromEmail)
	if err != nil {
		return mail.Address{Name: c.AppName, Address: "noreply@localhost"}
	}
	return *addr
}
