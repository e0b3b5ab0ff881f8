package core

import (
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Address         string
		DebugHost       string
		ReadTimeout     time.Duration
		WriteTimeout    time.Duration
		ShutdownTimeout time.Duration
		DisableReqLogs  bool
	}

	DatabaseConfig struct {
		Engine     string // postgres | sqlite
		Host       string
		Port       string
		Name       string
		User       string
		Password   string
		DisableTLS bool
		Path       string // sqlite only
	}

	Config struct {
		Env          string
		Build        string
		AppName      string
		Debug        bool
		TestMode     bool
		WorkDir      string
		RollbarToken string
		Server       ServerConfig
		Database     DatabaseConfig
	}
)

func (dc DatabaseConfig) Address() string {
	if dc.Port == "" {
		return dc.Host
	}
	return net.JoinHostPort(dc.Host, dc.Port)
}

// NewConfig loads the configuration of the current ENV.
// ENV is one of DEV (local; default), TEST, QA or PROD.
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("appName", "Unheard")
	v.SetDefault("build", "dev")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.readTimeout", 5*time.Second)
	v.SetDefault("server.writeTimeout", 10*time.Second)
	v.SetDefault("server.shutdownTimeout", 10*time.Second)
	v.SetDefault("server.disableReqLogs", false)
	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "unheard")
	v.SetDefault("database.user", "unheard")
	v.SetDefault("database.password", "")
	v.SetDefault("database.disableTLS", true)
	v.SetDefault("database.path", "unheard.db")

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	workDir := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(workDir, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		Env:          env,
		Build:        v.GetString("build"),
		AppName:      v.GetString("appName"),
		Debug:        v.GetBool("debug"),
		TestMode:     v.GetBool("testMode"),
		WorkDir:      workDir,
		RollbarToken: v.GetString("rollbarToken"),
		Server: ServerConfig{
			Address:         v.GetString("server.address"),
			DebugHost:       v.GetString("server.debugHost"),
			ReadTimeout:     v.GetDuration("server.readTimeout"),
			WriteTimeout:    v.GetDuration("server.writeTimeout"),
			ShutdownTimeout: v.GetDuration("server.shutdownTimeout"),
			DisableReqLogs:  v.GetBool("server.disableReqLogs"),
		},
		Database: DatabaseConfig{
			Engine:     strings.ToLower(v.GetString("database.engine")),
			Host:       v.GetString("database.host"),
			Port:       v.GetString("database.port"),
			Name:       v.GetString("database.name"),
			User:       v.GetString("database.user"),
			Password:   v.GetString("database.password"),
			DisableTLS: v.GetBool("database.disableTLS"),
			Path:       v.GetString("database.path"),
		},
	}
}

func (c *Config) String() string {
	return fmt.Sprintf("%s (env=%s, build=%s, db=%s)", c.AppName, c.Env, c.Build, c.Database.Engine)
}
