package config

import (
	"fmt"
	"strings"

	"github.com/openbi/dataforge/internal/db"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr        string
	CORSOrigins []string
}

// UploadConfig is the file upload policy injected into the ingestion service.
// It is explicit configuration, never ambient global state.
type UploadConfig struct {
	MaxSize           int64
	AllowedExtensions []string
	Dir               string
}

// Allows reports whether the extension (without dot) is accepted.
func (u UploadConfig) Allows(ext string) bool {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, allowed := range u.AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// Config is the full application configuration.
type Config struct {
	DB     db.Config
	Server ServerConfig
	Upload UploadConfig
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DB: db.DefaultConfig(),
		Server: ServerConfig{
			Addr:        ":8080",
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Upload: UploadConfig{
			MaxSize:           50 << 20,
			AllowedExtensions: []string{"csv", "xlsx", "xls"},
			Dir:               "./uploads",
		},
	}
}

// Load reads config.yaml from configPath with environment overrides. A .env
// file in the working directory is honored before env vars are read.
func Load(configPath string) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AutomaticEnv()
	v.SetEnvPrefix("DATAFORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.BindEnv("database.host")
	v.BindEnv("database.port")
	v.BindEnv("database.user")
	v.BindEnv("database.password")
	v.BindEnv("database.dbname")
	v.BindEnv("database.sslmode")
	v.BindEnv("server.addr")
	v.BindEnv("upload.max_size")
	v.BindEnv("upload.dir")
	v.BindEnv("upload.allowed_extensions")

	if err := v.ReadInConfig(); err != nil {
		fmt.Println("No config.yaml found, using defaults and env vars")
	}

	if v.IsSet("database.host") {
		cfg.DB.Host = v.GetString("database.host")
	}
	if v.IsSet("database.port") {
		cfg.DB.Port = v.GetInt("database.port")
	}
	if v.IsSet("database.user") {
		cfg.DB.User = v.GetString("database.user")
	}
	if v.IsSet("database.password") {
		cfg.DB.Password = v.GetString("database.password")
	}
	if v.IsSet("database.dbname") {
		cfg.DB.DBName = v.GetString("database.dbname")
	}
	if v.IsSet("database.sslmode") {
		cfg.DB.SSLMode = v.GetString("database.sslmode")
	}
	if v.IsSet("server.addr") {
		cfg.Server.Addr = v.GetString("server.addr")
	}
	if v.IsSet("server.cors_origins") {
		cfg.Server.CORSOrigins = splitList(v.GetString("server.cors_origins"))
	}
	if v.IsSet("upload.max_size") {
		cfg.Upload.MaxSize = v.GetInt64("upload.max_size")
	}
	if v.IsSet("upload.dir") {
		cfg.Upload.Dir = v.GetString("upload.dir")
	}
	if v.IsSet("upload.allowed_extensions") {
		cfg.Upload.AllowedExtensions = splitList(strings.ToLower(v.GetString("upload.allowed_extensions")))
	}

	return cfg, nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
