package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config собирается один раз при старте и дальше только читается.
type Config struct {
	Environment  string `yaml:"environment"`
	Port         string `yaml:"port"`
	DSLDir       string `yaml:"dsl_dir"`
	SectionsFile string `yaml:"sections_file"`
	DBURL        string `yaml:"db_url"`
	AutoMigrate  bool   `yaml:"auto_migrate"`

	JWTSecret        string `yaml:"jwt_secret"`
	JWTExpireSeconds int    `yaml:"jwt_expire_seconds"`

	// начальный администратор (создаётся командой migrate)
	AdminUsername string `yaml:"admin_username"`
	AdminPassword string `yaml:"admin_password"`

	// Файлы: "local" (default) | "s3" | "gcs"
	BlobDriver    string `yaml:"blob_driver"`
	FilesRoot     string `yaml:"files_root"`      // для local: папка хранения
	PublicURLBase string `yaml:"public_url_base"` // префикс публичных URL объектов
	MaxUploadMB   int    `yaml:"max_upload_mb"`

	// S3-совместимое хранилище (R2, MinIO, AWS)
	S3Region     string `yaml:"s3_region"`
	S3Bucket     string `yaml:"s3_bucket"`
	S3Prefix     string `yaml:"s3_prefix"`
	S3Endpoint   string `yaml:"s3_endpoint"`
	S3AccessKey  string `yaml:"s3_access_key"`
	S3SecretKey  string `yaml:"s3_secret_key"`
	S3PublicRead bool   `yaml:"s3_public_read"`

	GCSBucket      string `yaml:"gcs_bucket"`
	GCSCredentials string `yaml:"gcs_credentials"`

	CORSOrigins []string `yaml:"cors_origins"`
}

func def() Config {
	return Config{
		Environment:  "production",
		Port:         "8080",
		DSLDir:       "dsl",
		SectionsFile: "reference/sections.yaml",
		AutoMigrate:  false,

		JWTExpireSeconds: 3600,
		AdminUsername:    "admin",

		BlobDriver:    "local",
		FilesRoot:     "uploads",
		PublicURLBase: "http://localhost:8080/uploads",
		MaxUploadMB:   32,

		S3Region: "auto",

		CORSOrigins: []string{"*"},
	}
}

func loadYAML(path string) (Config, error) {
	var c Config
	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return c, fmt.Errorf("parse %s: %w", path, err)
	}
	return c, nil
}

// getenv перебирает ключи по порядку; первый непустой выигрывает.
func getenv(fallback string, keys ...string) string {
	for _, k := range keys {
		if v, ok := os.LookupEnv(k); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return fallback
}

func getenvBool(fallback bool, keys ...string) bool {
	for _, k := range keys {
		if v, ok := os.LookupEnv(k); ok {
			v = strings.TrimSpace(strings.ToLower(v))
			if v == "1" || v == "true" || v == "yes" {
				return true
			}
			if v == "0" || v == "false" || v == "no" {
				return false
			}
		}
	}
	return fallback
}

func getenvInt(fallback int, keys ...string) int {
	s := getenv("", keys...)
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}

// Load: defaults → YAML (если файл существует) → .env → ENV.
// Имена переменных старого деплоя (DATABASE_URL, JWT_SECRET, R2_*) поддерживаются.
func Load(path string) (*Config, error) {
	cfg := def()

	if strings.TrimSpace(path) != "" {
		if st, err := os.Stat(path); err == nil && !st.IsDir() {
			fromFile, err := loadYAML(path)
			if err != nil {
				return nil, err
			}
			if err := mergo.Merge(&cfg, fromFile, mergo.WithOverride); err != nil {
				return nil, fmt.Errorf("merge %s: %w", path, err)
			}
		}
	}

	// .env не обязателен
	_ = godotenv.Load()

	cfg.Environment = getenv(cfg.Environment, "GREENING_ENV", "ENVIRONMENT")
	cfg.Port = getenv(cfg.Port, "GREENING_PORT", "PORT")
	cfg.DSLDir = getenv(cfg.DSLDir, "GREENING_DSL_DIR")
	cfg.SectionsFile = getenv(cfg.SectionsFile, "GREENING_SECTIONS_FILE")
	cfg.DBURL = getenv(cfg.DBURL, "GREENING_DB_URL", "DATABASE_URL")
	cfg.AutoMigrate = getenvBool(cfg.AutoMigrate, "GREENING_AUTO_MIGRATE")

	cfg.JWTSecret = getenv(cfg.JWTSecret, "GREENING_JWT_SECRET", "JWT_SECRET")
	cfg.JWTExpireSeconds = getenvInt(cfg.JWTExpireSeconds, "GREENING_JWT_EXPIRE_SECONDS", "JWT_EXPIRE_SECONDS")
	cfg.AdminUsername = getenv(cfg.AdminUsername, "GREENING_ADMIN_USERNAME")
	cfg.AdminPassword = getenv(cfg.AdminPassword, "GREENING_ADMIN_PASSWORD")

	cfg.BlobDriver = strings.ToLower(getenv(cfg.BlobDriver, "GREENING_BLOB_DRIVER"))
	cfg.FilesRoot = getenv(cfg.FilesRoot, "GREENING_FILES_ROOT")
	cfg.PublicURLBase = getenv(cfg.PublicURLBase, "GREENING_PUBLIC_URL_BASE", "R2_PUBLIC_URL_BASE")
	cfg.MaxUploadMB = getenvInt(cfg.MaxUploadMB, "GREENING_MAX_UPLOAD_MB")

	cfg.S3Region = getenv(cfg.S3Region, "GREENING_S3_REGION")
	cfg.S3Bucket = getenv(cfg.S3Bucket, "GREENING_S3_BUCKET", "R2_BUCKET")
	cfg.S3Prefix = getenv(cfg.S3Prefix, "GREENING_S3_PREFIX")
	cfg.S3Endpoint = getenv(cfg.S3Endpoint, "GREENING_S3_ENDPOINT", "R2_ENDPOINT")
	cfg.S3AccessKey = getenv(cfg.S3AccessKey, "GREENING_S3_ACCESS_KEY", "R2_ACCESS_KEY")
	cfg.S3SecretKey = getenv(cfg.S3SecretKey, "GREENING_S3_SECRET_KEY", "R2_SECRET_KEY")
	cfg.S3PublicRead = getenvBool(cfg.S3PublicRead, "GREENING_S3_PUBLIC_READ")

	cfg.GCSBucket = getenv(cfg.GCSBucket, "GREENING_GCS_BUCKET")
	cfg.GCSCredentials = getenv(cfg.GCSCredentials, "GREENING_GCS_CREDENTIALS")

	if origins := getenv("", "GREENING_CORS_ORIGINS"); origins != "" {
		cfg.CORSOrigins = nil
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, o)
			}
		}
	}

	cfg.PublicURLBase = strings.TrimRight(cfg.PublicURLBase, "/")
	return &cfg, nil
}

func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Environment, "development")
}

func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.JWTExpireSeconds) * time.Second
}

func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// Validate проверяет то, без чего сервер работать не может.
func (c *Config) Validate() error {
	var errs []error
	if c.DBURL == "" {
		errs = append(errs, errors.New("db_url is required (DATABASE_URL)"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("jwt_secret is required (JWT_SECRET)"))
	}
	if c.JWTExpireSeconds <= 0 {
		errs = append(errs, errors.New("jwt_expire_seconds must be positive"))
	}
	switch c.BlobDriver {
	case "local":
		if c.FilesRoot == "" {
			errs = append(errs, errors.New("files_root is required for blob_driver=local"))
		}
	case "s3":
		if c.S3Bucket == "" {
			errs = append(errs, errors.New("s3_bucket is required for blob_driver=s3 (R2_BUCKET)"))
		}
	case "gcs":
		if c.GCSBucket == "" {
			errs = append(errs, errors.New("gcs_bucket is required for blob_driver=gcs"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown blob_driver %q (local|s3|gcs)", c.BlobDriver))
	}
	if c.PublicURLBase == "" {
		errs = append(errs, errors.New("public_url_base is required (R2_PUBLIC_URL_BASE)"))
	}
	return errors.Join(errs...)
}
