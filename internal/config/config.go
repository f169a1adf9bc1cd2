package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config carries environment-provided defaults. Command-line flags override
// every field.
type Config struct {
	Device      string
	InputFormat string
	Width       int
	Height      int
	FPS         int
	Timeout     time.Duration
	BoxSize     int
	SpeakCmd    string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
}

// DSN builds a postgres URL, or returns "" when no database host is configured.
func (c *Config) DSN() string {
	if c.DBHost == "" {
		return ""
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s", c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

// Load reads an optional .env file and then the process environment.
func Load() *Config {
	// A missing .env is normal; the process environment still applies.
	_ = godotenv.Load()

	return &Config{
		Device:      getEnv("CHROMA_DEVICE", "/dev/video0"),
		InputFormat: getEnv("CHROMA_INPUT_FORMAT", "v4l2"),
		Width:       getEnvInt("CHROMA_WIDTH", 1280),
		Height:      getEnvInt("CHROMA_HEIGHT", 720),
		FPS:         getEnvInt("CHROMA_FPS", 30),
		Timeout:     getEnvDuration("CHROMA_TIMEOUT", 60*time.Second),
		BoxSize:     getEnvInt("CHROMA_BOX_SIZE", 480),
		SpeakCmd:    getEnv("CHROMA_SPEAK_CMD", "espeak"),
		DBHost:      getEnv("POSTGRES_HOST", ""),
		DBPort:      getEnv("POSTGRES_PORT", "5432"),
		DBUser:      getEnv("POSTGRES_USER", "postgres"),
		DBPassword:  getEnv("POSTGRES_PASSWORD", ""),
		DBName:      getEnv("POSTGRES_DB", "chroma"),
	}
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
