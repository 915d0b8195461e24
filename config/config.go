// Runtime configuration of the webhook service, everything comes from the
// environment. A .env file on the host is honored for developer runs, real
// deployments inject the variables through the orchestrator secrets.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

const (
	defaultMaxPhotoSize = 1280
	defaultPort         = "8080"
)

type Config struct {
	BotTokens    []string // full bot tokens, comma separated in BOT_TOKENS
	MaxPhotoSize int      // pixels, applied to width and height independently
	Port         string   // port the gin server binds to
	RedisAddr    string   // dedup marker store, empty falls back to the in-process marker
	AmqpServer   string   // rabbit host:port, empty switches decode event fan out off
	AmqpUser     string
	AmqpPasswd   string
}

// Load reads the environment into a Config. Only the bot tokens are hard
// required - the service cannot authenticate a single outbound call without them.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// not an error, the variables are then expected on the environment directly
		log.Debug("no .env file found, reading environment as is")
	}
	toks := os.Getenv("BOT_TOKENS")
	if strings.TrimSpace(toks) == "" {
		return nil, fmt.Errorf("BOT_TOKENS is not set, cannot run without at least one bot token")
	}
	cfg := &Config{
		BotTokens:    strings.Split(toks, ","),
		MaxPhotoSize: defaultMaxPhotoSize,
		Port:         getEnv("PORT", defaultPort),
		RedisAddr:    os.Getenv("REDIS_ADDR"),
		AmqpServer:   os.Getenv("AMQP_SERVER"),
		AmqpUser:     getEnv("AMQP_USER", "guest"),
		AmqpPasswd:   getEnv("AMQP_PASSWD", "guest"),
	}
	if mps := os.Getenv("MAX_PHOTO_SIZE"); mps != "" {
		val, err := strconv.Atoi(mps)
		if err != nil || val <= 0 {
			return nil, fmt.Errorf("MAX_PHOTO_SIZE has to be a positive integer, got %q", mps)
		}
		cfg.MaxPhotoSize = val
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}
