// Package config loads pipeline configuration from a .env file, then
// environment variables, then cobra flags, in the same layered order
// the teacher's own config package uses.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	defaultStoragePath        = "./storage"
	defaultTelegramSessionDir = "telegram_session"
)

// ValueOf is the process-wide configuration, populated by Load.
var ValueOf = &Config{
	StoragePath:         defaultStoragePath,
	TelegramSessionName: defaultTelegramSessionDir,
}

// channelIDs decodes a comma-separated list of integer chat identifiers,
// the envconfig.Decoder counterpart of the teacher's allowedUsers type.
type channelIDs []int64

func (c *channelIDs) Decode(value string) error {
	if value == "" {
		return nil
	}
	for _, raw := range strings.Split(value, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return err
		}
		*c = append(*c, id)
	}
	return nil
}

// Config mirrors spec §6's environment variable list, one struct field
// per variable, decoded by envconfig from the tagged name.
type Config struct {
	RabbitMQURL         string     `envconfig:"RABBITMQ_URL" required:"true"`
	TelegramAPIID       int        `envconfig:"TELEGRAM_API_ID" required:"true"`
	TelegramAPIHash     string     `envconfig:"TELEGRAM_API_HASH" required:"true"`
	TelegramSessionName string     `envconfig:"TELEGRAM_SESSION_NAME" default:"telegram_session"`
	TelegramChannelIDs  channelIDs `envconfig:"TELEGRAM_CHANNEL_IDS"`
	DatabaseURL         string     `envconfig:"DATABASE_URL" required:"true"`
	StoragePath         string     `envconfig:"STORAGE_PATH" default:"./storage"`

	IOCPatternCPF        string `envconfig:"IOC_PATTERNS_CPF"`
	IOCPatternEmailGDF   string `envconfig:"IOC_PATTERNS_EMAIL_GDF"`
	IOCPatternDomainDF   string `envconfig:"IOC_PATTERNS_DOMAIN_DF"`
	IOCPatternIPInternal string `envconfig:"IOC_PATTERNS_IP_INTERNAL"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

func (c *Config) loadFromEnvFile(log *zap.Logger) {
	envPath := filepath.Clean(".env")
	err := godotenv.Load(envPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Sugar().Infof("no .env file at %s, relying on process environment", envPath)
		} else {
			log.Fatal("unexpected error reading .env file", zap.Error(err))
		}
	}
}

// SetFlagsFromConfig registers a cobra flag for each broker, Telegram,
// database and storage setting, mirroring the teacher's
// SetFlagsFromConfig. The IOC pattern and log level settings have no
// flag and are read from the environment only.
func SetFlagsFromConfig(cmd *cobra.Command) {
	cmd.Flags().String("rabbitmq-url", ValueOf.RabbitMQURL, "AMQP broker URL")
	cmd.Flags().Int("telegram-api-id", ValueOf.TelegramAPIID, "Telegram API ID")
	cmd.Flags().String("telegram-api-hash", ValueOf.TelegramAPIHash, "Telegram API Hash")
	cmd.Flags().String("telegram-session-name", ValueOf.TelegramSessionName, "Telegram session file name")
	cmd.Flags().String("telegram-channel-ids", "", "Comma-separated chat IDs to monitor")
	cmd.Flags().String("database-url", ValueOf.DatabaseURL, "Relational database URL")
	cmd.Flags().String("storage-path", ValueOf.StoragePath, "Content-addressable storage root")
}

// loadConfigFromArgs copies changed flags into the process environment
// before envconfig.Process runs, the same flag-to-env-var bridge the
// teacher uses.
func (c *Config) loadConfigFromArgs(cmd *cobra.Command) {
	if cmd.Flags().Changed("rabbitmq-url") {
		v, _ := cmd.Flags().GetString("rabbitmq-url")
		os.Setenv("RABBITMQ_URL", v)
	}
	if cmd.Flags().Changed("telegram-api-id") {
		v, _ := cmd.Flags().GetInt("telegram-api-id")
		os.Setenv("TELEGRAM_API_ID", strconv.Itoa(v))
	}
	if cmd.Flags().Changed("telegram-api-hash") {
		v, _ := cmd.Flags().GetString("telegram-api-hash")
		os.Setenv("TELEGRAM_API_HASH", v)
	}
	if cmd.Flags().Changed("telegram-session-name") {
		v, _ := cmd.Flags().GetString("telegram-session-name")
		os.Setenv("TELEGRAM_SESSION_NAME", v)
	}
	if cmd.Flags().Changed("telegram-channel-ids") {
		v, _ := cmd.Flags().GetString("telegram-channel-ids")
		os.Setenv("TELEGRAM_CHANNEL_IDS", v)
	}
	if cmd.Flags().Changed("database-url") {
		v, _ := cmd.Flags().GetString("database-url")
		os.Setenv("DATABASE_URL", v)
	}
	if cmd.Flags().Changed("storage-path") {
		v, _ := cmd.Flags().GetString("storage-path")
		os.Setenv("STORAGE_PATH", v)
	}
}

// Load populates ValueOf from .env, then flags, then the environment.
func Load(log *zap.Logger, cmd *cobra.Command) error {
	log = log.Named("config")
	ValueOf.loadFromEnvFile(log)
	ValueOf.loadConfigFromArgs(cmd)
	if err := envconfig.Process("", ValueOf); err != nil {
		return err
	}
	log.Info("configuration loaded", zap.String("storage_path", ValueOf.StoragePath))
	return nil
}
