package config

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Auth modes for the Snowflake API.
const (
	AuthModeKeypair = "keypair"
	AuthModeOAuth   = "oauth"
)

const defaultSPCSTokenFile = "/snowflake/session/token"

type SnowflakeConfig struct {
	Account   string
	Host      string
	User      string
	Role      string
	Warehouse string
	Database  string
	Schema    string
}

// IsConfigured returns true if all fields needed to open a SQL session are present
func (c SnowflakeConfig) IsConfigured() bool {
	return c.Account != "" &&
		c.User != "" &&
		c.Warehouse != "" &&
		c.Database != "" &&
		c.Schema != ""
}

type CortexConfig struct {
	AgentEndpoint string
	SemanticModel string
	SearchService string
	Model         string
}

type SlackConfig struct {
	AppToken        string
	BotToken        string
	AlertWebhookURL string
}

// IsConfigured returns true if all required Slack configuration is present
// Note: AlertWebhookURL is optional
func (c SlackConfig) IsConfigured() bool {
	return c.AppToken != "" && c.BotToken != ""
}

type AuthConfig struct {
	Mode                 string // "keypair" or "oauth"
	PrivateKeyPath       string
	PrivateKeyPassphrase string
	SPCSTokenFile        string
}

type AppConfig struct {
	Port        string // Optional with default "8000"
	Environment string

	SnowflakeConfig SnowflakeConfig
	CortexConfig    CortexConfig
	SlackConfig     SlackConfig
	AuthConfig      AuthConfig
}

// ExecutesSQL returns true when the relay should run agent-generated SQL
// against a Snowflake session before replying.
func (c *AppConfig) ExecutesSQL() bool {
	return c.SnowflakeConfig.IsConfigured()
}

// LoadConfig reads the full relay configuration from environment variables.
// Every missing required key is collected and reported in a single error so
// a bad deployment fails fast with the complete list.
func LoadConfig() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Println("⚠️ Could not load .env file, continuing with system env vars")
	}

	var missing []string
	requireEnv := func(key string) string {
		value := os.Getenv(key)
		if value == "" {
			missing = append(missing, key)
		}
		return value
	}

	config := &AppConfig{
		Port:        getEnvWithDefault("PORT", "8000"),
		Environment: getEnvWithDefault("ENVIRONMENT", "dev"),

		SnowflakeConfig: SnowflakeConfig{
			Account:   requireEnv("ACCOUNT"),
			Host:      requireEnv("HOST"),
			User:      getEnvFirst("DEMO_USER", "USER"),
			Role:      os.Getenv("ROLE"),
			Warehouse: os.Getenv("WAREHOUSE"),
			Database:  os.Getenv("DATABASE"),
			Schema:    os.Getenv("SCHEMA"),
		},

		CortexConfig: CortexConfig{
			AgentEndpoint: os.Getenv("AGENT_ENDPOINT"),
			SemanticModel: requireEnv("SEMANTIC_MODEL"),
			SearchService: os.Getenv("SEARCH_SERVICE"),
			Model:         requireEnv("MODEL"),
		},

		SlackConfig: SlackConfig{
			AppToken:        requireEnv("SLACK_APP_TOKEN"),
			BotToken:        requireEnv("SLACK_BOT_TOKEN"),
			AlertWebhookURL: os.Getenv("SLACK_ALERT_WEBHOOK_URL"),
		},

		AuthConfig: AuthConfig{
			Mode:                 getEnvWithDefault("AUTH_MODE", AuthModeKeypair),
			PrivateKeyPath:       os.Getenv("RSA_PRIVATE_KEY_PATH"),
			PrivateKeyPassphrase: os.Getenv("RSA_PRIVATE_KEY_PASSPHRASE"),
			SPCSTokenFile:        getEnvWithDefault("SPCS_TOKEN_FILE", defaultSPCSTokenFile),
		},
	}

	if config.SnowflakeConfig.User == "" {
		missing = append(missing, "DEMO_USER")
	}

	// The keypair mode needs a private key; the oauth mode relies on the
	// platform-mounted SPCS token file instead.
	switch config.AuthConfig.Mode {
	case AuthModeKeypair:
		if config.AuthConfig.PrivateKeyPath == "" {
			missing = append(missing, "RSA_PRIVATE_KEY_PATH")
		}
	case AuthModeOAuth:
	default:
		return nil, fmt.Errorf("AUTH_MODE must be %q or %q, got %q",
			AuthModeKeypair, AuthModeOAuth, config.AuthConfig.Mode)
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	// The agent endpoint can be derived from the account host when not set explicitly
	if config.CortexConfig.AgentEndpoint == "" {
		config.CortexConfig.AgentEndpoint = fmt.Sprintf("https://%s/api/v2/cortex/agent:run", config.SnowflakeConfig.Host)
		log.Printf("📋 AGENT_ENDPOINT not set - derived %s", config.CortexConfig.AgentEndpoint)
	}

	if config.ExecutesSQL() {
		log.Printf("✅ Snowflake SQL session configured - agent-generated SQL will be executed")
	} else {
		log.Printf("⚠️ Snowflake SQL session not configured - agent-generated SQL will be shown but not executed")
	}

	return config, nil
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFirst(keys ...string) string {
	for _, key := range keys {
		if value := os.Getenv(key); value != "" {
			return value
		}
	}
	return ""
}
