package config

import (
	"os"
	"time"

	"github.com/go-yaml/yaml"
)

type Config struct {
	Bot    Bot    `yaml:"bot"`
	Server Server `yaml:"server"`
	Poap   Poap   `yaml:"poap"`
	ENS    ENS    `yaml:"ens"`
}

type Bot struct {
	ApplicationID string `yaml:"applicationId"`
	PublicKey     string `yaml:"publicKey"` // hex ed25519
	Token         string `yaml:"token"`
	APIBase       string `yaml:"apiBase"` // empty uses the platform default

	// DisableGateway leaves event intake to the /events relay.
	DisableGateway bool `yaml:"disableGateway"`
}

type Server struct {
	Listen        string        `yaml:"listen"`
	PostgresDsn   string        `yaml:"postgresDsn"`
	RedisAddr     string        `yaml:"redisAddr"`
	RedisDB       int           `yaml:"redisDB"`
	RedisPassword string        `yaml:"redisPassword"`
	EnableTrace   bool          `yaml:"enableTrace"`
	TraceEndpoint string        `yaml:"traceEndpoint"`
	RelaySecret   string        `yaml:"relaySecret"`
	RealtimeToken string        `yaml:"realtimeToken"`
	AckDeadline   time.Duration `yaml:"ackDeadline"`
}

type Poap struct {
	BaseURL      string        `yaml:"baseUrl"`
	AuthURL      string        `yaml:"authUrl"`
	Audience     string        `yaml:"audience"`
	APIKey       string        `yaml:"apiKey"`
	ClientID     string        `yaml:"clientId"`
	ClientSecret string        `yaml:"clientSecret"`
	Timeout      time.Duration `yaml:"timeout"`
}

type ENS struct {
	Providers []string      `yaml:"providers"`
	Timeout   time.Duration `yaml:"timeout"`
}

var DefaultProviders = []string{
	"https://eth.llamarpc.com",
	"https://rpc.ankr.com/eth",
	"https://ethereum-rpc.publicnode.com",
	"https://cloudflare-eth.com",
}

func Load(path string) (Config, error) {

	file, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer file.Close()

	var config Config
	err = yaml.NewDecoder(file).Decode(&config)
	if err != nil {
		return Config{}, err
	}

	config.ApplyEnv(os.LookupEnv)
	config.ApplyDefaults()

	return config, nil
}

// ApplyEnv overrides secrets from the environment.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	set := func(dst *string, key string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	set(&c.Bot.PublicKey, "DISCORD_PUBLIC_KEY")
	set(&c.Bot.Token, "DISCORD_TOKEN")
	set(&c.Bot.ApplicationID, "DISCORD_APPLICATION_ID")
	set(&c.Poap.APIKey, "POAP_API_KEY")
	set(&c.Poap.ClientID, "POAP_CLIENT_ID")
	set(&c.Poap.ClientSecret, "POAP_CLIENT_SECRET")
	set(&c.Server.PostgresDsn, "DATABASE_URL")
	set(&c.Server.RedisAddr, "REDIS_ADDR")
}

func (c *Config) ApplyDefaults() {
	if c.Server.Listen == "" {
		c.Server.Listen = ":8000"
	}
	if c.Server.AckDeadline == 0 {
		c.Server.AckDeadline = 2500 * time.Millisecond
	}
	if c.Poap.BaseURL == "" {
		c.Poap.BaseURL = "https://api.poap.tech"
	}
	if c.Poap.AuthURL == "" {
		c.Poap.AuthURL = "https://auth.accounts.poap.xyz/oauth/token"
	}
	if c.Poap.Audience == "" {
		c.Poap.Audience = "https://api.poap.tech"
	}
	if c.Poap.Timeout == 0 {
		c.Poap.Timeout = 15 * time.Second
	}
	if len(c.ENS.Providers) == 0 {
		c.ENS.Providers = DefaultProviders
	}
	if c.ENS.Timeout == 0 {
		c.ENS.Timeout = 15 * time.Second
	}
}
