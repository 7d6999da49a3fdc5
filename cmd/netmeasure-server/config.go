package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/EternisAI/netmeasure/internal/api/http"
	"github.com/EternisAI/netmeasure/internal/db"
	"github.com/EternisAI/netmeasure/internal/gateway"
	"github.com/EternisAI/netmeasure/internal/httpagent"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Log     LogConfig
	Http    http.Config
	Gateway gateway.Config
	Nodes   []httpagent.Config
	Probe   ProbeConfig
	DB      db.Config `mapstructure:"db"`
}

type ProbeConfig struct {
	DefaultNode string `mapstructure:"default_node"`
	GeoIPDB     string `mapstructure:"geoip_db"`
}

var config Config

func InitConfig() {
	var err error

	_ = godotenv.Load()

	viper.SetConfigName("application")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./cmd/netmeasure-server")
	viper.SetConfigType("yaml")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	_ = viper.BindEnv("gateway.key", "NETMEASURE_GATEWAY_KEY")
	_ = viper.BindEnv("http.admin_api_key", "NETMEASURE_ADMIN_API_KEY")
	_ = viper.BindEnv("http.jwt_secret", "NETMEASURE_JWT_SECRET")
	_ = viper.BindEnv("db.url", "DATABASE_URL")

	if err := viper.ReadInConfig(); err != nil {
		panic(err)
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		panic(err)
	}

	initLogger(config.Log.Level)

	if strings.ToUpper(config.Log.Level) == LOG_LEVEL_DEBUG {
		configJSON, err := json.MarshalIndent(redacted(config), "", "  ")
		if err == nil {
			fmt.Println("Config loaded:")
			fmt.Println(string(configJSON))
		}
	}
}

// redacted hides secrets before the config is printed.
func redacted(c Config) Config {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "***"
	}
	c.Http.AdminAPIKey = mask(c.Http.AdminAPIKey)
	c.Http.JWTSecret = mask(c.Http.JWTSecret)
	c.Gateway.Key = mask(c.Gateway.Key)
	c.DB.Url = mask(c.DB.Url)

	nodes := make([]httpagent.Config, len(c.Nodes))
	for i, n := range c.Nodes {
		n.Key = mask(n.Key)
		nodes[i] = n
	}
	c.Nodes = nodes
	return c
}
