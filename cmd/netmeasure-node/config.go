package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/EternisAI/netmeasure/internal/node"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Log    LogConfig
	Server node.Config
}

var config Config

func InitConfig() {
	var err error

	_ = godotenv.Load()

	viper.SetConfigName("application")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./cmd/netmeasure-node")
	viper.SetConfigType("yaml")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	_ = viper.BindEnv("server.key", "NETMEASURE_GATEWAY_KEY")
	_ = viper.BindEnv("server.name", "NETMEASURE_NODE_NAME")

	if err := viper.ReadInConfig(); err != nil {
		panic(err)
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		panic(err)
	}

	initLogger(config.Log.Level)

	if strings.ToUpper(config.Log.Level) == LOG_LEVEL_DEBUG {
		printable := config
		if printable.Server.Key != "" {
			printable.Server.Key = "***"
		}
		configJSON, err := json.MarshalIndent(printable, "", "  ")
		if err == nil {
			fmt.Println("Config loaded:")
			fmt.Println(string(configJSON))
		}
	}
}
