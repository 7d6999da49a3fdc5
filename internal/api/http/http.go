package http

import "time"

type Config struct {
	Port        uint          `mapstructure:"port"`
	AdminAPIKey string        `mapstructure:"admin_api_key"`
	JWTSecret   string        `mapstructure:"jwt_secret"`
	TokenTTL    time.Duration `mapstructure:"token_ttl"`
	Cooldown    time.Duration `mapstructure:"cooldown"`
}
