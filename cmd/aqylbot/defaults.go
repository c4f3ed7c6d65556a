package main

import (
	"time"

	"github.com/spf13/viper"
)

func initViperDefaults() {
	// Logging
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.add_source", false)

	// Telegram
	viper.SetDefault("telegram.token", "")
	viper.SetDefault("telegram.base_url", "https://api.telegram.org")
	viper.SetDefault("telegram.poll_timeout", 30*time.Second)
	viper.SetDefault("telegram.webhook_url", "")
	viper.SetDefault("telegram.webhook_bind", "127.0.0.1:8090")

	// Dialog
	viper.SetDefault("history.max_messages", 20)
	viper.SetDefault("history.window", 6)
	viper.SetDefault("persona.path", "")
	viper.SetDefault("bot.max_concurrency", 3)
	viper.SetDefault("bot.reply_timeout", 60*time.Second)
	viper.SetDefault("bot.rate_every", 1*time.Second)
	viper.SetDefault("bot.rate_burst", 3)

	// LLM providers, tried in order until one answers.
	viper.SetDefault("llm.order", []string{"gemini", "openai"})
	viper.SetDefault("llm.request_timeout", 90*time.Second)
	viper.SetDefault("llm.gemini.base_url", "https://generativelanguage.googleapis.com")
	viper.SetDefault("llm.gemini.api_key", "")
	viper.SetDefault("llm.gemini.model", "gemini-2.0-flash")
	viper.SetDefault("llm.openai.base_url", "https://api.openai.com")
	viper.SetDefault("llm.openai.api_key", "")
	viper.SetDefault("llm.openai.model", "gpt-4o-mini")

	// Weather
	viper.SetDefault("weather.base_url", "https://api.openweathermap.org")
	viper.SetDefault("weather.api_key", "")
	viper.SetDefault("weather.timeout", 10*time.Second)

	// Currency
	viper.SetDefault("currency.fiat_base_url", "https://api.exchangerate.host")
	viper.SetDefault("currency.crypto_base_url", "https://api.binance.com")
	viper.SetDefault("currency.timeout", 10*time.Second)

	// Snapshot persistence
	viper.SetDefault("snapshot.backend", "file")
	viper.SetDefault("snapshot.interval", 2*time.Second)
	viper.SetDefault("snapshot.file.path", "data/history.json")
	viper.SetDefault("snapshot.redis.addr", "127.0.0.1:6379")
	viper.SetDefault("snapshot.redis.password", "")
	viper.SetDefault("snapshot.redis.db", 0)
	viper.SetDefault("snapshot.redis.key", "aqylbot:history")

	// Audit trail; empty path disables it.
	viper.SetDefault("audit.path", "data/audit.db")
}
