package config

// ServerConfig holds HTTP server and logging settings.
type ServerConfig struct {
	Port      string
	LogLevel  string // debug, info, warn, error
	LogFormat string // json, console
	LogFile   string
}

// DatabaseConfig holds database connectivity settings. Driver "sqlite"
// uses Path; "postgres" uses the host/port/user fields.
type DatabaseConfig struct {
	Driver   string
	Path     string
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

// RedisConfig holds redis connectivity settings. An empty Host disables
// redis-backed caching and the service falls back to in-process caches.
type RedisConfig struct {
	Host string
	Port string
}

// BotConfig holds messenger settings. An empty Token disables outbound
// delivery; notifications are then only logged.
type BotConfig struct {
	Token string
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Port:      getEnv("SERVER_PORT", "8080"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
		LogFile:   getEnv("LOG_FILE", "logs/bot.log"),
	}
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:   getEnv("DB_DRIVER", "sqlite"),
		Path:     getEnv("DB_PATH", "db.sqlite3"),
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "5432"),
		User:     getEnv("DB_USER", "maxbot"),
		Password: getEnv("DB_PASSWORD", "maxbot"),
		Name:     getEnv("DB_NAME", "maxbot"),
	}
}

func loadRedisConfig() RedisConfig {
	return RedisConfig{
		Host: getEnv("REDIS_HOST", ""),
		Port: getEnv("REDIS_PORT", "6379"),
	}
}

func loadBotConfig() BotConfig {
	return BotConfig{
		Token: getEnv("BOT_TOKEN", ""),
	}
}
