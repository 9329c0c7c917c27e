package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

type Config struct {
	LogLevel string  `yaml:"log-level" env:"LOG_LEVEL" env-default:"info"`
	HTTPPort string  `yaml:"http-port" env:"HTTP_PORT" env-default:"9090"`
	Store    string  `yaml:"store" env:"STORE" env-default:"redis"`
	Redis    Redis   `yaml:"redis"`
	Match    Match   `yaml:"match"`
	Reaper   Reaper  `yaml:"reaper"`
	Archive  Archive `yaml:"archive"`
}

type Redis struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port     string `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD" env-default:""`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// Match holds the timings of the turn protocol.
type Match struct {
	TurnTimeout       time.Duration `yaml:"turn-timeout" env:"MATCH_TURN_TIMEOUT" env-default:"30s"`
	WaitingExpiry     time.Duration `yaml:"waiting-expiry" env:"MATCH_WAITING_EXPIRY" env-default:"60s"`
	DeleteGrace       time.Duration `yaml:"delete-grace" env:"MATCH_DELETE_GRACE" env-default:"5s"`
	MenuReturnDelay   time.Duration `yaml:"menu-return-delay" env:"MATCH_MENU_RETURN_DELAY" env-default:"3s"`
	HeartbeatInterval time.Duration `yaml:"heartbeat-interval" env:"MATCH_HEARTBEAT_INTERVAL" env-default:"5s"`
	PresenceTTL       time.Duration `yaml:"presence-ttl" env:"MATCH_PRESENCE_TTL" env-default:"15s"`
	AIThinkDelay      time.Duration `yaml:"ai-think-delay" env:"MATCH_AI_THINK_DELAY" env-default:"1200ms"`
	ResolverPolicy    string        `yaml:"resolver-policy" env:"MATCH_RESOLVER_POLICY" env-default:"any"`
}

type Reaper struct {
	Interval   time.Duration `yaml:"interval" env:"REAPER_INTERVAL" env-default:"2s"`
	SweepEvery time.Duration `yaml:"sweep-every" env:"REAPER_SWEEP_EVERY" env-default:"30s"`
	StaleAfter time.Duration `yaml:"stale-after" env:"REAPER_STALE_AFTER" env-default:"10m"`
}

type Archive struct {
	DSN string `yaml:"dsn" env:"ARCHIVE_DSN" env-default:""`
}

// MustLoad - load all configurations in config.yml file.
func MustLoad(path string) *Config {
	config := &Config{}

	if err := cleanenv.ReadConfig(path, config); err != nil {
		panic(fmt.Errorf("unable to load config file: %w", err))
	}

	return config
}

func (that *Redis) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", that.Host, that.Port)
}

func (that *Archive) Enabled() bool {
	return that.DSN != ""
}
