package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	SQLite   SQLiteConfig
	Redis    RedisConfig
	Taxonomy TaxonomyConfig
	Curation CurationConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Host              string
	Port              int
	ReadTimeout       int
	WriteTimeout      int
	BodyLimit         int
	RequestsPerMinute int
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	TTLSec   int
}

type TaxonomyConfig struct {
	Dir            string
	DefaultVersion string
}

type CurationConfig struct {
	TargetCount               int
	Sigma                     float64
	QualityWeight             float64
	DiversityWeight           float64
	MaxEntropyBits            float64
	EntropyBitsPerAttribute   map[string]float64
	MaxBoostMultiplier        float64
	UnderrepresentedThreshold float64
	DefaultTargetCoverage     float64
	TargetCoverage            map[string]float64
	WorkerCount               int
	QueueSize                 int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/designers-bff")

	viper.SetEnvPrefix("DESIGNERS_BFF")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 30)
	viper.SetDefault("server.bodyLimit", 10485760)
	viper.SetDefault("server.requestsPerMinute", 120)

	viper.SetDefault("sqlite.path", "./data/curation.db")

	viper.SetDefault("redis.enabled", true)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.ttlSec", 3600)

	viper.SetDefault("taxonomy.dir", "./data/taxonomy")
	viper.SetDefault("taxonomy.defaultVersion", "current")

	viper.SetDefault("curation.targetCount", 50)
	viper.SetDefault("curation.sigma", 1.0)
	viper.SetDefault("curation.qualityWeight", 0.6)
	viper.SetDefault("curation.diversityWeight", 0.4)
	viper.SetDefault("curation.maxEntropyBits", 5.0)
	viper.SetDefault("curation.maxBoostMultiplier", 3.0)
	viper.SetDefault("curation.underrepresentedThreshold", 0.05)
	viper.SetDefault("curation.defaultTargetCoverage", 80.0)
	viper.SetDefault("curation.workerCount", 2)
	viper.SetDefault("curation.queueSize", 64)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
