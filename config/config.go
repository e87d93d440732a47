// config/config.go
package config

import (
	"errors"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Configuration stores all the configurations
type Configuration struct {
	Server        ServerConfiguration
	Log           LogConfiguration
	Decision      DecisionConfiguration
	Distribution  DistributionConfiguration
	PolicyCache   PolicyCacheConfiguration
	Enrichment    EnrichmentConfiguration
	Redis         RedisConfiguration
	Neo4j         DatabaseConfiguration
	Postgres      PostgresConfiguration
	AWS           AWSConfiguration
	Elasticsearch ElasticsearchConfiguration
	Auth          AuthConfiguration
	RateLimit     RateLimitConfiguration
}

// ServerConfiguration stores the port and other web server settings
type ServerConfiguration struct {
	Port            string
	ShutdownTimeout time.Duration
	// HealthTTL bounds how often GET /health reaches the distribution service.
	HealthTTL       time.Duration
}

type LogConfiguration struct {
	Dir string
}

// DecisionConfiguration drives the decision evaluation client and the
// decision cache.
type DecisionConfiguration struct {
	URL      string
	Package  string
	Timeout  time.Duration
	CacheTTL time.Duration
	Bucket   time.Duration
	MaxSize  int
	Coalesce bool
}

// DistributionConfiguration drives policy bundle synchronization.
type DistributionConfiguration struct {
	URL         string
	Token       string
	ClientID    string
	BouncerID   string
	Environment string
	Timeout     time.Duration
	Interval    time.Duration
}

type PolicyCacheConfiguration struct {
	MaxSize       int
	TTL           time.Duration
	SweepInterval time.Duration
}

// EnrichmentConfiguration points at the security rules file and the key
// used by encrypt rules.
type EnrichmentConfiguration struct {
	Enabled       bool
	RulesFile     string
	EncryptionKey string
	SourceTimeout time.Duration
}

// RedisConfiguration stores data for Redis connection
type RedisConfiguration struct {
	Addr         string
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
}

// DatabaseConfiguration stores data for database connection
type DatabaseConfiguration struct {
	URI      string
	Username string
	Password string
	Database string
}

type PostgresConfiguration struct {
	DSN      string
	MaxConns int
}

type AWSConfiguration struct {
	Region string
}

// ElasticsearchConfiguration stores data for Elasticsearch connection
type ElasticsearchConfiguration struct {
	URL   string
	Index string
}

type AuthConfiguration struct {
	JWTSecret  string
	AdminGroup string
}

type RateLimitConfiguration struct {
	Enabled  bool
	Requests int
	Per      time.Duration
}

var config *Configuration

func InitConfig() (*Configuration, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Failed to load .env file: %v", err)
	}

	viper.AddConfigPath("config") // path to look for the config file in
	viper.SetConfigName("config") // name of the config file (without extension)
	viper.SetConfigType("yaml")   // REQUIRED if the config file does not have the extension in the name

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv() // read in environment variables that match

	SetDefaults(viper.GetViper())

	// Attempt to read the config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("No config file found. Using default settings and environment variables.")
		} else {
			return nil, err
		}
	}

	// Unmarshal the configuration into the Configuration struct
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return config, nil
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.shutdownTimeout", "5s")
	v.SetDefault("server.healthTTL", "5s")
	v.SetDefault("log.dir", "")

	v.SetDefault("decision.url", "http://localhost:8181")
	v.SetDefault("decision.package", "bouncer/authz")
	v.SetDefault("decision.timeout", "2s")
	v.SetDefault("decision.cacheTTL", "1m")
	v.SetDefault("decision.bucket", "1m")
	v.SetDefault("decision.maxSize", 10000)
	v.SetDefault("decision.coalesce", false)

	v.SetDefault("distribution.url", "http://localhost:8282")
	v.SetDefault("distribution.environment", "production")
	v.SetDefault("distribution.timeout", "10s")
	v.SetDefault("distribution.interval", "5m")

	v.SetDefault("policyCache.maxSize", 1000)
	v.SetDefault("policyCache.ttl", "30m")
	v.SetDefault("policyCache.sweepInterval", "1m")

	v.SetDefault("enrichment.enabled", true)
	v.SetDefault("enrichment.rulesFile", "")
	v.SetDefault("enrichment.sourceTimeout", "2s")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.dialTimeout", "5s")
	v.SetDefault("redis.readTimeout", "3s")
	v.SetDefault("redis.writeTimeout", "3s")
	v.SetDefault("redis.poolSize", 10)

	v.SetDefault("neo4j.uri", "")
	v.SetDefault("neo4j.database", "")
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.maxConns", 10)
	v.SetDefault("aws.region", "us-east-1")

	v.SetDefault("elasticsearch.url", "")
	v.SetDefault("elasticsearch.index", "bouncer-decisions")

	v.SetDefault("auth.adminGroup", "bouncer-admin")

	v.SetDefault("rateLimit.enabled", false)
	v.SetDefault("rateLimit.requests", 100)
	v.SetDefault("rateLimit.per", "1m")
}

// GetConfig returns the loaded configuration
func GetConfig() *Configuration {
	return config
}

// GetString retrieves a string value from the configuration
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt retrieves an integer value from the configuration
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool retrieves a boolean value from the configuration
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetDuration retrieves a duration value from the configuration
func GetDuration(key string) time.Duration {
	return viper.GetDuration(key)
}
