package config

import (
	"log/slog"
	"os"
	"path"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env                string            `mapstructure:"env"`
	LogLevel           string            `mapstructure:"log_level"`
	LogType            string            `mapstructure:"log_type"`
	ServiceName        string            `mapstructure:"service_name"`
	Port               string            `mapstructure:"port"`
	Version            string            `mapstructure:"version"`
	WorkerSettings     *WorkerConfig     `mapstructure:"worker"`
	CrawlerSettings    *CrawlerConfig    `mapstructure:"crawler"`
	RenderSettings     *RenderConfig     `mapstructure:"render"`
	StorageSettings    *StorageConfig    `mapstructure:"storage"`
	DbSettings         *DatabaseConfig   `mapstructure:"database"`
	KafkaSettings      *KafkaConfig      `mapstructure:"kafka"`
	S3Settings         *S3Config         `mapstructure:"s3"`
	TelemetrySettings  *TelemetryConfig  `mapstructure:"telemetry"`
	HttpClientSettings *HttpClientConfig `mapstructure:"http_client"`
}

type WorkerConfig struct {
	WorkersNum     int           `mapstructure:"workers_num"`
	CrawlMode      string        `mapstructure:"crawl_mode"`
	UserAgent      string        `mapstructure:"user_agent"`
	DequeueBackoff time.Duration `mapstructure:"dequeue_backoff"`
}

type CrawlerConfig struct {
	DepthLimit         int           `mapstructure:"depth_limit"`
	MaxPages           int           `mapstructure:"max_pages"`
	SeedResolveTimeout time.Duration `mapstructure:"seed_resolve_timeout"`
}

type RenderConfig struct {
	MinHtmlBytes           int           `mapstructure:"min_html_bytes"`
	MinInteractiveElements int           `mapstructure:"min_interactive_elements"`
	RequestTimeout         time.Duration `mapstructure:"request_timeout"`
	NavigationTimeout      time.Duration `mapstructure:"navigation_timeout"`
	HydrationTimeout       time.Duration `mapstructure:"hydration_timeout"`
	HydrationGrace         time.Duration `mapstructure:"hydration_grace"`
	CacheTtl               time.Duration `mapstructure:"cache_ttl"`
}

type StorageConfig struct {
	BaselineRoot string `mapstructure:"baseline_root"`
	DiffRoot     string `mapstructure:"diff_root"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            string        `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
}

type KafkaConfig struct {
	Enabled  bool            `mapstructure:"enabled"`
	Producer *ProducerConfig `mapstructure:"producer"`
}

type ProducerConfig struct {
	Addr           []string      `mapstructure:"addr"`
	AlertTopicName string        `mapstructure:"alert_topic_name"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	BatchSize      int           `mapstructure:"batch_size"`
	BatchTimeout   time.Duration `mapstructure:"batch_timeout"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	RequiredAsks   int           `mapstructure:"required_acks"`
	Async          bool          `mapstructure:"async"`
}

type S3Config struct {
	Enabled         bool   `mapstructure:"enabled"`
	AwsBaseEndpoint string `mapstructure:"aws_base_endpoint"`
	Region          string `mapstructure:"region"`
	BucketName      string `mapstructure:"bucket_name"`
	KeyPrefix       string `mapstructure:"key_prefix"`
}

type TelemetryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	CollectorUrl string `mapstructure:"collector_url"`
}

type HttpClientConfig struct {
	RequestTimeout            time.Duration `mapstructure:"request_timeout"`
	MaxIdleConnections        int           `mapstructure:"max_idle_connections"`
	MaxIdleConnectionsPerHost int           `mapstructure:"max_idle_connections_per_host"`
	MaxConnectionsPerHost     int           `mapstructure:"max_connections_per_host"`
	IdleConnectionTimeout     time.Duration `mapstructure:"idle_connection_timeout"`
	TlsHandshakeTimeout       time.Duration `mapstructure:"tls_handshake_timeout"`
	DialTimeout               time.Duration `mapstructure:"dial_timeout"`
	DialKeepAlive             time.Duration `mapstructure:"dial_keep_alive"`
	TlsInsecureSkipVerify     bool          `mapstructure:"tls_insecure_skip_verify"`
}

func MustLoad() *Config {
	viper.AddConfigPath(path.Join("."))
	viper.SetConfigName("config")
	viper.AutomaticEnv()
	// The crawl mode selector is usually supplied by the environment.
	_ = viper.BindEnv("worker.crawl_mode", "CRAWL_MODE")

	err := viper.ReadInConfig()
	if err != nil {
		slog.Error("can't initialize config file.", slog.String("err", err.Error()))
		os.Exit(1)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		slog.Error("error unmarshalling viper config.", slog.String("err", err.Error()))
		os.Exit(1)
	}

	return &cfg
}
