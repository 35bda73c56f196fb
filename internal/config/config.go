package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

type Config struct {
	Env        string `yaml:"env"`
	Shortener  `yaml:"shortener"`
	Cache      `yaml:"cache"`
	RateLimit  `yaml:"rate_limit"`
	Analytics  `yaml:"analytics"`
	HTTPServer `yaml:"http_server"`
	Postgres   `yaml:"postgres"`
	Redis      `yaml:"redis"`
}

type Shortener struct {
	CodeLength int `yaml:"code_length"`
	MaxRetries int `yaml:"max_retries"`
}

var defaultShortener = Shortener{
	CodeLength: 7,
	MaxRetries: 5,
}

type Cache struct {
	TTL       time.Duration `yaml:"ttl"`
	OpTimeout time.Duration `yaml:"op_timeout"`
	Namespace string        `yaml:"namespace"`
}

var defaultCache = Cache{
	TTL:       24 * time.Hour,
	OpTimeout: 200 * time.Millisecond,
}

type RateLimit struct {
	// FailOpen selects the behavior when the limiter backing store is
	// unreachable: true admits requests, false denies them.
	FailOpen  bool          `yaml:"fail_open"`
	OpTimeout time.Duration `yaml:"op_timeout"`
	Redirect  RateBudget    `yaml:"redirect"`
	Create    RateBudget    `yaml:"create"`
}

type RateBudget struct {
	Limit   int64         `yaml:"limit"`
	Window  time.Duration `yaml:"window"`
	Buckets int           `yaml:"buckets"`
}

var defaultRateLimit = RateLimit{
	FailOpen:  true,
	OpTimeout: 200 * time.Millisecond,
	Redirect:  RateBudget{Limit: 100, Window: time.Minute, Buckets: 2},
	Create:    RateBudget{Limit: 10, Window: time.Minute, Buckets: 2},
}

type Analytics struct {
	Buffer        int           `yaml:"buffer"`
	RecordTimeout time.Duration `yaml:"record_timeout"`
}

var defaultAnalytics = Analytics{
	Buffer:        1024,
	RecordTimeout: 5 * time.Second,
}

type HTTPServer struct {
	Port           int           `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	MaxHeaderBytes int           `yaml:"max_header_bytes"`
	CertFile       string        `yaml:"cert_file"`
	KeyFile        string        `yaml:"key_file"`
}

var defaultHTTPServer = HTTPServer{
	Port:           8080,
	ReadTimeout:    5 * time.Second,
	WriteTimeout:   10 * time.Second,
	IdleTimeout:    time.Minute,
	MaxHeaderBytes: 1 << 20,
}

func (s *HTTPServer) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

type Postgres struct {
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	DB              string        `yaml:"db"`
	SSLMode         string        `yaml:"sslmode"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
}

var defaultPostgres = Postgres{
	Host:            "localhost",
	Port:            5432,
	SSLMode:         "disable",
	ConnMaxIdleTime: 5 * time.Minute,
	ConnMaxLifetime: 30 * time.Minute,
	MaxIdleConns:    5,
	MaxOpenConns:    25,
}

func (p *Postgres) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.DB, p.SSLMode)
}

type Redis struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

var defaultRedis = Redis{
	Host:         "localhost",
	Port:         6379,
	PoolSize:     10,
	DialTimeout:  5 * time.Second,
	ReadTimeout:  500 * time.Millisecond,
	WriteTimeout: 500 * time.Millisecond,
}

func (r *Redis) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

func Load(path string) (*Config, error) {
	const op = "config.Load"

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to open config file: %w", op, err)
	}
	defer f.Close()

	var cfg Config
	setDefaults(&cfg)

	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("%s: failed to decode config file: %w", op, err)
	}

	return &cfg, nil
}

func setDefaults(cfg *Config) {
	cfg.Env = EnvDev
	cfg.Shortener = defaultShortener
	cfg.Cache = defaultCache
	cfg.RateLimit = defaultRateLimit
	cfg.Analytics = defaultAnalytics
	cfg.HTTPServer = defaultHTTPServer
	cfg.Postgres = defaultPostgres
	cfg.Redis = defaultRedis
}
