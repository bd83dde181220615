package config

import (
	"os"
	"time"

	"github.com/Astemirdum/lending-service/pkg/auth"
	"github.com/Astemirdum/lending-service/pkg/circuit_breaker"
	"github.com/Astemirdum/lending-service/pkg/kafka"
	"github.com/Astemirdum/lending-service/pkg/logger"
	"github.com/Astemirdum/lending-service/pkg/postgres"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

type HTTPServer struct {
	Host         string        `yaml:"host" envconfig:"LIBRARY_HTTP_HOST"`
	Port         string        `yaml:"port" envconfig:"LIBRARY_HTTP_PORT"`
	ReadTimeout  time.Duration `yaml:"readTimeout" envconfig:"HTTP_READ"`
	WriteTimeout time.Duration `yaml:"writeTimeout" envconfig:"HTTP_WRITE"`
}

type Lending struct {
	LoanPeriod time.Duration `yaml:"loanPeriod" envconfig:"LOAN_PERIOD"`
	FinePerDay int64         `yaml:"finePerDay" envconfig:"FINE_PER_DAY"`

	HighBorrowThreshold int `yaml:"highBorrowThreshold" envconfig:"HIGH_BORROW_THRESHOLD"`
	MostBorrowedLimit   int `yaml:"mostBorrowedLimit" envconfig:"MOST_BORROWED_LIMIT"`

	// OverdueSchedule is a cron spec with a leading seconds field, evaluated in UTC.
	OverdueSchedule string `yaml:"overdueSchedule" envconfig:"OVERDUE_SWEEP_SCHEDULE"`
}

type Config struct {
	Server         HTTPServer             `yaml:"server"`
	Database       postgres.DB            `yaml:"db"`
	Kafka          kafka.Config           `yaml:"kafka"`
	Auth           auth.Config            `yaml:"auth"`
	Lending        Lending                `yaml:"lending"`
	CircuitBreaker circuit_breaker.Config `yaml:"circuitBreaker"`
	Log            logger.Log             `yaml:"log"`
}

const fileEnv = "CONFIG_FILE"

func defaultConfig() Config {
	return Config{
		Server: HTTPServer{
			Host:         "0.0.0.0",
			Port:         "8060",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Database: postgres.DB{
			Host:         "localhost",
			Port:         "5432",
			Username:     "postgres",
			NameDB:       "library",
			SSLMode:      "disable",
			MaxOpenConns: 20,
		},
		Kafka: kafka.Config{
			Addrs: []string{"localhost:9092"},
		},
		Auth: auth.Config{
			TokenTTL: 24 * time.Hour,
		},
		Lending: Lending{
			LoanPeriod:          7 * 24 * time.Hour,
			FinePerDay:          10,
			HighBorrowThreshold: 20,
			MostBorrowedLimit:   10,
			OverdueSchedule:     "0 0 1 * * *",
		},
		CircuitBreaker: circuit_breaker.Config{
			Window:        100,
			FailureRatio:  0.2,
			Timeout:       time.Second,
			RecoveryCalls: 2,
		},
		Log: logger.Log{
			LogLevel: zapcore.InfoLevel,
		},
	}
}

// NewConfig layers defaults, the optional CONFIG_FILE yaml, the environment and finally ops.
func NewConfig(ops ...Option) (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv(fileEnv); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "read config file")
		}
		if err = yaml.Unmarshal(data, &cfg); err != nil {
			return nil, errors.Wrap(err, "parse config file")
		}
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "envconfig.Process")
	}
	for _, op := range ops {
		op(&cfg)
	}
	if cfg.Auth.Secret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	return &cfg, nil
}
