package backend

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/imoveplus/crm/backend/scheduler"
	pgxlog15 "github.com/jackc/pgx-log15"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/vaughan0/go-ini"
	log "gopkg.in/inconshreveable/log15.v2"
)

const DefaultFeedBaseURL = "https://vloginoveplus.com"

type HTTPConfig struct {
	ListenAddress string
	ListenPort    string
	FeedBaseURL   string
	TestEndpoints bool
}

func LoadConfig(path string) (ini.File, error) {
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("Invalid config path: %v", err)
	}

	file, err := ini.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("Failed to load config file: %v", err)
	}

	return file, nil
}

func NewLogger(conf ini.File) (log.Logger, error) {
	level, _ := conf.Get("log", "level")
	if level == "" {
		level = "warn"
	}

	logger := log.New()
	if err := SetFilterHandler(level, logger, log.StdoutHandler); err != nil {
		return nil, err
	}

	return logger, nil
}

// SetFilterHandler sets handler on logger filtered to level. The level "none" discards everything.
func SetFilterHandler(level string, logger log.Logger, handler log.Handler) error {
	if level == "none" {
		logger.SetHandler(log.DiscardHandler())
		return nil
	}

	lvl, err := log.LvlFromString(level)
	if err != nil {
		return fmt.Errorf("Bad log level: %v", err)
	}
	logger.SetHandler(log.LvlFilterHandler(lvl, handler))

	return nil
}

func NewPool(ctx context.Context, conf ini.File, logger log.Logger) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig("")
	if err != nil {
		return nil, err
	}

	if host, ok := conf.Get("database", "host"); ok {
		config.ConnConfig.Host = host
	}
	if p, ok := conf.Get("database", "port"); ok {
		n, err := strconv.ParseUint(p, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("Bad database port: %v", err)
		}
		config.ConnConfig.Port = uint16(n)
	}

	var ok bool
	if config.ConnConfig.Database, ok = conf.Get("database", "database"); !ok {
		return nil, errors.New("Config must contain database.database but it does not")
	}
	if user, ok := conf.Get("database", "user"); ok {
		config.ConnConfig.User = user
	}
	if password, ok := conf.Get("database", "password"); ok {
		config.ConnConfig.Password = password
	}
	config.MaxConns = 10

	pgxLogger := logger.New("module", "pgx")
	logLevel := tracelog.LogLevelWarn
	if level, ok := conf.Get("log", "pgx_level"); ok {
		logLevel, err = tracelog.LogLevelFromString(level)
		if err != nil {
			return nil, fmt.Errorf("Bad pgx log level: %v", err)
		}
	}
	config.ConnConfig.Tracer = &tracelog.TraceLog{
		Logger:   pgxlog15.NewLogger(pgxLogger),
		LogLevel: logLevel,
	}

	return pgxpool.NewWithConfig(ctx, config)
}

// LoadHTTPConfig reads the [server] and [feed] sections. Values already present in config are kept.
func LoadHTTPConfig(conf ini.File, config HTTPConfig) (HTTPConfig, error) {
	var ok bool
	if config.ListenAddress == "" {
		if config.ListenAddress, ok = conf.Get("server", "address"); !ok {
			return config, errors.New("Missing server address")
		}
	}

	if config.ListenPort == "" {
		if config.ListenPort, ok = conf.Get("server", "port"); !ok {
			return config, errors.New("Missing server port")
		}
	}

	if config.FeedBaseURL == "" {
		config.FeedBaseURL = FeedBaseURL(conf)
	}

	return config, nil
}

func FeedBaseURL(conf ini.File) string {
	if url, ok := conf.Get("feed", "base_url"); ok && url != "" {
		return url
	}
	return DefaultFeedBaseURL
}

func AgingSpec(conf ini.File) string {
	if spec, ok := conf.Get("scheduler", "aging_spec"); ok && spec != "" {
		return spec
	}
	return scheduler.DefaultAgingSpec
}
