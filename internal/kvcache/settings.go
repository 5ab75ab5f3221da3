package kvcache

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"github.com/redis/go-redis/v9"
)

// Driver names accepted in Settings.Driver.
const (
	DriverRedis  = "redis"
	DriverMemory = "memory"
	DriverNone   = "none"
)

const defaultRedisPort = 6379

// Settings describes where the cache lives. A connection string wins over
// the discrete host fields; with neither set the cache is unconfigured.
type Settings struct {
	Driver         string
	URL            string
	Host           string
	Port           int
	Username       string
	Password       string
	Database       int
	KeyPrefix      string
	ConnectTimeout time.Duration
	DefaultTTL     time.Duration
}

// RedisOptions resolves go-redis options from the settings. It returns nil
// options and no error when Redis is not configured.
func (s Settings) RedisOptions() (*redis.Options, error) {
	if url := strings.TrimSpace(s.URL); url != "" {
		opts, err := redis.ParseURL(url)
		if err != nil {
			return nil, fmt.Errorf("parse redis connection string: %w", err)
		}
		return opts, nil
	}

	host := strings.TrimSpace(s.Host)
	if host == "" {
		return nil, nil
	}
	port := s.Port
	if port <= 0 {
		port = defaultRedisPort
	}
	if s.Database < 0 {
		return nil, fmt.Errorf("invalid redis database %d", s.Database)
	}
	return &redis.Options{
		Addr:     net.JoinHostPort(host, strconv.Itoa(port)),
		Username: s.Username,
		Password: s.Password,
		DB:       s.Database,
	}, nil
}

// Mode reports which backend the settings select: redis, memory or none.
func (s Settings) Mode() string {
	switch strings.ToLower(strings.TrimSpace(s.Driver)) {
	case DriverMemory:
		return DriverMemory
	case DriverNone:
		return DriverNone
	}
	if strings.TrimSpace(s.URL) != "" || strings.TrimSpace(s.Host) != "" {
		return DriverRedis
	}
	return DriverNone
}

// NewFromSettings builds a Client for the selected backend. No connection is
// made here. An unconfigured backend yields a pass-through client.
func NewFromSettings(s Settings, logger *logging.Logger) (*Client, error) {
	opts := ClientOptions{
		Logger:         logger,
		ConnectTimeout: s.ConnectTimeout,
		DefaultTTL:     s.DefaultTTL,
	}

	switch s.Mode() {
	case DriverMemory:
		return New(MemoryDialer(NewMemoryConn()), opts), nil
	case DriverRedis:
		redisOpts, err := s.RedisOptions()
		if err != nil {
			return NewUnconfigured(), err
		}
		return New(RedisDialer(redisOpts, s.KeyPrefix), opts), nil
	default:
		return NewUnconfigured(), nil
	}
}
