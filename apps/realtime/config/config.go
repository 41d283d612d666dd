package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/pitabwire/frame/config"
)

type RealtimeConfig struct {
	config.ConfigurationDefault

	// Secret used to verify bearer tokens on the socket handshake.
	TokenSecret string `envDefault:"" env:"TOKEN_SECRET"`

	// Connection management
	MaxConnections       int `envDefault:"10000" env:"MAX_CONNECTIONS"`
	SendBufferSize       int `envDefault:"64"    env:"SEND_BUFFER_SIZE"`
	HeartbeatIntervalSec int `envDefault:"30"    env:"HEARTBEAT_INTERVAL_SEC"`
	WriteTimeoutSec      int `envDefault:"10"    env:"WRITE_TIMEOUT_SEC"`
	ReadLimitBytes       int `envDefault:"65536" env:"READ_LIMIT_BYTES"`

	// Call signalling
	RingTimeoutSec    int `envDefault:"30" env:"RING_TIMEOUT_SEC"`
	PersistTimeoutSec int `envDefault:"5"  env:"PERSIST_TIMEOUT_SEC"`

	// Message mutation windows
	EditWindowMin   int `envDefault:"15" env:"EDIT_WINDOW_MIN"`
	DeleteWindowMin int `envDefault:"60" env:"DELETE_WINDOW_MIN"`
}

// Validate checks that the configuration is valid.
// Returns an error if any validation fails.
func (c *RealtimeConfig) Validate() error {
	var errs []error

	if c.TokenSecret == "" {
		errs = append(errs, errors.New("TokenSecret cannot be empty"))
	}

	if c.MaxConnections < 1 {
		errs = append(errs, errors.New("MaxConnections must be >= 1"))
	}

	if c.SendBufferSize < 1 {
		errs = append(errs, errors.New("SendBufferSize must be >= 1"))
	}

	if c.HeartbeatIntervalSec <= 0 {
		errs = append(errs, errors.New("HeartbeatIntervalSec must be > 0"))
	}

	if c.WriteTimeoutSec <= 0 {
		errs = append(errs, errors.New("WriteTimeoutSec must be > 0"))
	}

	if c.WriteTimeoutSec >= c.HeartbeatIntervalSec {
		errs = append(errs, fmt.Errorf("WriteTimeoutSec (%d) must be < HeartbeatIntervalSec (%d)",
			c.WriteTimeoutSec, c.HeartbeatIntervalSec))
	}

	if c.ReadLimitBytes <= 0 {
		errs = append(errs, errors.New("ReadLimitBytes must be > 0"))
	}

	if c.RingTimeoutSec <= 0 {
		errs = append(errs, errors.New("RingTimeoutSec must be > 0"))
	}

	if c.PersistTimeoutSec <= 0 {
		errs = append(errs, errors.New("PersistTimeoutSec must be > 0"))
	}

	if c.EditWindowMin <= 0 {
		errs = append(errs, errors.New("EditWindowMin must be > 0"))
	}

	if c.DeleteWindowMin <= 0 {
		errs = append(errs, errors.New("DeleteWindowMin must be > 0"))
	}

	if c.DeleteWindowMin < c.EditWindowMin {
		errs = append(errs, fmt.Errorf("DeleteWindowMin (%d) must be >= EditWindowMin (%d)",
			c.DeleteWindowMin, c.EditWindowMin))
	}

	return errors.Join(errs...)
}

func (c *RealtimeConfig) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatIntervalSec) * time.Second
}

func (c *RealtimeConfig) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutSec) * time.Second
}

func (c *RealtimeConfig) RingTimeout() time.Duration {
	return time.Duration(c.RingTimeoutSec) * time.Second
}

func (c *RealtimeConfig) PersistTimeout() time.Duration {
	return time.Duration(c.PersistTimeoutSec) * time.Second
}

func (c *RealtimeConfig) EditWindow() time.Duration {
	return time.Duration(c.EditWindowMin) * time.Minute
}

func (c *RealtimeConfig) DeleteWindow() time.Duration {
	return time.Duration(c.DeleteWindowMin) * time.Minute
}
