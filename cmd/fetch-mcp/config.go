package main

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/benoute/fetchmcp"
)

const (
	transportStdio = "stdio"
	transportHTTP  = "http"

	defaultPort = 3000
)

type config struct {
	Transport    string
	Host         string
	Port         int
	Timeout      time.Duration
	MaxBodyBytes int64
	UserAgent    string
	Metadata     bool
	LogLevel     string
}

func defaultConfig() config {
	return config{
		Transport:    transportStdio,
		Port:         defaultPort,
		Timeout:      fetchmcp.DefaultTimeout,
		MaxBodyBytes: fetchmcp.DefaultMaxBodyBytes,
		UserAgent:    fetchmcp.DefaultUserAgent,
		LogLevel:     zerolog.LevelInfoValue,
	}
}

// validate rejects settings that would fail at startup. Port 0 asks the
// kernel for any free port.
func (c config) validate() error {
	switch c.Transport {
	case transportStdio, transportHTTP:
	default:
		return fmt.Errorf("unknown transport: %s. Use '%s' or '%s'", c.Transport, transportStdio, transportHTTP)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("invalid fetch timeout: %s", c.Timeout)
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("invalid max body bytes: %d", c.MaxBodyBytes)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	return nil
}

func configFlags() []cli.Flag {
	def := defaultConfig()
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "transport",
			Usage:   "MCP transport: stdio or http",
			Value:   def.Transport,
			EnvVars: []string{"MCP_TRANSPORT"},
		},
		&cli.StringFlag{
			Name:    "host",
			Usage:   "interface to listen on for the http transport",
			Value:   def.Host,
			EnvVars: []string{"HOST"},
		},
		&cli.IntFlag{
			Name:    "port",
			Usage:   "TCP port for the http transport",
			Value:   def.Port,
			EnvVars: []string{"PORT"},
		},
		&cli.DurationFlag{
			Name:    "timeout",
			Usage:   "timeout for a single fetch",
			Value:   def.Timeout,
			EnvVars: []string{"FETCH_TIMEOUT"},
		},
		&cli.Int64Flag{
			Name:    "max-body-bytes",
			Usage:   "largest response body that will be read",
			Value:   def.MaxBodyBytes,
			EnvVars: []string{"FETCH_MAX_BODY_BYTES"},
		},
		&cli.StringFlag{
			Name:    "user-agent",
			Usage:   "User-Agent header sent with each fetch",
			Value:   def.UserAgent,
			EnvVars: []string{"FETCH_USER_AGENT"},
		},
		&cli.BoolFlag{
			Name:    "metadata",
			Usage:   "append a metadata block (author, published date, word count...) to results",
			Value:   def.Metadata,
			EnvVars: []string{"FETCH_METADATA"},
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "trace, debug, info, warn or error",
			Value:   def.LogLevel,
			EnvVars: []string{"LOG_LEVEL"},
		},
	}
}

func configFromCLI(c *cli.Context) config {
	return config{
		Transport:    c.String("transport"),
		Host:         c.String("host"),
		Port:         c.Int("port"),
		Timeout:      c.Duration("timeout"),
		MaxBodyBytes: c.Int64("max-body-bytes"),
		UserAgent:    c.String("user-agent"),
		Metadata:     c.Bool("metadata"),
		LogLevel:     c.String("log-level"),
	}
}
