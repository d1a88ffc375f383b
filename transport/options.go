package transport

import (
	"crypto/tls"
	"log/slog"
	"net"
	"time"
)

const (
	DefaultPollInterval     = 250 * time.Millisecond
	DefaultWriteTimeout     = 30 * time.Second
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultReadAhead        = 4096

	// Backlog is the listen queue length for server sockets.
	Backlog = 100
)

type options struct {
	poll             time.Duration
	writeTimeout     time.Duration
	handshakeTimeout time.Duration
	readAhead        int

	keyFile   string
	certFile  string
	tlsConfig *tls.Config

	resolver *net.Resolver
	logger   *slog.Logger
}

type Option func(*options)

func defaultOptions() options {
	return options{
		poll:             DefaultPollInterval,
		writeTimeout:     DefaultWriteTimeout,
		handshakeTimeout: DefaultHandshakeTimeout,
		readAhead:        DefaultReadAhead,
		resolver:         net.DefaultResolver,
		logger:           slog.Default(),
	}
}

// WithKeyPair loads the TLS private key and certificate used by secure
// connections.
func WithKeyPair(keyFile, certFile string) Option {
	return func(o *options) {
		o.keyFile = keyFile
		o.certFile = certFile
	}
}

// WithTLSConfig supplies a base TLS configuration. Certificates loaded through
// WithKeyPair are added to a clone of it.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(o *options) {
		o.tlsConfig = cfg
	}
}

// WithPollInterval bounds how long a single readiness poll may wait.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.poll = d
		}
	}
}

func WithWriteTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.writeTimeout = d
		}
	}
}

func WithHandshakeTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.handshakeTimeout = d
		}
	}
}

func WithResolver(r *net.Resolver) Option {
	return func(o *options) {
		if r != nil {
			o.resolver = r
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
