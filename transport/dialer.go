package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
)

// dialer hides the difference between plaintext and TLS sockets. The variant
// is picked once, when a Conn is opened, and inherited by accepted clients.
type dialer interface {
	dial(ctx context.Context, network, addr string) (net.Conn, error)

	// serve wraps a freshly accepted socket. It must not block; any
	// handshake is left to the connection's first use.
	serve(raw net.Conn) net.Conn
}

type plainDialer struct {
	net net.Dialer
}

func (d *plainDialer) dial(ctx context.Context, network, addr string) (net.Conn, error) {
	return d.net.DialContext(ctx, network, addr)
}

func (d *plainDialer) serve(raw net.Conn) net.Conn {
	return raw
}

type secureDialer struct {
	config *tls.Config
}

func (d *secureDialer) dial(ctx context.Context, network, addr string) (net.Conn, error) {
	td := tls.Dialer{Config: d.config}
	return td.DialContext(ctx, network, addr)
}

func (d *secureDialer) serve(raw net.Conn) net.Conn {
	return tls.Server(raw, d.config)
}

func newDialer(flags Flags, host string, o options) (dialer, error) {
	if !flags.Has(Secure) {
		return &plainDialer{}, nil
	}
	if !flags.Has(TCP) {
		return nil, ErrUnsupported
	}

	var config *tls.Config
	if o.tlsConfig != nil {
		config = o.tlsConfig.Clone()
	} else {
		config = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	if o.keyFile != "" || o.certFile != "" {
		pair, err := tls.LoadX509KeyPair(o.certFile, o.keyFile)
		if err != nil {
			return nil, fmt.Errorf("transport: load key pair: %w", err)
		}
		config.Certificates = append(config.Certificates, pair)
	}

	if flags.Has(Server) {
		if len(config.Certificates) == 0 && config.GetCertificate == nil {
			return nil, ErrNoKeyPair
		}
	} else if config.ServerName == "" {
		config.ServerName = host
	}

	return &secureDialer{config: config}, nil
}
