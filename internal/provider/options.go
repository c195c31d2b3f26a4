package provider

import (
	"context"
	"crypto/tls"
	"net/http"
	"time"

	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/domain"
	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/platform/logger"
	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/platform/utils/jwt_utils"

	"github.com/sirupsen/logrus"
)

const authorizationHeader = "Authorization"

type HeaderFunc func(ctx context.Context, tenantID domain.TenantID, headers http.Header) error

type DialOptions struct {
	HandshakeTimeout time.Duration
	KeepAlive        time.Duration
	WriteTimeout     time.Duration
	ReadLimit        int64
	EventBufferDepth int
	BrowserName      string
	TLSConfig        *tls.Config
	HeaderFuncs      []HeaderFunc
}

type DialOptionsFunc func(*DialOptions) error

func defaultDialOptions() *DialOptions {
	return &DialOptions{
		HandshakeTimeout: 10 * time.Second,
		KeepAlive:        25 * time.Second,
		WriteTimeout:     10 * time.Second,
		ReadLimit:        16 * 1024 * 1024,
		EventBufferDepth: 32,
		BrowserName:      "Chrome",
	}
}

// WithJwtAsHttpHeader authenticates each session handshake with a token
// whose subject is the tenant id
func WithJwtAsHttpHeader(tokenGenerator jwt_utils.JwtGenerator) DialOptionsFunc {
	return func(opts *DialOptions) error {
		opts.HeaderFuncs = append(opts.HeaderFuncs, func(ctx context.Context, tenantID domain.TenantID, headers http.Header) error {
			jwtToken, err := tokenGenerator(ctx, string(tenantID))
			if err != nil {
				logger.Log.WithFields(logrus.Fields{"error": err, "tenant_id": tenantID}).Error("Unable to retrieve the JWT Token for the gateway connection")
				return err
			}

			headers.Set(authorizationHeader, "Bearer "+jwtToken)
			return nil
		})
		return nil
	}
}

func WithTlsConfig(tlsConfig *tls.Config) DialOptionsFunc {
	return func(opts *DialOptions) error {
		opts.TLSConfig = tlsConfig
		return nil
	}
}

func WithHandshakeTimeout(timeout time.Duration) DialOptionsFunc {
	return func(opts *DialOptions) error {
		opts.HandshakeTimeout = timeout
		return nil
	}
}

// WithKeepAlive sets the ping interval.  Zero disables pings and read
// deadlines.
func WithKeepAlive(interval time.Duration) DialOptionsFunc {
	return func(opts *DialOptions) error {
		opts.KeepAlive = interval
		return nil
	}
}

func WithWriteTimeout(timeout time.Duration) DialOptionsFunc {
	return func(opts *DialOptions) error {
		opts.WriteTimeout = timeout
		return nil
	}
}

func WithReadLimit(limit int64) DialOptionsFunc {
	return func(opts *DialOptions) error {
		opts.ReadLimit = limit
		return nil
	}
}

func WithEventBufferDepth(depth int) DialOptionsFunc {
	return func(opts *DialOptions) error {
		opts.EventBufferDepth = depth
		return nil
	}
}

func WithBrowserName(name string) DialOptionsFunc {
	return func(opts *DialOptions) error {
		opts.BrowserName = name
		return nil
	}
}

func NewDialOptions(opts ...DialOptionsFunc) (*DialOptions, error) {
	dialOpts := defaultDialOptions()

	for _, opt := range opts {
		err := opt(dialOpts)
		if err != nil {
			return nil, err
		}
	}

	return dialOpts, nil
}
