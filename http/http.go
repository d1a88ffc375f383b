// Package http implements a deliberately small HTTP/1.0 and HTTP/1.1 engine:
// one request per connection, static files with byte ranges, directory
// listings, a couple of built-in handlers and a bounded worker pool.
package http

const (
	MaxHeaders     = 100
	ReadRetries    = 10
	MaxBodySize    = 64 * 1024
	WorkerPoolSize = 64

	DefaultBufferSize = MaxBodySize
)

const (
	MethodGet  = "GET"
	MethodHead = "HEAD"

	Version10 = "HTTP/1.0"
	Version11 = "HTTP/1.1"

	MimeInternal = "internal"
)

const (
	headerHost          = "HOST"
	headerContentLength = "CONTENT-LENGTH"
	headerRange         = "RANGE"
)

// Handler serves one accepted connection from start to finish.
type Handler func(ctx *ConnCtx)
