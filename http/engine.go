package http

import (
	"log/slog"
	"strconv"

	"github.com/freekieb7/kiln/auth"
	"github.com/freekieb7/kiln/logging"
	"github.com/freekieb7/kiln/telemetry"
)

// Engine is the worker body: one request in, one response out, then the
// connection is closed.
type Engine struct {
	Parser    Parser
	Router    *Router
	Responder Responder
	// Access may be nil, in which case every request is authorized.
	Access  *auth.Access
	Log     *logging.AccessLog
	Logger  *slog.Logger
	Metrics *telemetry.Metrics
	// Dump writes request bodies to the access log as hex.
	Dump bool
}

func (e *Engine) Serve(ctx *ConnCtx) {
	conn := ctx.Conn
	req := &ctx.Request

	e.event(req, "connected")
	defer func() {
		conn.Shutdown()
		e.event(req, "disconnected")
	}()

	if !conn.Valid() || e.Router == nil {
		return
	}
	if err := conn.Handshake(ctx.Context); err != nil {
		e.Logger.Debug("handshake failed", "remote", req.RemoteAddr, "error", err)
		return
	}

	ok := e.Parser.Parse(conn, ctx.Buffer, req)
	e.logRequest(req)

	if !ok {
		if !conn.Valid() {
			e.Logger.Debug("connection lost before request", "remote", req.RemoteAddr, "error", conn.Err())
			return
		}
		ctx.Status = StatusRequestTimeout
		if err := WriteStatus(conn, req.Version, ctx.Status); err != nil {
			e.Logger.Debug("writing timeout response failed", "remote", req.RemoteAddr, "error", err)
		}
		e.event(req, "response "+strconv.Itoa(int(ctx.Status)))
		return
	}

	if e.Access != nil && !e.Access.IsAuthorized(req) {
		ctx.Status = StatusUnauthorized
		e.Metrics.AuthFailure(ctx.Context)
		if err := WriteStatus(conn, req.Version, ctx.Status, Header{Key: "WWW-Authenticate", Value: e.Access.Challenge()}); err != nil {
			e.Logger.Debug("writing challenge failed", "remote", req.RemoteAddr, "error", err)
		}
		e.event(req, "response "+strconv.Itoa(int(ctx.Status)))
		return
	}

	res, mime, listing := e.Router.Resolve(req)
	plan := Decide(req, res, mime, listing)

	status, sent, err := e.Responder.Send(conn, ctx.Buffer, req, plan, res)
	ctx.Status = status
	ctx.Sent = sent
	if err != nil {
		e.Logger.Debug("response incomplete", "remote", req.RemoteAddr, "uri", req.URI, "sent", sent, "error", err)
	}

	e.event(req, "response "+strconv.Itoa(int(status)))
}

func (e *Engine) logRequest(req *Request) {
	if req.Method != "" {
		e.event(req, req.Method+" "+req.URI+" "+req.Version)
	}
	for _, h := range req.HeaderList {
		e.event(req, h.Key+": "+h.Value)
	}
	if req.ParseErr != "" {
		e.Logger.Debug("request parse error", "remote", req.RemoteAddr, "error", req.ParseErr)
	}
	if e.Dump && len(req.Body) > 0 {
		if err := e.Log.Dump(req.RemoteAddr, req.RemotePort, req.Body); err != nil {
			e.Logger.Warn("access log dump failed", "error", err)
		}
	}
}

func (e *Engine) event(req *Request, event string) {
	if err := e.Log.Event(req.RemoteAddr, req.RemotePort, event); err != nil {
		e.Logger.Warn("access log write failed", "error", err)
	}
}

// Handler returns the engine wrapped in the standard middleware.
func (e *Engine) Handler(middleware ...Middleware) Handler {
	return Chain(e.Serve, middleware...)
}
