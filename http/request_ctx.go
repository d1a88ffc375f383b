package http

import (
	"context"
	"time"

	"github.com/freekieb7/kiln/buffer"
	"github.com/freekieb7/kiln/transport"
)

// ConnCtx carries one accepted connection through the engine. It lives in a
// worker slot and is reset for every connection the slot serves.
type ConnCtx struct {
	Context context.Context
	SlotID  int
	Conn    *transport.Conn
	Buffer  *buffer.Buffer

	Request Request
	Status  uint16
	Sent    int64
	Started time.Time
}

func (c *ConnCtx) Reset(ctx context.Context, slotID int, conn *transport.Conn, buf *buffer.Buffer) {
	c.Context = ctx
	c.SlotID = slotID
	c.Conn = conn
	c.Buffer = buf
	c.Request.Reset()
	c.Request.RemoteAddr = conn.RemoteAddr()
	c.Request.RemotePort = conn.RemotePort()
	c.Status = 0
	c.Sent = 0
	c.Started = time.Now()
}

// Release drops the references to the finished connection. The buffer is
// zeroed because it held request and response bytes.
func (c *ConnCtx) Release() {
	c.Conn = nil
	if c.Buffer != nil {
		c.Buffer.Clear()
	}
	c.Request.Reset()
	c.Context = nil
}
