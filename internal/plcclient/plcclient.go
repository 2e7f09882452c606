// Package plcclient implements the bridge's outbound CIP client: a single
// unconnected-messaging (UCMM) session to one PLC, addressed by symbolic
// tag name rather than class/instance/attribute path.
package plcclient

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/doover-run/enip-plc-bridge/internal/enipwire"
	"github.com/doover-run/enip-plc-bridge/internal/tagvalue"
)

// Options configures a Client's connection.
type Options struct {
	Address  string
	Port     int // default 44818
	Micro800 bool
	Username string
	Password string
	Timeout  time.Duration // default 200ms
}

// Client is a CIP client bound to one PLC. It is not safe for concurrent
// use; PlcSyncTask gives each PLC its own Client and its own goroutine.
type Client struct {
	opts   Options
	conn   net.Conn
	sessID uint32
	ctx    [8]byte
}

// New creates an unconnected Client. Call Connect before Read/Write.
func New(opts Options) *Client {
	if opts.Port == 0 {
		opts.Port = 44818
	}
	if opts.Timeout == 0 {
		opts.Timeout = 200 * time.Millisecond
	}
	return &Client{opts: opts}
}

// Connect dials the PLC and registers an ENIP session. Micro800 controllers
// speak the same RegisterSession handshake as CompactLogix/ControlLogix;
// the flag exists for future per-family quirks and is otherwise inert here.
//
// Username/Password are accepted for parity with the configuration surface
// but EtherNet/IP carries no session-level credential exchange in the
// services this client uses (Read_Tag/Write_Tag); a non-empty value is
// logged by the caller as a warning, never treated as a connect failure.
func (c *Client) Connect(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", c.opts.Address, c.opts.Port)
	d := net.Dialer{Timeout: c.opts.Timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	c.conn = conn

	pkt := enipwire.BuildRegisterSession(c.ctx)
	if err := c.writeFrame(pkt); err != nil {
		c.Close()
		return err
	}
	resp, err := c.readFrame()
	if err != nil {
		c.Close()
		return err
	}
	if resp.Status != enipwire.StatusSuccess {
		c.Close()
		return fmt.Errorf("RegisterSession failed: status 0x%08X", resp.Status)
	}
	c.sessID = resp.SessionID
	return nil
}

// Close tears the session down and closes the socket. Safe to call more
// than once.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	if c.sessID != 0 {
		pkt := enipwire.BuildUnregisterSession(c.sessID, c.ctx)
		_ = c.writeFrame(pkt)
	}
	err := c.conn.Close()
	c.conn = nil
	c.sessID = 0
	return err
}

// ReadTag reads a symbolically-addressed tag's current value.
func (c *Client) ReadTag(tagName string) (tagvalue.Value, error) {
	req := enipwire.Request{
		Service: enipwire.ServiceReadTag,
		TagName: tagName,
		Payload: enipwire.BuildReadTagPayload(),
	}
	cipResp, err := c.invoke(req)
	if err != nil {
		return tagvalue.Value{}, err
	}
	if cipResp.Status != 0x00 {
		return tagvalue.Value{}, fmt.Errorf("Read_Tag %q: CIP status 0x%02X", tagName, cipResp.Status)
	}

	dt, data, err := enipwire.ParseWriteTagPayload(prefixElementWord(cipResp.Payload))
	if err != nil {
		return tagvalue.Value{}, fmt.Errorf("Read_Tag %q: %w", tagName, err)
	}
	b, r, s, err := enipwire.DecodeScalar(dt, data)
	if err != nil {
		return tagvalue.Value{}, fmt.Errorf("Read_Tag %q: %w", tagName, err)
	}
	switch dt {
	case enipwire.TypeBOOL:
		return tagvalue.Bool(b), nil
	case enipwire.TypeSTR:
		return tagvalue.String(s), nil
	default:
		return tagvalue.Real(r), nil
	}
}

// WriteTag writes a scalar value to a symbolically-addressed tag.
func (c *Client) WriteTag(tagName string, v tagvalue.Value) error {
	scalar := tagvalue.Scalar(v)
	dt := enipwire.TypeCode(tagvalue.Infer(scalar))
	data := enipwire.EncodeScalar(dt, scalar.Bool, scalar.Real, scalar.String)

	req := enipwire.Request{
		Service: enipwire.ServiceWriteTag,
		TagName: tagName,
		Payload: enipwire.BuildWriteTagPayload(dt, data),
	}
	cipResp, err := c.invoke(req)
	if err != nil {
		return err
	}
	if cipResp.Status != 0x00 {
		return fmt.Errorf("Write_Tag %q: CIP status 0x%02X", tagName, cipResp.Status)
	}
	return nil
}

// prefixElementWord inserts a zero 2-byte element-count word after the type
// code of a Read_Tag response's {type, value} payload (no element count on
// the wire), giving the {type, count, value} layout ParseWriteTagPayload
// expects.
func prefixElementWord(payload []byte) []byte {
	if len(payload) < 2 {
		return payload
	}
	out := make([]byte, 2+len(payload))
	copy(out[0:2], payload[0:2])
	copy(out[4:], payload[2:])
	return out
}

func (c *Client) invoke(req enipwire.Request) (enipwire.Response, error) {
	if c.conn == nil {
		return enipwire.Response{}, fmt.Errorf("plcclient: not connected")
	}
	cipData := enipwire.EncodeRequest(req)
	pkt := enipwire.BuildSendRRData(c.sessID, c.ctx, cipData)
	if err := c.writeFrame(pkt); err != nil {
		return enipwire.Response{}, err
	}
	resp, err := c.readFrame()
	if err != nil {
		return enipwire.Response{}, err
	}
	if resp.Status != enipwire.StatusSuccess {
		return enipwire.Response{}, fmt.Errorf("SendRRData failed: status 0x%08X", resp.Status)
	}
	rrData, err := enipwire.ParseSendRRDataResponse(resp.Data)
	if err != nil {
		return enipwire.Response{}, err
	}
	return enipwire.DecodeResponse(rrData)
}

func (c *Client) writeFrame(pkt []byte) error {
	c.conn.SetWriteDeadline(time.Now().Add(c.opts.Timeout))
	_, err := c.conn.Write(pkt)
	return err
}

func (c *Client) readFrame() (enipwire.Encapsulation, error) {
	const headerLen = 24
	header := make([]byte, headerLen)
	c.conn.SetReadDeadline(time.Now().Add(c.opts.Timeout))
	if _, err := readFull(c.conn, header); err != nil {
		return enipwire.Encapsulation{}, err
	}
	length := int(header[2])<<8 | int(header[3])
	body := make([]byte, length)
	if length > 0 {
		c.conn.SetReadDeadline(time.Now().Add(c.opts.Timeout))
		if _, err := readFull(c.conn, body); err != nil {
			return enipwire.Encapsulation{}, err
		}
	}
	return enipwire.Decode(append(header, body...))
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
