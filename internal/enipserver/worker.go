package enipserver

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"sync"
	"time"

	"github.com/doover-run/enip-plc-bridge/internal/enipwire"
	"github.com/doover-run/enip-plc-bridge/internal/logging"
	"github.com/doover-run/enip-plc-bridge/internal/tagvalue"
)

// worker owns one TCP listener bound against one sharedState generation. A
// restart never mutates a worker in place: the supervisor stops the old one
// and starts a fresh one against a fresh sharedState.
type worker struct {
	port     int
	state    *sharedState
	logger   *logging.Logger
	listener net.Listener

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	ready chan struct{} // closed once the listener is accepting

	aliveMu sync.Mutex
	alive   bool
}

func newWorker(port int, state *sharedState, logger *logging.Logger) *worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &worker{
		port:   port,
		state:  state,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		ready:  make(chan struct{}),
		alive:  true,
	}
}

// start binds the listener and launches the accept loop. It blocks until the
// listener is bound (or fails to bind), mirroring the supervisor's
// block-until-accepting restart contract.
func (w *worker) start() error {
	addr := net.TCPAddr{IP: net.IPv4zero, Port: w.port}
	ln, err := net.ListenTCP("tcp", &addr)
	if err != nil {
		w.markDead()
		return err
	}
	w.listener = ln
	close(w.ready)

	w.wg.Add(1)
	go w.acceptLoop()
	return nil
}

func (w *worker) isAlive() bool {
	w.aliveMu.Lock()
	defer w.aliveMu.Unlock()
	return w.alive
}

func (w *worker) markDead() {
	w.aliveMu.Lock()
	w.alive = false
	w.aliveMu.Unlock()
	w.state.invalidate()
}

// stop cancels the worker's context, closes its listener, and waits for the
// accept loop and all live connection handlers to exit.
func (w *worker) stop() {
	w.cancel()
	if w.listener != nil {
		w.listener.Close()
	}
	w.wg.Wait()
}

func (w *worker) acceptLoop() {
	defer w.wg.Done()
	defer w.recoverCrash()

	for {
		select {
		case <-w.ctx.Done():
			return
		default:
		}

		tcpLn, ok := w.listener.(*net.TCPListener)
		if ok {
			tcpLn.SetDeadline(time.Now().Add(1 * time.Second))
		}
		conn, err := w.listener.Accept()
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			if w.ctx.Err() != nil {
				return
			}
			if w.logger != nil {
				w.logger.Debug("enipserver: accept error: %v", err)
			}
			continue
		}

		w.wg.Add(1)
		go w.handleConnection(conn)
	}
}

// recoverCrash converts a panic anywhere in the worker's goroutines into a
// validity-check failure the supervisor will observe and act on, rather than
// taking the whole process down.
func (w *worker) recoverCrash() {
	if r := recover(); r != nil {
		if w.logger != nil {
			w.logger.Error("enipserver: worker panic: %v", r)
		}
		w.markDead()
	}
}

func (w *worker) handleConnection(conn net.Conn) {
	defer w.wg.Done()
	defer w.recoverCrash()
	defer conn.Close()

	var sessionID uint32 = 1
	buf := make([]byte, 4096)
	var pending []byte

	for {
		select {
		case <-w.ctx.Done():
			return
		default:
		}

		conn.SetReadDeadline(time.Now().Add(30 * time.Second))
		n, err := conn.Read(buf)
		if err != nil {
			if err == io.EOF {
				return
			}
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			return
		}
		if n == 0 {
			continue
		}
		pending = append(pending, buf[:n]...)

		for {
			encap, consumed, ok := tryDecodeOne(pending)
			if !ok {
				break
			}
			pending = pending[consumed:]

			resp, handled := w.handleEncap(encap, &sessionID)
			if !handled {
				continue
			}
			if _, err := conn.Write(resp); err != nil {
				return
			}
		}
	}
}

// tryDecodeOne decodes a single ENIP encapsulation frame from the front of
// buf if a complete one is present.
func tryDecodeOne(buf []byte) (enipwire.Encapsulation, int, bool) {
	const headerLen = 24
	if len(buf) < headerLen {
		return enipwire.Encapsulation{}, 0, false
	}
	length := int(binary.BigEndian.Uint16(buf[2:4]))
	total := headerLen + length
	if len(buf) < total {
		return enipwire.Encapsulation{}, 0, false
	}
	encap, err := enipwire.Decode(buf[:total])
	if err != nil {
		return enipwire.Encapsulation{}, total, false
	}
	return encap, total, true
}

func (w *worker) handleEncap(encap enipwire.Encapsulation, sessionID *uint32) ([]byte, bool) {
	switch encap.Command {
	case enipwire.CommandRegisterSession:
		*sessionID++
		resp := enipwire.Encapsulation{
			Command:   enipwire.CommandRegisterSession,
			SessionID: *sessionID,
			Status:    enipwire.StatusSuccess,
			Data:      encap.Data,
		}
		return enipwire.Encode(resp), true

	case enipwire.CommandUnregisterSession:
		return nil, false

	case enipwire.CommandSendRRData:
		cipReq, err := enipwire.DecodeRequest(stripRRDataWrapper(encap.Data))
		if err != nil {
			return nil, false
		}
		cipResp := w.handleCIPRequest(cipReq)
		wrapped := wrapRRDataResponse(encap.SessionID, cipResp)
		return wrapped, true

	default:
		return nil, false
	}
}

// stripRRDataWrapper extracts the embedded CIP request from a SendRRData
// command's interface handle, timeout, and CPF item framing (item count,
// null address item, unconnected data item header) — the same framing the
// client's BuildSendRRData emits and wrapRRDataResponse mirrors back.
func stripRRDataWrapper(data []byte) []byte {
	const rrHeader = 6 // interface handle (4) + timeout (2)
	if len(data) <= rrHeader {
		return nil
	}
	// item count (2) + null address item (4) + unconnected data item header (4)
	const itemFraming = 10
	if len(data) <= rrHeader+itemFraming {
		return nil
	}
	return data[rrHeader+itemFraming:]
}

func wrapRRDataResponse(sessionID uint32, cipResp []byte) []byte {
	body := make([]byte, 0, 6+10+len(cipResp))
	body = append(body, 0, 0, 0, 0) // interface handle
	body = append(body, 0, 0)       // timeout
	body = append(body, 2, 0)       // item count = 2
	body = append(body, 0, 0, 0, 0) // null address item (type 0, len 0)
	body = append(body, 0xB2, 0x00) // unconnected data item type
	lenBuf := make([]byte, 2)
	binary.LittleEndian.PutUint16(lenBuf, uint16(len(cipResp)))
	body = append(body, lenBuf...)
	body = append(body, cipResp...)

	return enipwire.Encode(enipwire.Encapsulation{
		Command:   enipwire.CommandSendRRData,
		SessionID: sessionID,
		Status:    enipwire.StatusSuccess,
		Data:      body,
	})
}

func (w *worker) handleCIPRequest(req enipwire.Request) []byte {
	switch req.Service {
	case enipwire.ServiceReadTag, enipwire.ServiceGetAttributeSingle:
		v, ok := w.state.get(req.TagName)
		if !ok {
			return enipwire.EncodeResponse(enipwire.Response{Service: req.Service, Status: 0x05}) // path destination unknown
		}
		dt := enipwire.TypeCode(tagvalue.Infer(v))
		scalar := tagvalue.Scalar(v)
		valueBytes := enipwire.EncodeScalar(dt, scalar.Bool, scalar.Real, scalar.String)
		payload := make([]byte, 2+len(valueBytes))
		binary.LittleEndian.PutUint16(payload[0:2], uint16(dt))
		copy(payload[2:], valueBytes)
		return enipwire.EncodeResponse(enipwire.Response{
			Service: req.Service,
			Status:  0x00,
			Payload: payload,
		})

	case enipwire.ServiceWriteTag, enipwire.ServiceSetAttributeSingle:
		dt, data, err := enipwire.ParseWriteTagPayload(req.Payload)
		if err != nil {
			return enipwire.EncodeResponse(enipwire.Response{Service: req.Service, Status: 0x13}) // not enough data
		}
		b, r, s, err := enipwire.DecodeScalar(dt, data)
		if err != nil {
			return enipwire.EncodeResponse(enipwire.Response{Service: req.Service, Status: 0x13})
		}
		v := tagvalue.Raw(pick(dt, b, r, s))
		if !w.state.set(req.TagName, v) {
			return enipwire.EncodeResponse(enipwire.Response{Service: req.Service, Status: 0x05})
		}
		return enipwire.EncodeResponse(enipwire.Response{Service: req.Service, Status: 0x00})

	default:
		return enipwire.EncodeResponse(enipwire.Response{Service: req.Service, Status: 0x08}) // service not supported
	}
}

func pick(dt enipwire.DataType, b bool, r float64, s string) any {
	switch dt {
	case enipwire.TypeBOOL:
		return b
	case enipwire.TypeSTR:
		return s
	default:
		return r
	}
}
