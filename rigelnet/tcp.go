// TCP session (§4.3). Grounded on transport/api.go's fixed-slot
// connector table and tick-driven lifecycle; uses blocking per-
// connection reader goroutines feeding a bounded channel into the
// main thread, the alternative §5 explicitly sanctions over polled
// non-blocking I/O.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package rigelnet

import (
	"encoding/binary"
	"io"
	"net"
	"sync"
	"time"

	"github.com/hobgoblin-net/spempe/cmn/atomic"
	"github.com/hobgoblin-net/spempe/cmn/config"
	"github.com/hobgoblin-net/spempe/cmn/cos"
	"github.com/hobgoblin-net/spempe/cmn/nlog"
	"github.com/hobgoblin-net/spempe/stats"
	"github.com/hobgoblin-net/spempe/wire/pkt"
	"github.com/pkg/errors"
)

// ConnState is a TCP slot's lifecycle state.
type ConnState int

const (
	CSFree ConnState = iota
	CSAccepting
	CSConnecting
	CSConnected
)

const frameQueueDepth = 256

type tcpConn struct {
	conn  net.Conn
	id    string // minted via cos.GenSessionID, carried on this connector's events
	state atomic.Int32 // ConnState, set across the accept/handshake goroutine and read from Tick's main-thread loop
	slot  int

	recvCh chan []byte
	errCh  chan error

	mu          sync.Mutex
	pendingPing bool
	pingSentAt  time.Time
	lastRecv    time.Time
	latency     time.Duration

	closeOnce sync.Once
}

func (c *tcpConn) setState(st ConnState) { c.state.Store(int32(st)) }
func (c *tcpConn) getState() ConnState   { return ConnState(c.state.Load()) }

func readFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > 64<<20 {
		return nil, errors.Wrap(ErrIllegalMessage, "frame too large")
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func writeFrame(w io.Writer, payload []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

func (c *tcpConn) readLoop() {
	for {
		b, err := readFrame(c.conn)
		if err != nil {
			c.errCh <- err
			return
		}
		c.recvCh <- b
	}
}

// send writes an RPC body frame, lz4-compressing it first if it is at
// or above the configured threshold (cmn/config's
// Transport.CompressAbove).
func (c *tcpConn) send(payload []byte) error {
	framed := maybeCompress(payload, config.GCO.Get().Transport.CompressAbove)
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := writeFrame(c.conn, framed); err != nil {
		return err
	}
	stats.FrameSent()
	return nil
}

func (c *tcpConn) close() {
	c.closeOnce.Do(func() { _ = c.conn.Close() })
}

// TCPServer implements §4.3's server lifecycle over a fixed slot
// table.
type TCPServer struct {
	Node *Node

	ln         net.Listener
	passphrase string
	timeout    time.Duration
	interval   int

	mu            sync.Mutex
	slots         []*tcpConn
	tickCount     int
	updateOrdinal uint32
}

// NewTCPServer allocates n fixed connector slots.
func NewTCPServer(node *Node, n int, passphrase string, timeout time.Duration, interval int) *TCPServer {
	s := &TCPServer{
		Node:          node,
		passphrase:    passphrase,
		timeout:       timeout,
		interval:      interval,
		slots:         make([]*tcpConn, n),
		updateOrdinal: 1,
	}
	node.Send = s.sendTo
	return s
}

func (s *TCPServer) sendTo(slot int, body *pkt.Packet) error {
	s.mu.Lock()
	var c *tcpConn
	if slot >= 0 && slot < len(s.slots) {
		c = s.slots[slot]
	}
	s.mu.Unlock()
	if c == nil {
		return errors.Errorf("rigelnet: no connection in slot %d", slot)
	}
	return c.send(body.Bytes())
}

// Start opens the listening socket and begins accepting connections
// in the background; call Tick once per host tick to drive the
// lifecycle (reap timeouts, drain receive buffers into the
// dispatcher, send heartbeats).
func (s *TCPServer) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrap(err, "rigelnet: tcp listen")
	}
	s.ln = ln
	go s.acceptLoop()
	return nil
}

func (s *TCPServer) acceptLoop() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		slot := s.claimFreeSlot(conn)
		if slot < 0 {
			_ = conn.Close()
			continue
		}
		go s.handshakeServer(slot)
	}
}

func (s *TCPServer) claimFreeSlot(conn net.Conn) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.slots {
		if c == nil {
			nc := &tcpConn{
				conn:     conn,
				id:       cos.GenSessionID(),
				slot:     i,
				recvCh:   make(chan []byte, frameQueueDepth),
				errCh:    make(chan error, 1),
				lastRecv: time.Now(),
			}
			nc.setState(CSAccepting)
			s.slots[i] = nc
			return i
		}
	}
	return -1
}

func (s *TCPServer) handshakeServer(slot int) {
	s.mu.Lock()
	c := s.slots[slot]
	s.mu.Unlock()

	snapshot := map[string]string{}
	if s.Node.Registry != nil {
		snapshot = s.Node.Registry.Snapshot()
	}
	out, err := encodeHandshake(handshakeMsg{Passphrase: s.passphrase, ClientIndex: uint32(slot), Registry: snapshot})
	if err != nil || writeFrame(c.conn, out) != nil {
		s.dropSlot(slot, nil)
		return
	}

	b, err := readFrame(c.conn)
	if err != nil {
		s.dropSlot(slot, nil)
		return
	}
	in, err := decodeHandshake(b)
	if err != nil || in.Passphrase != s.passphrase {
		received := in.Passphrase
		s.Node.PushEvent(Event{Kind: EvBadPassphrase, Slot: slot, Received: received})
		s.dropSlot(slot, nil)
		return
	}

	c.setState(CSConnected)
	s.mu.Lock()
	c.lastRecv = time.Now()
	s.mu.Unlock()

	s.Node.PushEvent(Event{Kind: EvConnected, Slot: slot, SessionID: c.id})
	go c.readLoop()
}

func (s *TCPServer) dropSlot(slot int, notify *Event) {
	s.mu.Lock()
	c := s.slots[slot]
	s.slots[slot] = nil
	s.mu.Unlock()
	if c != nil {
		c.close()
	}
	if notify != nil {
		s.Node.PushEvent(*notify)
	}
}

// Tick drives one server iteration of §4.3's five numbered steps.
func (s *TCPServer) Tick() {
	now := time.Now()
	s.mu.Lock()
	slots := append([]*tcpConn(nil), s.slots...)
	timeout := s.timeout
	s.tickCount++
	advance := s.interval > 0 && s.tickCount%s.interval == 0
	if advance {
		s.updateOrdinal++
	}
	ordinal := s.updateOrdinal
	s.mu.Unlock()

	for slot, c := range slots {
		if c == nil {
			continue
		}

		if timeout > 0 && now.Sub(c.lastRecv) > timeout {
			s.dropSlot(slot, &Event{Kind: EvConnectionTimedOut, Slot: slot, SessionID: c.id})
			continue
		}

		select {
		case err := <-c.errCh:
			_ = err
			s.dropSlot(slot, &Event{Kind: EvDisconnected, Slot: slot, SessionID: c.id})
			continue
		default:
		}

		if c.getState() != CSConnected {
			continue
		}

		s.drain(slot, c)

		c.mu.Lock()
		pending := c.pendingPing
		c.mu.Unlock()
		if !pending {
			c.mu.Lock()
			c.pendingPing = true
			c.pingSentAt = now
			c.mu.Unlock()
			if err := c.send(ComposePingRequest().Bytes()); err != nil {
				s.dropSlot(slot, &Event{Kind: EvDisconnected, Slot: slot, SessionID: c.id})
				continue
			}
		}

		if advance {
			if err := c.send(ComposeSetUpdateNumber(ordinal).Bytes()); err != nil {
				s.dropSlot(slot, &Event{Kind: EvDisconnected, Slot: slot, SessionID: c.id})
			}
		}
	}
}

func (s *TCPServer) drain(slot int, c *tcpConn) {
	for {
		select {
		case b := <-c.recvCh:
			c.mu.Lock()
			c.lastRecv = time.Now()
			lat := c.latency
			c.mu.Unlock()
			raw, err := maybeDecompress(b)
			if err != nil {
				nlog.Warningln("rigelnet: tcp slot", slot, "frame error:", err.Error())
				continue
			}
			p := pkt.NewFromBytes(raw)
			if err := DecodeAndDispatch(s.Node, p, RoleServer, slot, lat); err != nil {
				nlog.Warningln("rigelnet: tcp slot", slot, "dispatch error:", err.Error())
			}
		default:
			return
		}
	}
}

// TCPClient implements §4.3's symmetric single-connector client side.
type TCPClient struct {
	Node       *Node
	passphrase string
	timeout    time.Duration

	conn     *tcpConn
	lastRecv time.Time
}

func NewTCPClient(node *Node, passphrase string, timeout time.Duration) *TCPClient {
	c := &TCPClient{Node: node, passphrase: passphrase, timeout: timeout}
	node.Send = c.sendTo
	return c
}

func (c *TCPClient) sendTo(_ int, body *pkt.Packet) error {
	if c.conn == nil {
		return errors.New("rigelnet: client not connected")
	}
	return c.conn.send(body.Bytes())
}

// Connect dials addr and performs the passphrase handshake
// synchronously; a mismatch raises BadPassphrase and returns an
// error.
func (c *TCPClient) Connect(addr string) error {
	nc, err := net.Dial("tcp", addr)
	if err != nil {
		return errors.Wrap(err, "rigelnet: tcp dial")
	}
	tc := &tcpConn{
		conn:     nc,
		id:       cos.GenSessionID(),
		slot:     -1,
		recvCh:   make(chan []byte, frameQueueDepth),
		errCh:    make(chan error, 1),
		lastRecv: time.Now(),
	}
	tc.setState(CSConnecting)

	b, err := readFrame(nc)
	if err != nil {
		_ = nc.Close()
		return errors.Wrap(err, "rigelnet: tcp handshake recv")
	}
	in, err := decodeHandshake(b)
	if err != nil || in.Passphrase != c.passphrase {
		c.Node.PushEvent(Event{Kind: EvBadPassphrase, Slot: -1, Received: in.Passphrase})
		_ = nc.Close()
		return errors.New("rigelnet: bad passphrase from server")
	}
	if c.Node.Registry != nil && len(in.Registry) > 0 {
		c.Node.Registry.ApplySnapshot(in.Registry)
	}
	if c.Node.OnSetClientIndex != nil {
		c.Node.OnSetClientIndex(in.ClientIndex)
	}

	out, err := encodeHandshake(handshakeMsg{Passphrase: c.passphrase})
	if err != nil {
		_ = nc.Close()
		return err
	}
	if err := writeFrame(nc, out); err != nil {
		_ = nc.Close()
		return errors.Wrap(err, "rigelnet: tcp handshake send")
	}

	tc.setState(CSConnected)
	c.conn = tc
	c.lastRecv = time.Now()
	c.Node.PushEvent(Event{Kind: EvConnected, Slot: -1, SessionID: tc.id})
	go tc.readLoop()
	return nil
}

// Tick drains received frames into the dispatcher and reaps a server
// timeout.
func (c *TCPClient) Tick() {
	if c.conn == nil {
		return
	}
	now := time.Now()
	if c.timeout > 0 && now.Sub(c.lastRecv) > c.timeout {
		c.Node.PushEvent(Event{Kind: EvConnectionTimedOut, Slot: -1, SessionID: c.conn.id})
		c.conn.close()
		c.conn = nil
		return
	}

	select {
	case err := <-c.conn.errCh:
		_ = err
		c.Node.PushEvent(Event{Kind: EvDisconnected, Slot: -1, SessionID: c.conn.id})
		c.conn.close()
		c.conn = nil
		return
	default:
	}

	for {
		select {
		case b := <-c.conn.recvCh:
			c.lastRecv = now
			raw, err := maybeDecompress(b)
			if err != nil {
				nlog.Warningln("rigelnet: tcp client frame error:", err.Error())
				continue
			}
			p := pkt.NewFromBytes(raw)
			if err := DecodeAndDispatch(c.Node, p, RoleClient, -1, 0); err != nil {
				nlog.Warningln("rigelnet: tcp client dispatch error:", err.Error())
			}
		default:
			return
		}
	}
}

// Close tears down the client connection.
func (c *TCPClient) Close() {
	if c.conn != nil {
		c.conn.close()
		c.conn = nil
	}
}
