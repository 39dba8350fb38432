// UDP session state machine (§4.4) and its server/client entry points
// (§6's wire grammar). Grounded in shape on transport/api.go's
// connector lifecycle, but the reliable/unreliable split and the ACK
// piggyback rule have no teacher analogue — they're built straight
// from the spec's own invariants.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package rigelnet

import (
	"net"
	"sync"
	"time"

	"github.com/hobgoblin-net/spempe/cmn/atomic"
	"github.com/hobgoblin-net/spempe/cmn/cos"
	"github.com/hobgoblin-net/spempe/cmn/nlog"
	"github.com/hobgoblin-net/spempe/stats"
	"github.com/hobgoblin-net/spempe/wire/pkt"
)

// UDPState is a connector's position in §4.4's state diagram.
type UDPState int

const (
	UDPIdle UDPState = iota
	UDPConnecting
	UDPAccepting
	UDPConnected
)

const (
	frHello      byte = 1
	frConnect    byte = 2
	frDisconnect byte = 3
	frData       byte = 4
	frUnsafeData byte = 5

	ackSentinel uint32 = 0xFFFFFFFF
)

// hAckOnly is an internal handler used purely as an UNSAFE_DATA
// carrier when a tick has pending ACKs but no application payload. It
// takes the last handler slot so the slots directly above
// ReservedHandlers stay free for application handlers.
const hAckOnly uint16 = MaxHandlers - 1

func init() { RegisterHandler(hAckOnly, func(*RecvContext) error { return nil }) }

const maxRetransmitPerTick = 16

// UDPSession drives one peer connection's state machine, reliable
// FIFO, and unreliable ACK piggyback. Role-agnostic: UDPServer and
// UDPClient each wire Xmit to the right destination.
type UDPSession struct {
	Node *Node
	Role Role

	id string // minted via cos.GenSessionID, carried on this session's events

	passphrase  string
	timeout     time.Duration
	helloPeriod int // ticks between HELLO/CONNECT resends

	// Xmit writes a raw datagram to this session's peer.
	Xmit func(b []byte) error

	mu            sync.Mutex
	state         UDPState
	tickCount     int
	lastRecv      time.Time
	latency       time.Duration
	gotUnsafe     bool
	lastUnsafe    uint32
	unsafeNextOrd atomic.Uint32

	send *reliableSend
	recv *reliableRecv
}

// NewUDPSession constructs a session in UDPIdle. interval is the
// transport tick interval (§4.4: handshake resends every
// interval*10 ticks).
func NewUDPSession(node *Node, role Role, passphrase string, timeout time.Duration, interval int) *UDPSession {
	if interval <= 0 {
		interval = 1
	}
	return &UDPSession{
		Node:        node,
		Role:        role,
		id:          cos.GenSessionID(),
		passphrase:  passphrase,
		timeout:     timeout,
		helloPeriod: interval * 10,
		send:        &reliableSend{},
		recv:        newReliableRecv(),
	}
}

func (s *UDPSession) State() UDPState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *UDPSession) setState(st UDPState) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Connect puts a client-role session into UDPConnecting; Tick will
// resend HELLO until CONNECTED or the attempt times out.
func (s *UDPSession) Connect() {
	s.mu.Lock()
	s.state = UDPConnecting
	s.lastRecv = time.Now()
	s.mu.Unlock()
}

// BeginAccept puts a server-role session into UDPAccepting on first
// sight of a new remote address.
func (s *UDPSession) BeginAccept() {
	s.mu.Lock()
	s.state = UDPAccepting
	s.lastRecv = time.Now()
	s.mu.Unlock()
}

func (s *UDPSession) helloFrame() *pkt.Packet {
	p := pkt.New()
	p.AppendI8(int8(frHello))
	p.AppendString(s.passphrase)
	return p
}

func (s *UDPSession) connectFrame() *pkt.Packet {
	p := pkt.New()
	p.AppendI8(int8(frConnect))
	p.AppendString(s.passphrase)
	return p
}

// Tick drives handshake resends, timeout detection, and reliable
// retransmission.
func (s *UDPSession) Tick() {
	now := time.Now()
	s.mu.Lock()
	s.tickCount++
	state := s.state
	due := s.tickCount%s.helloPeriod == 0
	timeout := s.timeout
	last := s.lastRecv
	s.mu.Unlock()

	if timeout > 0 && !last.IsZero() && now.Sub(last) > timeout {
		switch state {
		case UDPConnecting, UDPAccepting:
			s.Node.PushEvent(Event{Kind: EvConnectAttemptTimedOut, Ms: int(timeout.Milliseconds()), SessionID: s.id})
		case UDPConnected:
			s.Node.PushEvent(Event{Kind: EvConnectionTimedOut, Slot: -1, SessionID: s.id})
		}
		s.setState(UDPIdle)
		return
	}

	switch state {
	case UDPConnecting:
		if due {
			s.xmit(s.helloFrame())
		}
		return
	case UDPAccepting:
		if due {
			s.xmit(s.connectFrame())
		}
		return
	case UDPConnected:
		// fallthrough to reliable retransmit + ack flush below
	default:
		return
	}

	s.mu.Lock()
	lat := s.latency
	s.mu.Unlock()
	for _, f := range s.send.dueForRetransmit(now, lat, maxRetransmitPerTick) {
		p := pkt.New()
		p.AppendI8(int8(frData))
		p.AppendU32(f.ordinal)
		p.AppendBytes(f.payload)
		s.xmit(p)
		stats.Retransmit()
	}

	if acks := s.recv.drainAcks(); len(acks) > 0 {
		s.sendUnsafe(ComposeRPC(hAckOnly), acks)
	}
}

func (s *UDPSession) xmit(p *pkt.Packet) {
	if s.Xmit == nil {
		return
	}
	if err := s.Xmit(p.Bytes()); err != nil {
		nlog.Warningln("rigelnet: udp xmit error:", err.Error())
		return
	}
	stats.FrameSent()
}

// SendReliable enqueues body on the reliable FIFO and transmits it
// immediately (subsequent retransmission is driven by Tick).
func (s *UDPSession) SendReliable(body *pkt.Packet) {
	ord := s.send.enqueue(body.Bytes())
	p := pkt.New()
	p.AppendI8(int8(frData))
	p.AppendU32(ord)
	p.AppendBytes(body.Bytes())
	s.xmit(p)
}

// SendUnreliable transmits body on the unsafe channel, piggybacking
// any ACKs owed to the peer.
func (s *UDPSession) SendUnreliable(body *pkt.Packet) {
	s.sendUnsafe(body, s.recv.drainAcks())
}

func (s *UDPSession) sendUnsafe(body *pkt.Packet, acks []uint32) {
	ord := s.unsafeNextOrdinal()

	p := pkt.New()
	p.AppendI8(int8(frUnsafeData))
	p.AppendU32(ord)
	for _, a := range acks {
		p.AppendU32(a)
	}
	p.AppendU32(ackSentinel)
	p.AppendBytes(body.Bytes())
	s.xmit(p)
}

func (s *UDPSession) unsafeNextOrdinal() uint32 {
	return s.unsafeNextOrd.Add(1)
}

// HandleFrame decodes one raw datagram payload and advances the
// session's state machine / dispatches any deliverable RPC bodies.
func (s *UDPSession) HandleFrame(b []byte) {
	p := pkt.NewFromBytes(b)
	tag := byte(p.ExtractI8())
	if !p.IsValid() {
		return
	}

	switch tag {
	case frHello:
		s.handleHello(p)
	case frConnect:
		s.handleConnect(p)
	case frDisconnect:
		s.setState(UDPIdle)
		s.Node.PushEvent(Event{Kind: EvDisconnected, Slot: -1, SessionID: s.id})
	case frData:
		s.handleData(p)
	case frUnsafeData:
		s.handleUnsafeData(p)
	}
}

func (s *UDPSession) handleHello(p *pkt.Packet) {
	if s.Role != RoleServer {
		return
	}
	phrase := p.ExtractString()
	if phrase != s.passphrase {
		s.Node.PushEvent(Event{Kind: EvBadPassphrase, Slot: -1, Received: phrase})
		s.setState(UDPIdle)
		return
	}
	s.mu.Lock()
	s.lastRecv = time.Now()
	s.mu.Unlock()
}

func (s *UDPSession) handleConnect(p *pkt.Packet) {
	if s.Role != RoleClient || s.State() != UDPConnecting {
		return
	}
	phrase := p.ExtractString()
	if phrase != s.passphrase {
		s.Node.PushEvent(Event{Kind: EvBadPassphrase, Slot: -1, Received: phrase})
		s.setState(UDPIdle)
		return
	}
	s.setState(UDPConnected)
	s.mu.Lock()
	s.lastRecv = time.Now()
	s.mu.Unlock()
	s.Node.PushEvent(Event{Kind: EvConnected, Slot: -1, SessionID: s.id})
}

func (s *UDPSession) handleData(p *pkt.Packet) {
	ordinal := p.ExtractU32()
	if !p.IsValid() {
		return
	}
	if s.Role == RoleServer && s.State() == UDPAccepting {
		s.setState(UDPConnected)
		s.Node.PushEvent(Event{Kind: EvConnected, Slot: -1, SessionID: s.id})
	}
	s.mu.Lock()
	s.lastRecv = time.Now()
	lat := s.latency
	s.mu.Unlock()

	payload := p.ExtractBytes(p.Remaining())
	if payload == nil {
		return
	}
	cp := append([]byte(nil), payload...)
	delivered, _ := s.recv.accept(ordinal, cp)
	for _, body := range delivered {
		bp := pkt.NewFromBytes(body)
		if err := DecodeAndDispatch(s.Node, bp, s.Role, -1, lat); err != nil {
			nlog.Warningln("rigelnet: udp dispatch error:", err.Error())
		}
	}
}

func (s *UDPSession) handleUnsafeData(p *pkt.Packet) {
	ordinal := p.ExtractU32()
	if !p.IsValid() {
		return
	}
	var acks []uint32
	for {
		a := p.ExtractU32()
		if !p.IsValid() || a == ackSentinel {
			break
		}
		acks = append(acks, a)
	}
	for _, a := range acks {
		s.send.retire(a)
	}

	s.mu.Lock()
	stale := s.gotUnsafe && ordinal <= s.lastUnsafe
	if !stale {
		s.lastUnsafe = ordinal
		s.gotUnsafe = true
	}
	lat := s.latency
	s.mu.Unlock()
	if stale {
		return
	}

	s.mu.Lock()
	s.lastRecv = time.Now()
	s.mu.Unlock()

	payload := p.ExtractBytes(p.Remaining())
	if len(payload) == 0 {
		return
	}
	bp := pkt.NewFromBytes(payload)
	if err := DecodeAndDispatch(s.Node, bp, s.Role, -1, lat); err != nil {
		nlog.Warningln("rigelnet: udp dispatch error:", err.Error())
	}
}

// UDPServer fans incoming datagrams out to a per-remote-address
// UDPSession, creating one on the first datagram from a new address.
type UDPServer struct {
	Node       *Node
	conn       *net.UDPConn
	passphrase string
	timeout    time.Duration
	interval   int

	mu       sync.Mutex
	sessions map[string]*UDPSession
}

func NewUDPServer(node *Node, passphrase string, timeout time.Duration, interval int) *UDPServer {
	return &UDPServer{
		Node:       node,
		passphrase: passphrase,
		timeout:    timeout,
		interval:   interval,
		sessions:   make(map[string]*UDPSession),
	}
}

func (s *UDPServer) Start(addr string) error {
	laddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return err
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return err
	}
	s.conn = conn
	go s.readLoop()
	return nil
}

func (s *UDPServer) readLoop() {
	buf := make([]byte, 64*1024)
	for {
		n, addr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		b := append([]byte(nil), buf[:n]...)
		key := addr.String()

		s.mu.Lock()
		sess, ok := s.sessions[key]
		if !ok {
			sess = NewUDPSession(s.Node, RoleServer, s.passphrase, s.timeout, s.interval)
			remote := addr
			sess.Xmit = func(b []byte) error {
				_, err := s.conn.WriteToUDP(b, remote)
				return err
			}
			sess.BeginAccept()
			s.sessions[key] = sess
		}
		s.mu.Unlock()

		sess.HandleFrame(b)
	}
}

// Tick drives every live session once.
func (s *UDPServer) Tick() {
	s.mu.Lock()
	sessions := make([]*UDPSession, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()
	for _, sess := range sessions {
		sess.Tick()
	}
}

// UDPClient wraps a single outbound UDPSession.
type UDPClient struct {
	Node    *Node
	Session *UDPSession
	conn    *net.UDPConn
}

func NewUDPClient(node *Node, passphrase string, timeout time.Duration, interval int) *UDPClient {
	c := &UDPClient{Node: node}
	c.Session = NewUDPSession(node, RoleClient, passphrase, timeout, interval)
	return c
}

func (c *UDPClient) Connect(addr string) error {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return err
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return err
	}
	c.conn = conn
	c.Session.Xmit = func(b []byte) error {
		_, err := conn.Write(b)
		return err
	}
	c.Session.Connect()
	go c.readLoop()
	return nil
}

func (c *UDPClient) readLoop() {
	buf := make([]byte, 64*1024)
	for {
		n, err := c.conn.Read(buf)
		if err != nil {
			return
		}
		b := append([]byte(nil), buf[:n]...)
		c.Session.HandleFrame(b)
	}
}

func (c *UDPClient) Tick() { c.Session.Tick() }

func (c *UDPClient) Close() {
	if c.conn != nil {
		_ = c.conn.Close()
	}
}
