// Host ties a TCP server, a UDP server, and an optional loopback
// health/stats endpoint together behind one Start/Close pair, fanning
// their setup out through golang.org/x/sync's errgroup the way the
// teacher's node startup fans out multiple listeners.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package rigelnet

import (
	"context"
	"net"
	"syscall"
	"time"

	"github.com/hobgoblin-net/spempe/stats"
	"github.com/valyala/fasthttp"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
)

// Host is the server-side process: one Node, one TCP listener with N
// slots, one UDP listener, and an optional stats/health HTTP surface.
type Host struct {
	Node *Node
	TCP  *TCPServer
	UDP  *UDPServer

	healthSrv *fasthttp.Server
	healthLn  net.Listener
}

// reuseAddrControl sets SO_REUSEADDR on listening sockets so a
// restarted host can rebind immediately instead of waiting out
// TIME_WAIT, mirroring the teacher's socket-option tuning at listener
// setup.
func reuseAddrControl(_, _ string, c syscall.RawConn) error {
	return c.Control(func(fd uintptr) {
		_ = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
}

// NewHost allocates a server-side RigelNet process with n TCP slots.
func NewHost(node *Node, tcpSlots int, passphrase string, timeout time.Duration, interval int) *Host {
	return &Host{
		Node: node,
		TCP:  NewTCPServer(node, tcpSlots, passphrase, timeout, interval),
		UDP:  NewUDPServer(node, passphrase, timeout, interval),
	}
}

// Start brings up the TCP listener, UDP listener, and (if healthAddr
// is non-empty) the health/stats endpoint concurrently.
func (h *Host) Start(tcpAddr, udpAddr, healthAddr string) error {
	g, _ := errgroup.WithContext(context.Background())

	g.Go(func() error {
		lc := net.ListenConfig{Control: reuseAddrControl}
		ln, err := lc.Listen(context.Background(), "tcp", tcpAddr)
		if err != nil {
			return err
		}
		h.TCP.ln = ln
		go h.TCP.acceptLoop()
		return nil
	})

	g.Go(func() error { return h.UDP.Start(udpAddr) })

	if healthAddr != "" {
		g.Go(func() error { return h.startHealth(healthAddr) })
	}

	return g.Wait()
}

func (h *Host) startHealth(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	h.healthLn = ln
	h.healthSrv = &fasthttp.Server{Handler: h.handleHealth}
	go func() { _ = h.healthSrv.Serve(ln) }()
	return nil
}

func (h *Host) handleHealth(ctx *fasthttp.RequestCtx) {
	switch string(ctx.Path()) {
	case "/healthz":
		ctx.SetStatusCode(fasthttp.StatusOK)
		ctx.SetBodyString("ok")
	case "/stats":
		h.reportConnectedClients()
		stats.Default.Handler()(ctx)
	default:
		ctx.SetStatusCode(fasthttp.StatusNotFound)
	}
}

// reportConnectedClients refreshes the connected_clients gauge from
// the live TCP slot table and UDP session map just before /stats is
// scraped, the way coreStats.copyT samples its Tracker on read.
func (h *Host) reportConnectedClients() {
	h.TCP.mu.Lock()
	slots := 0
	for _, c := range h.TCP.slots {
		if c != nil {
			slots++
		}
	}
	h.TCP.mu.Unlock()
	h.UDP.mu.Lock()
	udpSessions := len(h.UDP.sessions)
	h.UDP.mu.Unlock()
	stats.SetConnectedClients(slots + udpSessions)
}

// Tick drives both servers' per-tick lifecycle once.
func (h *Host) Tick() {
	h.TCP.Tick()
	h.UDP.Tick()
}

// Close tears down every listener.
func (h *Host) Close() {
	if h.TCP.ln != nil {
		_ = h.TCP.ln.Close()
	}
	if h.UDP.conn != nil {
		_ = h.UDP.conn.Close()
	}
	if h.healthSrv != nil {
		_ = h.healthSrv.Shutdown()
	}
	if h.healthLn != nil {
		_ = h.healthLn.Close()
	}
	if h.Node.Registry != nil {
		_ = h.Node.Registry.Close()
	}
}
