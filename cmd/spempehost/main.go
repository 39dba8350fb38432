// Command spempehost is the generic authoritative-server/client host
// process: it wires the active object runtime, the sync registry, and
// RigelNet together and drives the §4.9 accumulator loop. It carries
// no game-specific master/dummy types of its own — those are
// registered by an embedding application via
// (*rsync.Registry).RegisterDummyFactory and runtime.AddObject.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hobgoblin-net/spempe/cmn/config"
	"github.com/hobgoblin-net/spempe/cmn/mono"
	"github.com/hobgoblin-net/spempe/cmn/nlog"
	"github.com/hobgoblin-net/spempe/hk"
	"github.com/hobgoblin-net/spempe/qao"
	"github.com/hobgoblin-net/spempe/rigelnet"
	"github.com/hobgoblin-net/spempe/rsync"
	"github.com/hobgoblin-net/spempe/stats"
)

func main() {
	var (
		role       = flag.String("role", "server", "server or client")
		tcpAddr    = flag.String("tcp-addr", ":7000", "server role: TCP listen address")
		udpAddr    = flag.String("udp-addr", ":7001", "server role: UDP listen address")
		healthAddr = flag.String("health-addr", ":8080", "server role: loopback health/stats address; empty disables it")
		tcpSlots   = flag.Int("tcp-slots", 64, "server role: max concurrent TCP connections")
		connectTCP = flag.String("connect-tcp", "127.0.0.1:7000", "client role: server TCP address to dial")
		connectUDP = flag.String("connect-udp", "127.0.0.1:7001", "client role: server UDP address to dial")
		configPath = flag.String("config", "", "path to a JSON config file; built-in defaults otherwise")
		logDir     = flag.String("log-dir", "", "log directory; empty logs to stderr")
	)
	nlog.InitFlags(flag.CommandLine)
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			nlog.Errorf("spempehost: %s", err.Error())
			os.Exit(1)
		}
		cfg = loaded
	}
	config.GCO.Set(cfg)

	nlog.SetLogDirRole(*logDir, *role)
	nlog.SetTitle("spempehost")

	stop := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		close(stop)
	}()

	hk.Reg("nlog-flush", func() time.Duration {
		nlog.Flush()
		return time.Minute
	}, time.Minute)
	go hk.DefaultHK.Run()

	runtime := qao.New()

	var pump func()
	var teardown func()
	switch *role {
	case "server":
		pump, teardown = runServer(runtime, cfg, *tcpAddr, *udpAddr, *healthAddr, *tcpSlots)
	case "client":
		pump, teardown = runClient(runtime, cfg, *connectTCP, *connectUDP)
	default:
		nlog.Errorf("spempehost: unknown -role %q, want server or client", *role)
		os.Exit(1)
	}

	driveAccumulator(runtime, cfg, stop, pump)

	runtime.DestroyAllOwned()
	teardown()
	nlog.Flush(true)
}

// runServer brings up a rigelnet.Host, a master-side sync registry
// whose waves fan out through it, and the pacemaker that pulses
// RunWaves every POST_UPDATE. The returned pump drains the node's
// connect/disconnect events onto the registry (§4.7's Connect/
// Disconnect contract) ahead of each host iteration's phases; the
// listeners' own accept/read loops run on background goroutines and
// only enqueue events and frames for pump/DecodeAndDispatch to drain.
func runServer(runtime *qao.Runtime, cfg *config.Config, tcpAddr, udpAddr, healthAddr string, tcpSlots int) (pump func(), teardown func()) {
	node := rigelnet.NewNode()
	nlog.Infof("spempehost: server node id %s", node.ID)

	replicated, err := rigelnet.NewRegistry()
	if err != nil {
		nlog.Errorf("spempehost: replicated registry: %s", err.Error())
		os.Exit(1)
	}
	node.Registry = replicated

	syncReg := rsync.NewRegistry(&rsync.NodeComposer{Node: node})

	timeout := time.Duration(cfg.Transport.TimeoutMs) * time.Millisecond
	host := rigelnet.NewHost(node, tcpSlots, cfg.Transport.Passphrase, timeout, cfg.Transport.Interval)
	if err := host.Start(tcpAddr, udpAddr, healthAddr); err != nil {
		nlog.Errorf("spempehost: host start: %s", err.Error())
		os.Exit(1)
	}

	pacemaker := rsync.NewMasterPacemaker("sync-master", syncReg)
	runtime.AddObject(pacemaker, 0, true)

	pump = func() {
		host.Tick()
		for _, e := range node.PollEvents() {
			switch e.Kind {
			case rigelnet.EvConnected:
				syncReg.Connect(rsync.RecipientID(e.Slot))
			case rigelnet.EvDisconnected, rigelnet.EvConnectionTimedOut, rigelnet.EvKicked:
				syncReg.Disconnect(rsync.RecipientID(e.Slot))
			default:
				nlog.Infof("spempehost: %s", e.String())
			}
		}
	}
	teardown = host.Close
	return pump, teardown
}

// runClient dials a server over TCP and UDP, registers the built-in
// sync RPC handlers on the dummy side, and drives a dummy pacemaker
// from the update ordinal the server pushes via setUpdateNumber.
func runClient(runtime *qao.Runtime, cfg *config.Config, connectTCP, connectUDP string) (pump func(), teardown func()) {
	node := rigelnet.NewNode()
	nlog.Infof("spempehost: client node id %s", node.ID)

	syncReg := rsync.NewRegistry(nil)
	rsync.RegisterDummyHandlers(syncReg, cfg.Tick.Duration)

	var lastOrdinal uint32
	node.OnSetUpdateNumber = func(_ int, ordinal uint32) { lastOrdinal = ordinal }
	node.OnKicked = func() { nlog.Warningln("spempehost: kicked by server") }

	timeout := time.Duration(cfg.Transport.TimeoutMs) * time.Millisecond
	tcpClient := rigelnet.NewTCPClient(node, cfg.Transport.Passphrase, timeout)
	if err := tcpClient.Connect(connectTCP); err != nil {
		nlog.Errorf("spempehost: tcp connect: %s", err.Error())
		os.Exit(1)
	}

	udpClient := rigelnet.NewUDPClient(node, cfg.Transport.Passphrase, timeout, cfg.Transport.Interval)
	if err := udpClient.Connect(connectUDP); err != nil {
		nlog.Errorf("spempehost: udp connect: %s", err.Error())
		os.Exit(1)
	}

	pacemaker := rsync.NewDummyPacemaker("sync-dummy", syncReg, func() uint32 { return lastOrdinal })
	runtime.AddObject(pacemaker, 0, true)

	pump = func() {
		tcpClient.Tick()
		udpClient.Tick()
		for _, e := range node.PollEvents() {
			nlog.Infof("spempehost: %s", e.String())
		}
	}
	teardown = func() {
		tcpClient.Close()
		udpClient.Close()
	}
	return pump, teardown
}

// driveAccumulator implements §4.9: a fixed tick duration with a
// catch-up accumulator capped at MaxConsecutiveUpdates, one draw step
// only if at least one update ran, and DISPLAY run unconditionally
// every host iteration. pump drains transport I/O and node events
// once per host iteration, ahead of the catch-up loop, so frames that
// arrived since the last iteration are visible to this iteration's
// update phases.
//
// Each catch-up tick gets its own StartStep, so every tick runs the
// full non-draw phase group from START_FRAME through POST_UPDATE. The
// last tick's leftover cursor — sitting right after POST_UPDATE, at
// PRE_DRAW — is reused for the draw and display phases rather than
// starting a fresh step, so a step that already ran update phases
// isn't reset before its draw/display phases get a chance to run.
func driveAccumulator(runtime *qao.Runtime, cfg *config.Config, stop chan struct{}, pump func()) {
	tickDuration := cfg.Tick.Duration
	if tickDuration <= 0 {
		tickDuration = 16 * time.Millisecond
	}
	maxConsecutive := cfg.Tick.MaxConsecutiveUpdates
	if maxConsecutive <= 0 {
		maxConsecutive = 1
	}

	var accumulator time.Duration
	lastNano := mono.NanoTime()

	for {
		select {
		case <-stop:
			return
		default:
		}

		iterStartNano := mono.NanoTime()
		elapsed := time.Duration(iterStartNano - lastNano)
		lastNano = iterStartNano
		accumulator += elapsed

		pump()

		ticksRun := 0
		for accumulator >= tickDuration && ticksRun < maxConsecutive {
			runtime.StartStep()
			drainPhases(runtime, qao.MaskUpdate)
			accumulator -= tickDuration
			ticksRun++
			stats.TickRun()
		}

		if ticksRun > 0 {
			drainPhases(runtime, qao.MaskDraw)
		} else {
			runtime.StartStep()
		}
		drainPhases(runtime, qao.MaskDisplay)

		stats.ObserveTickDuration(time.Duration(mono.NanoTime() - iterStartNano).Seconds())

		if cfg.Tick.PreciseTiming {
			remaining := tickDuration - accumulator
			if remaining > 0 {
				time.Sleep(remaining)
			}
		} else {
			time.Sleep(time.Millisecond)
		}
	}
}

func drainPhases(runtime *qao.Runtime, mask qao.EventMask) {
	for {
		done, err := runtime.AdvanceStep(mask)
		if err != nil {
			nlog.Warningln("spempehost: phase error:", err.Error())
		}
		if done {
			return
		}
	}
}
