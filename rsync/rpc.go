// Wires the sync registry's create/update/destroy/deactivate/
// reactivate waves onto rigelnet's RPC dispatcher (§4.5, §6): five
// handler slots above rigelnet.ReservedHandlers, and a Composer
// implementation that routes a master's wave output through a
// rigelnet.Node's per-recipient Send.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package rsync

import (
	"time"

	"github.com/hobgoblin-net/spempe/rigelnet"
	"github.com/hobgoblin-net/spempe/wire/pkt"
)

// Handler indices for the five sync RPCs, occupying the slots
// directly above rigelnet's built-ins.
const (
	HCreate uint16 = rigelnet.ReservedHandlers + iota
	HUpdate
	HDestroy
	HDeactivate
	HReactivate
)

// NodeComposer adapts a rigelnet.Node into the registry's Composer
// capability (§9's cyclic-relationship break): the registry only ever
// asks it to route a composed RPC to one recipient.
type NodeComposer struct {
	Node *rigelnet.Node
}

func (c *NodeComposer) SendCreate(r RecipientID, id SyncID, typeName string, full *pkt.Packet) error {
	return c.Node.Send(int(r), rigelnet.ComposeRPC(HCreate,
		rigelnet.ArgU64(uint64(id)), rigelnet.ArgString(typeName), rigelnet.ArgPacket(full)))
}

func (c *NodeComposer) SendUpdate(r RecipientID, id SyncID, body *pkt.Packet) error {
	return c.Node.Send(int(r), rigelnet.ComposeRPC(HUpdate,
		rigelnet.ArgU64(uint64(id)), rigelnet.ArgPacket(body)))
}

func (c *NodeComposer) SendDestroy(r RecipientID, id SyncID) error {
	return c.Node.Send(int(r), rigelnet.ComposeRPC(HDestroy, rigelnet.ArgU64(uint64(id))))
}

func (c *NodeComposer) SendDeactivate(r RecipientID, id SyncID) error {
	return c.Node.Send(int(r), rigelnet.ComposeRPC(HDeactivate, rigelnet.ArgU64(uint64(id))))
}

func (c *NodeComposer) SendReactivate(r RecipientID, id SyncID, full *pkt.Packet) error {
	return c.Node.Send(int(r), rigelnet.ComposeRPC(HReactivate,
		rigelnet.ArgU64(uint64(id)), rigelnet.ArgPacket(full)))
}

// RegisterDummyHandlers installs the five handlers on the process-
// wide rigelnet handler table, decoding each RPC and dispatching into
// reg's dummy-side bookkeeping. tickDuration converts a handler's
// measured pessimistic Latency into a whole number of ticks for the
// state scheduler's delay argument. Call once at startup on any
// process that plays the client/dummy role (§9: "populated before any
// node is constructed").
func RegisterDummyHandlers(reg *Registry, tickDuration time.Duration) {
	rigelnet.RegisterHandler(HCreate, func(ctx *rigelnet.RecvContext) error {
		id, err := ctx.ArgU64(0)
		if err != nil {
			return err
		}
		typeName, err := ctx.ArgString(1)
		if err != nil {
			return err
		}
		full, err := ctx.ArgPacket(2)
		if err != nil {
			return err
		}
		_, err = reg.HandleCreate(SyncID(id), typeName, full)
		return err
	})

	rigelnet.RegisterHandler(HUpdate, func(ctx *rigelnet.RecvContext) error {
		id, err := ctx.ArgU64(0)
		if err != nil {
			return err
		}
		body, err := ctx.ArgPacket(1)
		if err != nil {
			return err
		}
		delayTicks := latencyToTicks(ctx.Latency, tickDuration)
		return reg.HandleUpdate(SyncID(id), body, delayTicks)
	})

	rigelnet.RegisterHandler(HDestroy, func(ctx *rigelnet.RecvContext) error {
		id, err := ctx.ArgU64(0)
		if err != nil {
			return err
		}
		reg.HandleDestroy(SyncID(id), reg.CurrentOrdinal())
		return nil
	})

	rigelnet.RegisterHandler(HDeactivate, func(ctx *rigelnet.RecvContext) error {
		id, err := ctx.ArgU64(0)
		if err != nil {
			return err
		}
		reg.HandleDeactivate(SyncID(id))
		return nil
	})

	rigelnet.RegisterHandler(HReactivate, func(ctx *rigelnet.RecvContext) error {
		id, err := ctx.ArgU64(0)
		if err != nil {
			return err
		}
		full, err := ctx.ArgPacket(1)
		if err != nil {
			return err
		}
		return reg.HandleReactivate(SyncID(id), full)
	})
}

// latencyToTicks converts a measured pessimistic latency into a
// whole number of ticks, rounding up so the buffer errs on the side
// of hiding jitter rather than under-delaying it.
func latencyToTicks(latency, tickDuration time.Duration) int {
	if tickDuration <= 0 || latency <= 0 {
		return 0
	}
	ticks := int((latency + tickDuration - 1) / tickDuration)
	return ticks
}
