// Per-handler composer helpers for the built-in RPCs (§4.5: "Composer
// helpers are per-handler generated"). Hand-written here since the
// set is fixed and small; application-defined handlers write their
// own alongside ComposeRPC.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package rigelnet

import "github.com/hobgoblin-net/spempe/wire/pkt"

func ComposePingRequest() *pkt.Packet  { return ComposeRPC(HPing, ArgI8(0)) }
func ComposePingResponse() *pkt.Packet { return ComposeRPC(HPing, ArgI8(1)) }

func ComposeSetUpdateNumber(ordinal uint32) *pkt.Packet {
	return ComposeRPC(HSetUpdateNumber, ArgU32(ordinal))
}

func ComposeRegSetInt(key string, v int64) *pkt.Packet { return ComposeRPC(HRegSetInt, ArgString(key), ArgI64(v)) }
func ComposeRegSetDbl(key string, v float64) *pkt.Packet { return ComposeRPC(HRegSetDbl, ArgString(key), ArgF64(v)) }
func ComposeRegSetStr(key, v string) *pkt.Packet { return ComposeRPC(HRegSetStr, ArgString(key), ArgString(v)) }

func ComposeRegDelInt(key string) *pkt.Packet { return ComposeRPC(HRegDelInt, ArgString(key)) }
func ComposeRegDelDbl(key string) *pkt.Packet { return ComposeRPC(HRegDelDbl, ArgString(key)) }
func ComposeRegDelStr(key string) *pkt.Packet { return ComposeRPC(HRegDelStr, ArgString(key)) }

func ComposeReqRegSetInt(key string, v int64) *pkt.Packet { return ComposeRPC(HReqRegSetInt, ArgString(key), ArgI64(v)) }
func ComposeReqRegSetDbl(key string, v float64) *pkt.Packet { return ComposeRPC(HReqRegSetDbl, ArgString(key), ArgF64(v)) }
func ComposeReqRegSetStr(key, v string) *pkt.Packet { return ComposeRPC(HReqRegSetStr, ArgString(key), ArgString(v)) }

func ComposeReqRegDelInt(key string) *pkt.Packet { return ComposeRPC(HReqRegDelInt, ArgString(key)) }
func ComposeReqRegDelDbl(key string) *pkt.Packet { return ComposeRPC(HReqRegDelDbl, ArgString(key)) }
func ComposeReqRegDelStr(key string) *pkt.Packet { return ComposeRPC(HReqRegDelStr, ArgString(key)) }

func ComposeRegClearInt() *pkt.Packet { return ComposeRPC(HRegClearInt) }
func ComposeRegClearDbl() *pkt.Packet { return ComposeRPC(HRegClearDbl) }
func ComposeRegClearStr() *pkt.Packet { return ComposeRPC(HRegClearStr) }
func ComposeRegClearAll() *pkt.Packet { return ComposeRPC(HRegClearAll) }

func ComposeKickOrder() *pkt.Packet { return ComposeRPC(HKickOrder) }

func ComposeSetClientIndex(idx uint32) *pkt.Packet { return ComposeRPC(HSetClientIndex, ArgU32(idx)) }
