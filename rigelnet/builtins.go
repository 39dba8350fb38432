// Built-in handlers, indices 0–19 (§6's table). Registered at package
// init so the stable indices are always occupied before any
// application registers its own handlers above ReservedHandlers.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package rigelnet

const (
	HPing            uint16 = 0
	HSetUpdateNumber uint16 = 1
	HRegSetInt       uint16 = 2
	HRegSetDbl       uint16 = 3
	HRegSetStr       uint16 = 4
	HRegDelInt       uint16 = 5
	HRegDelDbl       uint16 = 6
	HRegDelStr       uint16 = 7
	HReqRegSetInt    uint16 = 8
	HReqRegSetDbl    uint16 = 9
	HReqRegSetStr    uint16 = 10
	HReqRegDelInt    uint16 = 11
	HReqRegDelDbl    uint16 = 12
	HReqRegDelStr    uint16 = 13
	HRegClearInt     uint16 = 14
	HRegClearDbl     uint16 = 15
	HRegClearStr     uint16 = 16
	HRegClearAll     uint16 = 17
	HKickOrder       uint16 = 18
	HSetClientIndex  uint16 = 19
)

func init() {
	RegisterHandler(HPing, hPing)
	RegisterHandler(HSetUpdateNumber, hSetUpdateNumber)
	RegisterHandler(HRegSetInt, hRegSetInt)
	RegisterHandler(HRegSetDbl, hRegSetDbl)
	RegisterHandler(HRegSetStr, hRegSetStr)
	RegisterHandler(HRegDelInt, hRegDelInt)
	RegisterHandler(HRegDelDbl, hRegDelDbl)
	RegisterHandler(HRegDelStr, hRegDelStr)
	RegisterHandler(HReqRegSetInt, hReqRegSetInt)
	RegisterHandler(HReqRegSetDbl, hReqRegSetDbl)
	RegisterHandler(HReqRegSetStr, hReqRegSetStr)
	RegisterHandler(HReqRegDelInt, hReqRegDelInt)
	RegisterHandler(HReqRegDelDbl, hReqRegDelDbl)
	RegisterHandler(HReqRegDelStr, hReqRegDelStr)
	RegisterHandler(HRegClearInt, hRegClearInt)
	RegisterHandler(HRegClearDbl, hRegClearDbl)
	RegisterHandler(HRegClearStr, hRegClearStr)
	RegisterHandler(HRegClearAll, hRegClearAll)
	RegisterHandler(HKickOrder, hKickOrder)
	RegisterHandler(HSetClientIndex, hSetClientIndex)
}

func hPing(ctx *RecvContext) error {
	stage, err := ctx.ArgI8(0)
	if err != nil {
		return err
	}
	if stage == 0 {
		return ctx.Reply(HPing, ArgI8(1))
	}
	return nil
}

func hSetUpdateNumber(ctx *RecvContext) error {
	ord, err := ctx.ArgU32(0)
	if err != nil {
		return err
	}
	if ctx.Node.OnSetUpdateNumber != nil {
		ctx.Node.OnSetUpdateNumber(ctx.Sender, ord)
	}
	return nil
}

func hRegSetInt(ctx *RecvContext) error {
	key, err := ctx.ArgString(0)
	if err != nil {
		return err
	}
	v, err := ctx.ArgI64(1)
	if err != nil {
		return err
	}
	if ctx.Node.Registry != nil {
		ctx.Node.Registry.SetInt(key, v)
	}
	notifyRegistryChanged(ctx, "setInt", key)
	return nil
}

func hRegSetDbl(ctx *RecvContext) error {
	key, err := ctx.ArgString(0)
	if err != nil {
		return err
	}
	v, err := ctx.ArgF64(1)
	if err != nil {
		return err
	}
	if ctx.Node.Registry != nil {
		ctx.Node.Registry.SetDbl(key, v)
	}
	notifyRegistryChanged(ctx, "setDbl", key)
	return nil
}

func hRegSetStr(ctx *RecvContext) error {
	key, err := ctx.ArgString(0)
	if err != nil {
		return err
	}
	v, err := ctx.ArgString(1)
	if err != nil {
		return err
	}
	if ctx.Node.Registry != nil {
		ctx.Node.Registry.SetStr(key, v)
	}
	notifyRegistryChanged(ctx, "setStr", key)
	return nil
}

func hRegDelInt(ctx *RecvContext) error { return regDel(ctx, func(k string) { ctx.Node.Registry.DelInt(k) }, "delInt") }
func hRegDelDbl(ctx *RecvContext) error { return regDel(ctx, func(k string) { ctx.Node.Registry.DelDbl(k) }, "delDbl") }
func hRegDelStr(ctx *RecvContext) error { return regDel(ctx, func(k string) { ctx.Node.Registry.DelStr(k) }, "delStr") }

func regDel(ctx *RecvContext, del func(string), kind string) error {
	key, err := ctx.ArgString(0)
	if err != nil {
		return err
	}
	if ctx.Node.Registry != nil {
		del(key)
	}
	notifyRegistryChanged(ctx, kind, key)
	return nil
}

func checkClientWritePermission(ctx *RecvContext, key string) bool {
	reg := ctx.Node.Registry
	if reg == nil || reg.AllowClientWrite == nil {
		return true
	}
	allowed := reg.AllowClientWrite(ctx.Sender, key)
	if !allowed {
		ctx.Node.PushEvent(Event{Kind: EvIllegalRegistryRequest, Slot: ctx.Sender, Key: key})
	}
	return allowed
}

func hReqRegSetInt(ctx *RecvContext) error {
	key, err := ctx.ArgString(0)
	if err != nil {
		return err
	}
	v, err := ctx.ArgI64(1)
	if err != nil {
		return err
	}
	if !checkClientWritePermission(ctx, key) {
		return nil
	}
	if ctx.Node.Registry != nil {
		ctx.Node.Registry.SetInt(key, v)
	}
	notifyRegistryChanged(ctx, "reqSetInt", key)
	return nil
}

func hReqRegSetDbl(ctx *RecvContext) error {
	key, err := ctx.ArgString(0)
	if err != nil {
		return err
	}
	v, err := ctx.ArgF64(1)
	if err != nil {
		return err
	}
	if !checkClientWritePermission(ctx, key) {
		return nil
	}
	if ctx.Node.Registry != nil {
		ctx.Node.Registry.SetDbl(key, v)
	}
	notifyRegistryChanged(ctx, "reqSetDbl", key)
	return nil
}

func hReqRegSetStr(ctx *RecvContext) error {
	key, err := ctx.ArgString(0)
	if err != nil {
		return err
	}
	v, err := ctx.ArgString(1)
	if err != nil {
		return err
	}
	if !checkClientWritePermission(ctx, key) {
		return nil
	}
	if ctx.Node.Registry != nil {
		ctx.Node.Registry.SetStr(key, v)
	}
	notifyRegistryChanged(ctx, "reqSetStr", key)
	return nil
}

func hReqRegDelInt(ctx *RecvContext) error { return reqRegDel(ctx, func(k string) { ctx.Node.Registry.DelInt(k) }, "reqDelInt") }
func hReqRegDelDbl(ctx *RecvContext) error { return reqRegDel(ctx, func(k string) { ctx.Node.Registry.DelDbl(k) }, "reqDelDbl") }
func hReqRegDelStr(ctx *RecvContext) error { return reqRegDel(ctx, func(k string) { ctx.Node.Registry.DelStr(k) }, "reqDelStr") }

func reqRegDel(ctx *RecvContext, del func(string), kind string) error {
	key, err := ctx.ArgString(0)
	if err != nil {
		return err
	}
	if !checkClientWritePermission(ctx, key) {
		return nil
	}
	if ctx.Node.Registry != nil {
		del(key)
	}
	notifyRegistryChanged(ctx, kind, key)
	return nil
}

func hRegClearInt(ctx *RecvContext) error { return regClear(ctx, func() { ctx.Node.Registry.ClearInt() }, "clearInt") }
func hRegClearDbl(ctx *RecvContext) error { return regClear(ctx, func() { ctx.Node.Registry.ClearDbl() }, "clearDbl") }
func hRegClearStr(ctx *RecvContext) error { return regClear(ctx, func() { ctx.Node.Registry.ClearStr() }, "clearStr") }
func hRegClearAll(ctx *RecvContext) error { return regClear(ctx, func() { ctx.Node.Registry.ClearAll() }, "clearAll") }

func regClear(ctx *RecvContext, clear func(), kind string) error {
	if ctx.Node.Registry != nil {
		clear()
	}
	notifyRegistryChanged(ctx, kind, "")
	return nil
}

func notifyRegistryChanged(ctx *RecvContext, kind, key string) {
	if ctx.Node.OnRegistryChanged != nil {
		ctx.Node.OnRegistryChanged(kind, key)
	}
}

func hKickOrder(ctx *RecvContext) error {
	ctx.Node.PushEvent(Event{Kind: EvKicked, Slot: -1})
	if ctx.Node.OnKicked != nil {
		ctx.Node.OnKicked()
	}
	return nil
}

func hSetClientIndex(ctx *RecvContext) error {
	idx, err := ctx.ArgU32(0)
	if err != nil {
		return err
	}
	if ctx.Node.OnSetClientIndex != nil {
		ctx.Node.OnSetClientIndex(idx)
	}
	return nil
}
