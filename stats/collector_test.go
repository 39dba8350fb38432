package stats_test

import (
	"strings"
	"testing"

	"github.com/hobgoblin-net/spempe/stats"
	"github.com/valyala/fasthttp"
)

func TestCollectorIncSetObserveAppearInExposition(t *testing.T) {
	c := stats.NewCollector("testns")
	c.Inc("ticks_run", 3)
	c.Set("deactivated_recipients", 2)
	c.Observe("tick_duration_seconds", 0.01)

	h := c.Handler()
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod("GET")
	ctx.Request.SetRequestURI("/stats")
	h(ctx)

	body := string(ctx.Response.Body())
	if !strings.Contains(body, "testns_ticks_run 3") {
		t.Fatalf("exposition missing ticks_run counter:\n%s", body)
	}
	if !strings.Contains(body, "testns_deactivated_recipients 2") {
		t.Fatalf("exposition missing deactivated_recipients gauge:\n%s", body)
	}
}

func TestCollectorIncUnknownMetricPanics(t *testing.T) {
	c := stats.NewCollector("testns2")
	defer func() {
		if recover() == nil {
			t.Fatalf("expected a panic incrementing an unregistered counter")
		}
	}()
	c.Inc("does_not_exist", 1)
}

func TestDefaultConvenienceFuncsDoNotPanic(t *testing.T) {
	stats.TickRun()
	stats.FrameSent()
	stats.FrameReceived()
	stats.Retransmit()
	stats.SyncWaveRun()
	stats.SetDeactivatedRecipients(0)
	stats.SetActiveObjects(5)
	stats.SetConnectedClients(1)
	stats.ObserveTickDuration(0.005)
}
