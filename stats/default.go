package stats

// Default is the process-wide Collector every package in this module
// reports against, mirroring cmn/config's GCO singleton pattern: one
// shared instance, installed once at startup, read without locking
// since prometheus metrics are themselves concurrency-safe.
var Default = NewCollector("spempe")

func TickRun()             { Default.Inc("ticks_run", 1) }
func FrameSent()           { Default.Inc("frames_sent", 1) }
func FrameReceived()       { Default.Inc("frames_received", 1) }
func Retransmit()          { Default.Inc("retransmits", 1) }
func SyncWaveRun()         { Default.Inc("sync_waves_run", 1) }
func SetDeactivatedRecipients(n int) { Default.Set("deactivated_recipients", float64(n)) }
func SetActiveObjects(n int)         { Default.Set("active_objects", float64(n)) }
func SetConnectedClients(n int)      { Default.Set("connected_clients", float64(n)) }
func ObserveTickDuration(seconds float64) { Default.Observe("tick_duration_seconds", seconds) }
