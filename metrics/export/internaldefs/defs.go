package internaldefs

import (
	costscope "github.com/costscope/costscope-go"
)

// CounterDef pairs a counter ID with its stable exposition name.
type CounterDef struct {
	ID   costscope.MetricID
	Name string
	Help string
}

// HistogramDef pairs a histogram ID with its stable exposition name.
type HistogramDef struct {
	ID   costscope.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter. Order is the exposition order.
var CounterDefs = []CounterDef{
	{ID: costscope.MetricLoginSuccess, Name: "costscope_login_success_total", Help: "Successful logins."},
	{ID: costscope.MetricLoginFailure, Name: "costscope_login_failure_total", Help: "Rejected logins."},
	{ID: costscope.MetricRegisterSuccess, Name: "costscope_register_success_total", Help: "Registrations that issued credentials."},
	{ID: costscope.MetricRegisterPending, Name: "costscope_register_pending_total", Help: "Registrations held for tenant approval."},
	{ID: costscope.MetricRegisterFailure, Name: "costscope_register_failure_total", Help: "Rejected registrations."},
	{ID: costscope.MetricLogout, Name: "costscope_logout_total", Help: "Logout operations."},
	{ID: costscope.MetricRenewSuccess, Name: "costscope_renew_success_total", Help: "Renewals that produced a fresh credential pair."},
	{ID: costscope.MetricRenewAttached, Name: "costscope_renew_attached_total", Help: "Renewal callers that joined an exchange already in flight."},
	{ID: costscope.MetricRenewRejected, Name: "costscope_renew_rejected_total", Help: "Terminal renewal failures."},
	{ID: costscope.MetricRenewTransient, Name: "costscope_renew_transient_total", Help: "Retryable renewal failures."},
	{ID: costscope.MetricRenewShortCircuit, Name: "costscope_renew_short_circuit_total", Help: "Renewals refused without a network call."},
	{ID: costscope.MetricSessionRestored, Name: "costscope_session_restored_total", Help: "Successful startup session rehydrations."},
	{ID: costscope.MetricSessionRestoreCorrupt, Name: "costscope_session_restore_corrupt_total", Help: "Persisted session records discarded as unreadable."},
	{ID: costscope.MetricMirrorDropped, Name: "costscope_mirror_dropped_total", Help: "Session snapshots the persistence mirror discarded under backpressure."},
	{ID: costscope.MetricExpiryNotified, Name: "costscope_expiry_notified_total", Help: "Session-expired episodes that fired the listeners."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: costscope.MetricRenewLatency, Name: "costscope_renew_latency_seconds", Help: "Renewal exchange latency histogram."},
}

// HistogramBounds are the upper bucket bounds in seconds, as exposition
// label values.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix mirrors HistogramBounds with characters legal in
// instrument names.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates a raw bucket slice to the fixed width.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into the cumulative form both
// exposition formats expect.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
