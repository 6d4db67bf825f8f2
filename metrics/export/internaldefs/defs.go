package internaldefs

import (
	"github.com/MrEthical07/accountflow"
)

// CounterDef names one engine counter for exporters.
type CounterDef struct {
	ID   accountflow.MetricID
	Name string
	Help string
}

// HistogramDef names one engine latency histogram for exporters.
type HistogramDef struct {
	ID   accountflow.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: accountflow.MetricAccountCreationSuccess, Name: "accountflow_account_creation_success_total", Help: "Accounts created with identity and profile."},
	{ID: accountflow.MetricAccountCreationFailure, Name: "accountflow_account_creation_failure_total", Help: "Account submissions that ended in failure."},
	{ID: accountflow.MetricAccountValidationRejected, Name: "accountflow_account_validation_rejected_total", Help: "Account forms rejected by validation."},
	{ID: accountflow.MetricIdentityCreationFailure, Name: "accountflow_identity_creation_failure_total", Help: "Identity creation failures."},
	{ID: accountflow.MetricProfileSaveFailure, Name: "accountflow_profile_save_failure_total", Help: "Profile save failures after identity creation."},
	{ID: accountflow.MetricOrphanedIdentity, Name: "accountflow_orphaned_identity_total", Help: "Identities created without a persisted profile."},
	{ID: accountflow.MetricSignInSuccess, Name: "accountflow_sign_in_success_total", Help: "Sign-ins that loaded the profile."},
	{ID: accountflow.MetricSignInFailure, Name: "accountflow_sign_in_failure_total", Help: "Sign-in submissions that ended in failure."},
	{ID: accountflow.MetricSignInValidationRejected, Name: "accountflow_sign_in_validation_rejected_total", Help: "Login forms rejected by validation."},
	{ID: accountflow.MetricAuthFailure, Name: "accountflow_auth_failure_total", Help: "Authentication failures."},
	{ID: accountflow.MetricProfileFetchFailure, Name: "accountflow_profile_fetch_failure_total", Help: "Profile fetch failures."},
	{ID: accountflow.MetricDegradedSession, Name: "accountflow_degraded_session_total", Help: "Sessions established without a loaded profile."},
	{ID: accountflow.MetricProfileFetchSuccess, Name: "accountflow_profile_fetch_success_total", Help: "Standalone profile fetches that succeeded."},
	{ID: accountflow.MetricSignOut, Name: "accountflow_sign_out_total", Help: "Successful sign-outs."},
	{ID: accountflow.MetricSubmissionInFlightRejected, Name: "accountflow_submission_in_flight_rejected_total", Help: "Submissions rejected while another was in flight."},
	{ID: accountflow.MetricSubmissionRateLimited, Name: "accountflow_submission_rate_limited_total", Help: "Submissions rejected by the rate limiter."},
}

var HistogramDefs = []HistogramDef{
	{ID: accountflow.MetricAccountCreationLatency, Name: "accountflow_account_creation_latency_seconds", Help: "Account creation submission latency."},
	{ID: accountflow.MetricSignInLatency, Name: "accountflow_sign_in_latency_seconds", Help: "Sign-in submission latency."},
}

// EventsDroppedName is the counter of outputs not relayed to the sink.
const (
	EventsDroppedName = "accountflow_events_dropped_total"
	EventsDroppedHelp = "Outputs not relayed to the output sink."
)

// HistogramBounds are the upper bounds in seconds of the first seven engine
// buckets. The eighth bucket is +Inf.
var HistogramBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

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

// NormalizeBuckets copies raw into a fixed eight-bucket array, zero-filling
// missing buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
