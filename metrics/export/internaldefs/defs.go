package internaldefs

import (
	tripAuth "github.com/MrEthical07/tripAuth"
)

// CounterDef describes one engine counter. Family and Outcome place it in
// a labelled family for exporters that publish one instrument per
// operation; an empty Family means the counter stands alone.
type CounterDef struct {
	ID      tripAuth.MetricID
	Name    string
	Help    string
	Family  string
	Outcome string
}

type HistogramDef struct {
	ID   tripAuth.MetricID
	Name string
	Help string
}

// Counter families.
const (
	LoginFamily        = "tripauth_login_total"
	RefreshFamily      = "tripauth_refresh_total"
	AuthenticateFamily = "tripauth_authenticate_total"
)

// FamilyHelp describes each counter family.
var FamilyHelp = map[string]string{
	LoginFamily:        "Password logins by outcome.",
	RefreshFamily:      "Access token refreshes by outcome.",
	AuthenticateFamily: "Request authentications by outcome.",
}

// OutcomeLabel is the attribute carrying a family member's outcome.
const OutcomeLabel = "outcome"

// CounterDefs lists every exported counter. Names are stable.
var CounterDefs = []CounterDef{
	{ID: tripAuth.MetricLoginSuccess, Name: "tripauth_login_success_total", Help: "Successful logins.", Family: LoginFamily, Outcome: "success"},
	{ID: tripAuth.MetricLoginFailure, Name: "tripauth_login_failure_total", Help: "Failed logins.", Family: LoginFamily, Outcome: "failure"},
	{ID: tripAuth.MetricLoginRateLimited, Name: "tripauth_login_rate_limited_total", Help: "Logins refused by the failed-login throttle.", Family: LoginFamily, Outcome: "rate_limited"},
	{ID: tripAuth.MetricRefreshSuccess, Name: "tripauth_refresh_success_total", Help: "Successful access token refreshes.", Family: RefreshFamily, Outcome: "success"},
	{ID: tripAuth.MetricRefreshFailure, Name: "tripauth_refresh_failure_total", Help: "Failed access token refreshes.", Family: RefreshFamily, Outcome: "failure"},
	{ID: tripAuth.MetricRefreshRenewed, Name: "tripauth_refresh_renewed_total", Help: "Refreshes that also reissued the refresh token."},
	{ID: tripAuth.MetricLogout, Name: "tripauth_logout_total", Help: "Logouts."},
	{ID: tripAuth.MetricFederatedLogin, Name: "tripauth_federated_login_total", Help: "Sessions issued through a federated provider."},
	{ID: tripAuth.MetricAuthSuccess, Name: "tripauth_auth_success_total", Help: "Requests authenticated.", Family: AuthenticateFamily, Outcome: "success"},
	{ID: tripAuth.MetricAuthRevoked, Name: "tripauth_auth_revoked_total", Help: "Requests rejected with a blacklisted token.", Family: AuthenticateFamily, Outcome: "revoked"},
	{ID: tripAuth.MetricAuthExpired, Name: "tripauth_auth_expired_total", Help: "Requests rejected with an expired token.", Family: AuthenticateFamily, Outcome: "expired"},
	{ID: tripAuth.MetricAuthMalformed, Name: "tripauth_auth_malformed_total", Help: "Requests rejected with a malformed token.", Family: AuthenticateFamily, Outcome: "malformed"},
	{ID: tripAuth.MetricAuthRegistryMismatch, Name: "tripauth_auth_registry_mismatch_total", Help: "Requests rejected with a superseded token.", Family: AuthenticateFamily, Outcome: "registry_mismatch"},
	{ID: tripAuth.MetricAuthUnverified, Name: "tripauth_auth_unverified_total", Help: "Requests rejected for an unverified account.", Family: AuthenticateFamily, Outcome: "unverified"},
	{ID: tripAuth.MetricAuthUnavailable, Name: "tripauth_auth_unavailable_total", Help: "Requests rejected because the token registry was unreachable.", Family: AuthenticateFamily, Outcome: "unavailable"},
	{ID: tripAuth.MetricDeletionGateBlocked, Name: "tripauth_deletion_gate_blocked_total", Help: "Requests blocked for a soft-deleted account."},
}

var HistogramDefs = []HistogramDef{
	{ID: tripAuth.MetricAuthenticateLatency, Name: "tripauth_authenticate_latency_seconds", Help: "Request authentication latency."},
}

// AuditDroppedName and AuditDroppedHelp describe the dispatcher drop
// counter, labelled by AuditEventLabel.
const (
	AuditDroppedName = "tripauth_audit_dropped_total"
	AuditDroppedHelp = "Audit events dropped due to dispatcher backpressure."
	AuditEventLabel  = "event"
)

// HistogramUpperBounds are the bucket bounds in seconds, without +Inf.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBucketLabels are the le values for the bounds plus +Inf.
var HistogramBucketLabels = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// NormalizeBuckets pads or truncates raw to the fixed bucket count.
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
