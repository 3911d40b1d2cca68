// Package entitlement describes the outcome of checking a usage count
// against a plan limit.
package entitlement

// Unlimited marks a limit that never blocks.
const Unlimited int64 = -1

type Result struct {
	Allowed   bool   `json:"allowed"`
	Feature   string `json:"feature"`
	Used      int64  `json:"used"`
	Limit     int64  `json:"limit"`
	Remaining int64  `json:"remaining"`
	Reason    string `json:"reason,omitempty"`
}

// Check builds a Result for a feature whose current usage is used. A count
// equal to the limit is already over it: the next insertion would exceed.
func Check(feature string, used, limit int64) Result {
	r := Result{Feature: feature, Used: used, Limit: limit}
	switch {
	case limit == Unlimited:
		r.Allowed = true
		r.Remaining = Unlimited
	case used < limit:
		r.Allowed = true
		r.Remaining = limit - used
	default:
		r.Reason = "limit reached"
	}
	return r
}

// Denied returns a Result that refuses access to a feature the plan lacks.
func Denied(feature, reason string) Result {
	return Result{Feature: feature, Reason: reason}
}
