package access

import "time"

// DecayPolicy holds the parameters the maintain prompt supplies to
// EffectiveConfidence (§4.7, §9 "decay is policy, not mechanism").
type DecayPolicy struct {
	// DecayDays is the number of days over which confidence decays to
	// MinFloor in the absence of further access.
	DecayDays float64
	// MinFloor is the minimum multiplier effective confidence can reach,
	// regardless of how stale the memory is.
	MinFloor float64
	// GraceDays protects a recently-accessed memory from archival
	// regardless of its decayed confidence.
	GraceDays float64
}

// EffectiveConfidence computes the decayed confidence of a memory given its
// stored confidence, days since it was last accessed (or created, if never
// accessed), and a DecayPolicy. It is monotone non-increasing in
// daysSinceLastAccess and clamped to [policy.MinFloor*confidence, confidence].
//
// Callers must apply the grace-period exemption separately: a memory with
// daysSinceLastAccess <= policy.GraceDays must not be archived regardless of
// the value this function returns.
func EffectiveConfidence(confidence float64, daysSinceLastAccess float64, policy DecayPolicy) float64 {
	if daysSinceLastAccess < 0 {
		daysSinceLastAccess = 0
	}
	decayed := 1 - daysSinceLastAccess/policy.DecayDays
	multiplier := policy.MinFloor
	if decayed > multiplier {
		multiplier = decayed
	}
	return confidence * multiplier
}

// WithinGracePeriod reports whether a memory last accessed daysSinceLastAccess
// days ago is still protected from archival under policy.
func WithinGracePeriod(daysSinceLastAccess float64, policy DecayPolicy) bool {
	return daysSinceLastAccess <= policy.GraceDays
}

// DaysSince returns the number of whole-or-fractional days between t and
// now, for feeding EffectiveConfidence from a Record's LastAccessed or
// CreatedAt field.
func DaysSince(t time.Time, now time.Time) float64 {
	return now.Sub(t).Hours() / 24
}
