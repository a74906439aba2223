package reputation

// AccessPolicy describes the claim limits a unified score grants.
type AccessPolicy struct {
	Label         string `json:"label"`
	DailyJobLimit int    `json:"daily_job_limit"`
	PerShiftLimit int    `json:"per_shift_limit"`
	CanAcceptJobs bool   `json:"can_accept_jobs"`
	// Unlimited is true when no daily or per-shift cap applies.
	Unlimited bool `json:"unlimited"`
}

// Score bands for access levels. The bottom band is an effective ban.
const (
	unlimitedFloor  = 7.0
	highFloor       = 6.0
	standardFloor   = 4.0
	restrictedFloor = 3.1
)

// AccessLevel maps a unified score to the partner's claim limits. It is the
// single policy consulted by the claim coordinator before allowing a claim.
func AccessLevel(unifiedScore float64) AccessPolicy {
	switch {
	case unifiedScore >= unlimitedFloor:
		return AccessPolicy{
			Label:         "unlimited",
			CanAcceptJobs: true,
			Unlimited:     true,
		}
	case unifiedScore >= highFloor:
		return AccessPolicy{
			Label:         "high",
			DailyJobLimit: 6,
			PerShiftLimit: 1,
			CanAcceptJobs: true,
		}
	case unifiedScore >= standardFloor:
		return AccessPolicy{
			Label:         "standard",
			DailyJobLimit: 4,
			PerShiftLimit: 1,
			CanAcceptJobs: true,
		}
	case unifiedScore >= restrictedFloor:
		return AccessPolicy{
			Label:         "restricted",
			DailyJobLimit: 1,
			PerShiftLimit: 1,
			CanAcceptJobs: true,
		}
	default:
		return AccessPolicy{Label: "blocked"}
	}
}
