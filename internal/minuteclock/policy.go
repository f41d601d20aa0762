package minuteclock

import (
	"fmt"
	"strings"
)

type DriftPolicy int

const (
	// PolicySelfCorrecting recomputes delay-to-next-boundary after every tick.
	PolicySelfCorrecting DriftPolicy = iota
	// PolicyFixedPeriod aligns the first tick, then repeats every Period.
	PolicyFixedPeriod
)

func (p DriftPolicy) String() string {
	switch p {
	case PolicySelfCorrecting:
		return "self_correcting"
	case PolicyFixedPeriod:
		return "fixed_period"
	default:
		return fmt.Sprintf("DriftPolicy(%d)", int(p))
	}
}

// ParseDriftPolicy accepts "self_correcting" / "fixed_period" (dashes and
// case are ignored). An empty string selects PolicySelfCorrecting.
func ParseDriftPolicy(s string) (DriftPolicy, error) {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	switch norm {
	case "", "self_correcting", "selfcorrecting":
		return PolicySelfCorrecting, nil
	case "fixed_period", "fixedperiod", "fixed":
		return PolicyFixedPeriod, nil
	default:
		return PolicySelfCorrecting, fmt.Errorf("unknown drift policy %q (want self_correcting or fixed_period)", s)
	}
}
