package policy

import "fmt"

// RateLimitMultiplier is applied to a device's observed baseline rates to
// derive its policy rate limit, per spec §3.
const RateLimitMultiplier = 1.5

// BaselineInput is the narrow view of a Behavioral Baseline the Policy
// Generator needs. Defined locally (rather than importing identity.Baseline
// directly) because identity imports policy for its Device Policy bucket,
// and policy generation is owned jointly by C1 and C10 per spec §3.
type BaselineInput struct {
	DeviceID        string
	MeanPPS         float64
	MeanBPS         float64
	TopDestinations []string // ordered, most-frequent first
}

// Generate builds a Device Policy from a finalized Behavioral Baseline: one
// allow rule per top destination, rate limits at 1.5x the observed mean,
// and a terminal default-deny rule.
func Generate(baseline BaselineInput) *Policy {
	rules := make([]Rule, 0, len(baseline.TopDestinations)+1)
	for i, dest := range baseline.TopDestinations {
		rules = append(rules, Rule{
			Name:        fmt.Sprintf("allow-baseline-dest-%d", i+1),
			Effect:      EffectAllow,
			MatchFields: map[string]string{"ipv4_dst": dest},
			Priority:    len(baseline.TopDestinations) - i,
			Reason:      "observed during behavioral profiling",
		})
	}
	rules = append(rules, Rule{
		Name:   "default-deny",
		Effect: EffectDeny,
		Reason: "terminal default-deny",
	})

	return &Policy{
		Version:  PolicyVersion,
		DeviceID: baseline.DeviceID,
		Rules:    rules,
		RateLimit: RateLimit{
			PPS: baseline.MeanPPS * RateLimitMultiplier,
			BPS: baseline.MeanBPS * RateLimitMultiplier,
		},
	}
}
