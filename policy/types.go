// Package policy defines the Device Policy schema (C10): rule validation and
// first-match rule matching, and the Policy Generator that turns a finalized
// Behavioral Baseline into a policy document. The trust-bucket to
// enforcement-action mapping is in package adapter, not here.
package policy

import "fmt"

// PolicyVersion is stamped onto every generated Device Policy document.
const PolicyVersion = "1"

// Effect is the action a matching Rule dictates.
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

func (e Effect) IsValid() bool {
	return e == EffectAllow || e == EffectDeny
}

func (e Effect) String() string { return string(e) }

// MatchFieldKeys is the set of fields a Rule's match map may reference, per
// spec §6's Rule Installer contract.
var MatchFieldKeys = map[string]bool{
	"eth_src": true, "eth_dst": true,
	"ipv4_src": true, "ipv4_dst": true,
	"in_port": true, "ip_proto": true,
	"tcp_src": true, "tcp_dst": true,
	"udp_src": true, "udp_dst": true,
}

// Rule is a single ordered match/action entry in a Device Policy.
type Rule struct {
	Name        string            `yaml:"name" json:"name"`
	Effect      Effect            `yaml:"effect" json:"effect"`
	MatchFields map[string]string `yaml:"match_fields,omitempty" json:"match_fields,omitempty"`
	Priority    int               `yaml:"priority" json:"priority"`
	Reason      string            `yaml:"reason,omitempty" json:"reason,omitempty"`
}

// Validate checks that Effect is known and every match field key is recognized.
func (r *Rule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("rule name must not be empty")
	}
	if !r.Effect.IsValid() {
		return fmt.Errorf("rule %s: invalid effect %q", r.Name, r.Effect)
	}
	for k := range r.MatchFields {
		if !MatchFieldKeys[k] {
			return fmt.Errorf("rule %s: unknown match field %q", r.Name, k)
		}
	}
	return nil
}

// RateLimit is the per-device packet/byte rate ceiling derived from the
// device's baseline (1.5x, per spec §3).
type RateLimit struct {
	PPS float64 `yaml:"pps" json:"pps"`
	BPS float64 `yaml:"bps" json:"bps"`
}

// Policy is the Device Policy: an ordered rule list, a rate limit pair, and
// an implicit terminal default-deny (the last rule in Rules by convention).
type Policy struct {
	Version   string    `yaml:"version" json:"version"`
	DeviceID  string    `yaml:"device_id" json:"device_id"`
	Rules     []Rule    `yaml:"rules" json:"rules"`
	RateLimit RateLimit `yaml:"rate_limit" json:"rate_limit"`
}

// Validate checks every rule and that the policy ends in a terminal deny rule.
func (p *Policy) Validate() error {
	if len(p.Rules) == 0 {
		return fmt.Errorf("policy for %s has no rules", p.DeviceID)
	}
	for i := range p.Rules {
		if err := p.Rules[i].Validate(); err != nil {
			return err
		}
	}
	last := p.Rules[len(p.Rules)-1]
	if last.Effect != EffectDeny || len(last.MatchFields) != 0 {
		return fmt.Errorf("policy for %s must end in a terminal default-deny rule", p.DeviceID)
	}
	return nil
}

// Match evaluates the ordered rule list against a flow's match fields,
// returning the first matching rule's effect, first-match-wins (the
// terminal default-deny rule always eventually matches since it carries no
// match fields).
func (p *Policy) Match(flowFields map[string]string) Effect {
	for _, r := range p.Rules {
		if ruleMatches(r, flowFields) {
			return r.Effect
		}
	}
	return EffectDeny
}

func ruleMatches(r Rule, flowFields map[string]string) bool {
	for k, v := range r.MatchFields {
		if flowFields[k] != v {
			return false
		}
	}
	return true
}
