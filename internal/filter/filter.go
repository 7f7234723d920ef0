package filter

import (
	"fmt"
	"regexp"

	"github.com/parchment-io/k8s-events-to-slack-streamer/internal/types"
	"github.com/parchment-io/k8s-events-to-slack-streamer/internal/util"
)

// Rule names the stage that rejected an event.
type Rule string

const (
	RuleNone      Rule = ""
	RuleDeleted   Rule = "deleted"
	RuleReason    Rule = "reason"
	RuleBlacklist Rule = "blacklist"
)

// Config holds the skip rules.
type Config struct {
	SkipDeleteEvents bool
	ReasonsToSkip    map[string]struct{}
	// EntityBlacklist is evaluated in order; the first match wins.
	EntityBlacklist []*regexp.Regexp
}

// NewConfig compiles the blacklist patterns and builds the reason set.
// Returns an error naming the first pattern that does not compile.
func NewConfig(skipDeleteEvents bool, reasonsToSkip, blacklist []string) (Config, error) {
	patterns := make([]*regexp.Regexp, 0, len(blacklist))
	for _, p := range blacklist {
		re, err := regexp.Compile(p)
		if err != nil {
			return Config{}, fmt.Errorf("invalid entity blacklist pattern %q: %w", p, err)
		}
		patterns = append(patterns, re)
	}
	return Config{
		SkipDeleteEvents: skipDeleteEvents,
		ReasonsToSkip:    util.StringSet(reasonsToSkip),
		EntityBlacklist:  patterns,
	}, nil
}

// Decision is the outcome of evaluating one event.
type Decision struct {
	Accepted bool
	Rule     Rule
	// Pattern is the blacklist expression that matched, for RuleBlacklist.
	Pattern string
}

// Chain applies a Config to events.
type Chain struct {
	cfg Config
}

// NewChain creates a Chain over cfg.
func NewChain(cfg Config) *Chain {
	return &Chain{cfg: cfg}
}

// Accept reports whether ev passes every rule.
func (c *Chain) Accept(ev types.RawEvent) bool {
	return c.Evaluate(ev).Accepted
}

// Evaluate runs the rules in order and reports which one, if any, rejected ev.
func (c *Chain) Evaluate(ev types.RawEvent) Decision {
	if c.cfg.SkipDeleteEvents && ev.Type == types.EventTypeDeleted {
		return Decision{Rule: RuleDeleted}
	}
	if _, skip := c.cfg.ReasonsToSkip[ev.Object.Reason]; skip {
		return Decision{Rule: RuleReason}
	}
	for _, re := range c.cfg.EntityBlacklist {
		if re.MatchString(ev.Object.Name) {
			return Decision{Rule: RuleBlacklist, Pattern: re.String()}
		}
	}
	return Decision{Accepted: true}
}
