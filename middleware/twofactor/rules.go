package twofactor

import (
	"strings"

	"github.com/driplo/twofa/config"
)

type State int

const (
	StatePublic State = iota
	StateAuthOnly
	StateUnauthenticated
	StateNotRequired
	StateVerified
	StateUnverified
)

func (s State) String() string {
	switch s {
	case StatePublic:
		return "public"
	case StateAuthOnly:
		return "auth_only"
	case StateUnauthenticated:
		return "unauthenticated"
	case StateNotRequired:
		return "not_required"
	case StateVerified:
		return "verified"
	case StateUnverified:
		return "unverified"
	default:
		return "unknown"
	}
}

// Rule classifies a request path. Rules are evaluated in order and the first match wins.
type Rule struct {
	Name    string
	Match   func(path string) bool
	Outcome State
}

// PrefixRule matches prefix itself and anything below it, on segment boundaries:
// "/login" matches "/login" and "/login/x" but not "/loginx".
func PrefixRule(prefix string, outcome State) Rule {
	return Rule{
		Name:    outcome.String() + ":" + prefix,
		Match:   matchPrefix(prefix),
		Outcome: outcome,
	}
}

func matchPrefix(prefix string) func(string) bool {
	if strings.HasSuffix(prefix, "/") {
		return func(path string) bool {
			return strings.HasPrefix(path, prefix)
		}
	}
	return func(path string) bool {
		return path == prefix || strings.HasPrefix(path, prefix+"/")
	}
}

// DefaultRules lists public routes first, then auth-only routes.
func DefaultRules(cfg *config.TwoFactorConfig) []Rule {
	rules := make([]Rule, 0, len(cfg.PublicRoutes)+len(cfg.AuthOnlyRoutes))
	for _, route := range cfg.PublicRoutes {
		if route = strings.TrimSpace(route); route != "" {
			rules = append(rules, PrefixRule(route, StatePublic))
		}
	}
	for _, route := range cfg.AuthOnlyRoutes {
		if route = strings.TrimSpace(route); route != "" {
			rules = append(rules, PrefixRule(route, StateAuthOnly))
		}
	}
	return rules
}

func classify(rules []Rule, path string) (Rule, bool) {
	for _, rule := range rules {
		if rule.Match(path) {
			return rule, true
		}
	}
	return Rule{}, false
}
