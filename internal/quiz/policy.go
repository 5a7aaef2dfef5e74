package quiz

import (
	"fmt"
	"strings"
)

type PolicyKind string

const (
	PolicyRandom PolicyKind = "random"
	PolicyUnseen PolicyKind = "unseen"
	PolicyWrong  PolicyKind = "wrong"
)

const (
	// UnseenWeight is the relative draw weight of a question the user has not seen yet.
	UnseenWeight = 4.0
	// WrongWeight is the relative draw weight of a question the user got wrong before.
	WrongWeight = 4.0
)

// Policy weights the draw in Bank.Sample. The zero value is Uniform.
type Policy struct {
	Kind PolicyKind
	ids  map[string]struct{}
}

func Uniform() Policy {
	return Policy{Kind: PolicyRandom}
}

// PreferUnseen favours questions whose IDs are not in seen.
func PreferUnseen(seen []string) Policy {
	return Policy{Kind: PolicyUnseen, ids: idSet(seen)}
}

// PreferWrong favours questions whose IDs are in wrong.
func PreferWrong(wrong []string) Policy {
	return Policy{Kind: PolicyWrong, ids: idSet(wrong)}
}

// ParsePolicyKind maps a user-facing mode name to a PolicyKind.
func ParsePolicyKind(s string) (PolicyKind, error) {
	switch kind := PolicyKind(strings.ToLower(strings.TrimSpace(s))); kind {
	case "", PolicyRandom:
		return PolicyRandom, nil
	case PolicyUnseen, PolicyWrong:
		return kind, nil
	default:
		return "", fmt.Errorf("unknown selection mode %q", s)
	}
}

// Weight returns the relative chance of q being drawn. It is always positive.
func (p Policy) Weight(q Question) float64 {
	_, listed := p.ids[q.ID]
	switch p.Kind {
	case PolicyUnseen:
		if !listed {
			return UnseenWeight
		}
	case PolicyWrong:
		if listed {
			return WrongWeight
		}
	}
	return 1
}

func (p Policy) uniform() bool {
	return p.Kind == "" || p.Kind == PolicyRandom || len(p.ids) == 0
}

func idSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
