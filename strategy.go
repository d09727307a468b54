package annforest

import (
	"fmt"
	"strings"
)

// Strategy names a query strategy.
type Strategy uint8

const (
	// StrategyLookup unions every member's result.
	StrategyLookup Strategy = iota + 1
	// StrategyVoting keeps points returned by at least threshold members.
	StrategyVoting
	// StrategyNaturalClassifier spreads weighted votes to secondary
	// neighbors and keeps points reaching a weight threshold.
	StrategyNaturalClassifier
	// StrategyNaturalClassifierSetSize keeps the heaviest points up to a
	// candidate set size.
	StrategyNaturalClassifierSetSize
	// StrategyNaturalClassifierRawCount counts unweighted votes to secondary
	// neighbors.
	StrategyNaturalClassifierRawCount
	// StrategyBruteForce ranks the entire corpus.
	StrategyBruteForce
)

var strategyNames = map[Strategy]string{
	StrategyLookup:                    "lookup",
	StrategyVoting:                    "voting",
	StrategyNaturalClassifier:         "nc",
	StrategyNaturalClassifierSetSize:  "nc-setsize",
	StrategyNaturalClassifierRawCount: "nc-rawcount",
	StrategyBruteForce:                "bruteforce",
}

// String returns the strategy name accepted by ParseStrategy.
func (s Strategy) String() string {
	if name, ok := strategyNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Strategy(%d)", uint8(s))
}

// NeedsSecondary reports whether s consults the ground-truth table.
func (s Strategy) NeedsSecondary() bool {
	switch s {
	case StrategyNaturalClassifier, StrategyNaturalClassifierSetSize, StrategyNaturalClassifierRawCount:
		return true
	default:
		return false
	}
}

// ParseStrategy resolves a strategy name, case-insensitively.
func ParseStrategy(name string) (Strategy, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for s, n := range strategyNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
}

// Strategies returns every strategy in declaration order.
func Strategies() []Strategy {
	return []Strategy{
		StrategyLookup,
		StrategyVoting,
		StrategyNaturalClassifier,
		StrategyNaturalClassifierSetSize,
		StrategyNaturalClassifierRawCount,
		StrategyBruteForce,
	}
}

// VoteWeighting selects the weight a member result R gives each vote.
type VoteWeighting uint8

const (
	// VoteEnsembleAverage weighs votes 1/(|R|*L), so a threshold reads as
	// the average vote over the L members.
	VoteEnsembleAverage VoteWeighting = iota
	// VotePerMember weighs votes 1/|R|.
	VotePerMember
)

func (w VoteWeighting) String() string {
	switch w {
	case VoteEnsembleAverage:
		return "ensemble-average"
	case VotePerMember:
		return "per-member"
	default:
		return fmt.Sprintf("VoteWeighting(%d)", uint8(w))
	}
}

func (w VoteWeighting) weight(resultSize, members int) float64 {
	if w == VotePerMember {
		return 1 / float64(resultSize)
	}
	return 1 / (float64(resultSize) * float64(members))
}
