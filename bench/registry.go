package bench

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/hupe1980/annforest"
)

// ErrInvalidArgs is returned when strategy arguments cannot be parsed.
var ErrInvalidArgs = errors.New("bench: invalid strategy arguments")

// StrategySpec describes how a strategy reads its arguments.
type StrategySpec struct {
	Strategy annforest.Strategy

	// Threshold reports whether a second argument follows k.
	Threshold bool

	// Integer reports whether the threshold must be a whole number.
	Integer bool
}

var registry = map[string]StrategySpec{}

func register(spec StrategySpec, aliases ...string) {
	registry[spec.Strategy.String()] = spec
	for _, a := range aliases {
		registry[strings.ToLower(a)] = spec
	}
}

func init() {
	register(StrategySpec{Strategy: annforest.StrategyLookup}, "lookupSearch")
	register(StrategySpec{Strategy: annforest.StrategyVoting, Threshold: true, Integer: true}, "votingSearch")
	register(StrategySpec{Strategy: annforest.StrategyNaturalClassifier, Threshold: true}, "naturalClassifierSearch")
	register(StrategySpec{Strategy: annforest.StrategyNaturalClassifierSetSize, Threshold: true, Integer: true}, "naturalClassifierSearchSetSize")
	register(StrategySpec{Strategy: annforest.StrategyNaturalClassifierRawCount, Threshold: true, Integer: true}, "naturalClassifierSearchRawCount")
	register(StrategySpec{Strategy: annforest.StrategyBruteForce}, "bruteForceSearch")
}

// Lookup returns the strategy registered under name, case-insensitively.
func Lookup(name string) (StrategySpec, error) {
	spec, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return StrategySpec{}, fmt.Errorf("%w: %q", annforest.ErrUnknownStrategy, name)
	}
	return spec, nil
}

// ParseRequest builds a request from a strategy name and its arguments:
// k, followed by the threshold or set size for strategies that take one.
func ParseRequest(name string, args []string) (annforest.Request, error) {
	spec, err := Lookup(name)
	if err != nil {
		return annforest.Request{}, err
	}
	want := 1
	if spec.Threshold {
		want = 2
	}
	if len(args) != want {
		return annforest.Request{}, fmt.Errorf("%w: %s takes %d arguments, got %d", ErrInvalidArgs, spec.Strategy, want, len(args))
	}

	k, err := strconv.Atoi(args[0])
	if err != nil {
		return annforest.Request{}, fmt.Errorf("%w: k %q: %v", ErrInvalidArgs, args[0], err)
	}
	req := annforest.Request{Strategy: spec.Strategy, K: k}
	if !spec.Threshold {
		return req, nil
	}

	if spec.Integer {
		t, err := strconv.Atoi(args[1])
		if err != nil {
			return annforest.Request{}, fmt.Errorf("%w: threshold %q: %v", ErrInvalidArgs, args[1], err)
		}
		req.Threshold = float64(t)
		return req, nil
	}
	t, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return annforest.Request{}, fmt.Errorf("%w: threshold %q: %v", ErrInvalidArgs, args[1], err)
	}
	req.Threshold = t
	return req, nil
}

// ParseArgs splits a space separated argument list such as "10 0.5".
func ParseArgs(s string) []string {
	return strings.Fields(s)
}
