package annforest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStrategy(t *testing.T) {
	for _, s := range Strategies() {
		t.Run(s.String(), func(t *testing.T) {
			got, err := ParseStrategy(s.String())
			require.NoError(t, err)
			assert.Equal(t, s, got)
		})
	}

	got, err := ParseStrategy("  NC-SetSize ")
	require.NoError(t, err)
	assert.Equal(t, StrategyNaturalClassifierSetSize, got)

	_, err = ParseStrategy("hnsw")
	assert.ErrorIs(t, err, ErrUnknownStrategy)
}

func TestNeedsSecondary(t *testing.T) {
	tests := map[Strategy]bool{
		StrategyLookup:                    false,
		StrategyVoting:                    false,
		StrategyNaturalClassifier:         true,
		StrategyNaturalClassifierSetSize:  true,
		StrategyNaturalClassifierRawCount: true,
		StrategyBruteForce:                false,
	}
	for s, want := range tests {
		assert.Equal(t, want, s.NeedsSecondary(), s.String())
	}
}

func TestVoteWeighting(t *testing.T) {
	assert.InDelta(t, 0.125, VoteEnsembleAverage.weight(4, 2), 1e-12)
	assert.InDelta(t, 0.25, VotePerMember.weight(4, 2), 1e-12)
	assert.Equal(t, "ensemble-average", VoteEnsembleAverage.String())
	assert.Equal(t, "VoteWeighting(9)", VoteWeighting(9).String())
}
