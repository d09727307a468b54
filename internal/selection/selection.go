// Package selection implements randomized in-place partial ordering.
package selection

import "math/rand"

// Vote is a weighted corpus id.
type Vote struct {
	ID     uint32
	Weight float64
}

// TopM reorders items in place so that the m heaviest come first.
//
// Afterwards weight(items[m-1]) is <= every weight before it and >= every
// weight after it; order inside either side is unspecified. m is clamped to
// [0, len(items)]. A nil rng falls back to the package-level source.
//
// Expected O(n). Elements equal to the pivot are grouped in one pass so
// arrays with many duplicate weights stay linear.
func TopM[T any](items []T, m int, weight func(T) float64, rng *rand.Rand) {
	n := len(items)
	if m <= 0 || n <= 1 {
		return
	}
	if m > n {
		m = n
	}

	intn := rand.Intn
	if rng != nil {
		intn = rng.Intn
	}

	target := m - 1
	lo, hi := 0, n-1
	for lo < hi {
		pivot := weight(items[lo+intn(hi-lo+1)])

		// [lo,lt) heavier, [lt,i) equal, (gt,hi] lighter.
		lt, i, gt := lo, lo, hi
		for i <= gt {
			w := weight(items[i])
			switch {
			case w > pivot:
				items[lt], items[i] = items[i], items[lt]
				lt++
				i++
			case w < pivot:
				items[i], items[gt] = items[gt], items[i]
				gt--
			default:
				i++
			}
		}

		switch {
		case target < lt:
			hi = lt - 1
		case target > gt:
			lo = gt + 1
		default:
			return
		}
	}
}

// TopVotes is TopM specialized for votes.
func TopVotes(votes []Vote, m int, rng *rand.Rand) {
	TopM(votes, m, voteWeight, rng)
}

func voteWeight(v Vote) float64 { return v.Weight }
