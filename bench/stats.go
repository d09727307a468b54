package bench

import (
	"math"
	"slices"
	"time"

	"github.com/hupe1980/annforest/dataset"
)

// Stats summarizes a run.
type Stats struct {
	Queries int

	Mean   time.Duration
	StdDev time.Duration
	Min    time.Duration
	Max    time.Duration
	P50    time.Duration
	P95    time.Duration
	P99    time.Duration

	// QPS is queries per second from the mean latency.
	QPS float64

	MeanCandidates   float64
	MedianCandidates float64
	MeanFound        float64

	// Recall is the mean recall@k. It is NaN when no ground truth was given.
	Recall float64
}

// Summarize computes statistics for run. truth[i] lists the exact neighbors
// of query i, nearest first; pass nil to skip recall.
func Summarize(run *Run, truth [][]uint32) Stats {
	n := len(run.Results)
	s := Stats{Queries: n, Recall: math.NaN()}
	if n == 0 {
		return s
	}

	latencies := make([]time.Duration, n)
	candidates := make([]int, n)
	var sum, found, cands float64
	for i, r := range run.Results {
		latencies[i] = r.Elapsed
		candidates[i] = r.Candidates
		sum += float64(r.Elapsed)
		found += float64(r.Found)
		cands += float64(r.Candidates)
	}
	mean := sum / float64(n)

	var variance float64
	for _, l := range latencies {
		d := float64(l) - mean
		variance += d * d
	}
	variance /= float64(n)

	slices.Sort(latencies)
	slices.Sort(candidates)

	s.Mean = time.Duration(mean)
	s.StdDev = time.Duration(math.Sqrt(variance))
	s.Min = latencies[0]
	s.Max = latencies[n-1]
	s.P50 = latencies[n*50/100]
	s.P95 = latencies[n*95/100]
	s.P99 = latencies[n*99/100]
	if mean > 0 {
		s.QPS = float64(time.Second) / mean
	}
	s.MeanCandidates = cands / float64(n)
	s.MedianCandidates = median(candidates)
	s.MeanFound = found / float64(n)

	if truth != nil {
		var total float64
		for i, r := range run.Results {
			if i < len(truth) {
				total += Recall(r.IDs, truth[i], run.Request.K)
			}
		}
		s.Recall = total / float64(n)
	}
	return s
}

func median(sorted []int) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return float64(sorted[n/2])
	}
	return float64(sorted[n/2-1]+sorted[n/2]) / 2
}

// Recall returns the share of the k nearest true neighbors among the first k
// result ids. Sentinel slots never match.
func Recall(ids, truth []uint32, k int) float64 {
	k = min(k, len(truth))
	if k == 0 {
		return 0
	}
	want := make(map[uint32]struct{}, k)
	for _, id := range truth[:k] {
		want[id] = struct{}{}
	}
	hits := 0
	for _, id := range ids[:min(k, len(ids))] {
		if _, ok := want[id]; ok {
			hits++
		}
	}
	return float64(hits) / float64(k)
}

// Record converts a run and its statistics into a result row.
func Record(datasetName, indexKey string, members int, run *Run, s Stats) dataset.ResultRecord {
	return dataset.ResultRecord{
		Dataset:    datasetName,
		Index:      indexKey,
		Members:    int32(members),
		Strategy:   run.Request.Strategy.String(),
		Threshold:  run.Request.Threshold,
		K:          int32(run.Request.K),
		Queries:    int32(s.Queries),
		Recall:     s.Recall,
		MeanNanos:  float64(s.Mean),
		StdNanos:   float64(s.StdDev),
		MinNanos:   int64(s.Min),
		MaxNanos:   int64(s.Max),
		Candidates: s.MeanCandidates,
		Found:      s.MeanFound,
	}
}
