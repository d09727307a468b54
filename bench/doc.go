// Package bench measures query strategies over a batch of test queries.
//
// A Runner calls one strategy per query and records, for every query, k
// result slots padded with SentinelID and SentinelDistance when fewer than k
// neighbors were found, the number of genuine neighbors, the candidate set
// size and the latency. Summarize turns a run into latency, candidate and
// recall statistics.
//
// Strategies are selected by name with ParseRequest, which accepts the
// searcher's strategy names ("nc") as well as the long method style names
// ("naturalClassifierSearch") used in benchmark configurations.
package bench
