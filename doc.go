// Package annforest provides approximate nearest neighbor search over
// ensembles of randomized index structures.
//
// An ensemble holds L independently randomized partitions of one corpus:
// Euclidean or angular LSH tables, C2LSH collision counters, random
// projection trees or randomized k-d trees. A query asks every member for
// its bucket or leaf, merges the answers into a candidate set, and ranks the
// candidates exactly.
//
// # Quick Start
//
//	ctx := context.Background()
//	ens, _ := annforest.BuildEnsemble(ctx, corpus, 10, rptree.Factory())
//	s, _ := annforest.NewSearcher(corpus, ens)
//	res, _ := s.LookupSearch(query, 10)
//	for _, n := range res.Neighbors {
//	    fmt.Println(n.ID, n.Distance)
//	}
//
// # Strategies
//
// How member answers become candidates:
//
//	lookup       union of all member results
//	voting       points returned by at least t members
//	nc           natural classifier: weighted votes spread to each result
//	             point's exact neighbors, kept above a weight threshold
//	nc-setsize   the heaviest natural classifier points up to a set size
//	nc-rawcount  unweighted natural classifier counts above a threshold
//	bruteforce   the whole corpus
//
// Natural classifier strategies need a ground-truth table of each corpus
// point's exact neighbors:
//
//	table, _ := groundtruth.Build(ctx, corpus, 10)
//	s, _ := annforest.NewSearcher(corpus, ens, annforest.WithSecondaryIndex(table, 10))
//	res, _ := s.NaturalClassifierSearch(query, 10, 0.5)
//
// # Stored Ensembles
//
// Building large ensembles and ground-truth tables is expensive. OpenEnsemble
// and OpenGroundTruth load a stored structure that satisfies the request, or
// build, store and register one:
//
//	store := blobstore.NewLocalStore("./snapshots")
//	cfg, _ := annforest.ParseIndexConfig("RKDTree_leaf50_o5")
//	ens, _ := annforest.OpenEnsemble(ctx, store, "sift", corpus, cfg, 20)
//	table, _ := annforest.OpenGroundTruth(ctx, store, "sift", corpus, 10)
//
// A stored ensemble of 40 members serves any request for up to 40; a stored
// table of 100 neighbors serves any k up to 100.
//
// # Observability
//
// Searchers and builders accept a *Logger (log/slog) and a MetricsCollector.
// Package promstats exports the collector to Prometheus.
package annforest
