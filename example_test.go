package annforest_test

import (
	"context"
	"fmt"
	"log"

	"github.com/hupe1980/annforest"
	"github.com/hupe1980/annforest/index/rptree"
)

// Example_bruteForce ranks a small corpus exactly.
func Example_bruteForce() {
	corpus := [][]float32{{0, 0}, {1, 0}, {0, 1}, {5, 5}}

	ens, err := annforest.BuildEnsemble(context.Background(), corpus, 1, rptree.Factory())
	if err != nil {
		log.Fatal(err)
	}
	s, err := annforest.NewSearcher(corpus, ens)
	if err != nil {
		log.Fatal(err)
	}

	res, err := s.BruteForceSearch([]float32{0, 0}, 4)
	if err != nil {
		log.Fatal(err)
	}
	for _, n := range res.Neighbors {
		fmt.Printf("%d %.2f\n", n.ID, n.Distance)
	}
	// Output:
	// 0 0.00
	// 1 1.00
	// 2 1.00
	// 3 7.07
}
