package annforest

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/hupe1980/annforest/index"
	"github.com/hupe1980/annforest/index/c2lsh"
	"github.com/hupe1980/annforest/index/hashtable"
	"github.com/hupe1980/annforest/index/rkdtree"
	"github.com/hupe1980/annforest/index/rptree"
)

// ErrInvalidIndexConfig is returned for configurations that cannot produce an index.
var ErrInvalidIndexConfig = errors.New("annforest: invalid index config")

// IndexConfig holds the build parameters of one index variant. Fields that do
// not apply to Kind are ignored.
//
// C2LSH query parameters (MinSize, Threshold) do not affect the built
// structure, so they are not part of Key and may differ between a stored
// ensemble and the config that loads it.
type IndexConfig struct {
	Kind index.Kind

	// K is the number of hash functions (hash variants).
	K int

	// Width is the bucket width r (LSH, C2LSH).
	Width float64

	// Ratio is the C2LSH window growth factor.
	Ratio int64

	// MinSize and Threshold are C2LSH query parameters.
	MinSize   int
	Threshold int

	// MaxLeafSize bounds tree leaves.
	MaxLeafSize int

	// TopDims is the RKD tree candidate dimension count.
	TopDims int
}

// DefaultIndexConfig returns the default parameters of a variant.
func DefaultIndexConfig(kind index.Kind) IndexConfig {
	switch kind {
	case index.KindHashTable:
		o := hashtable.DefaultOptions
		return IndexConfig{Kind: kind, K: o.K, Width: o.Width}
	case index.KindAngularHashTable:
		return IndexConfig{Kind: kind, K: hashtable.DefaultAngularOptions.K}
	case index.KindC2LSH:
		o := c2lsh.DefaultOptions
		return IndexConfig{Kind: kind, K: o.K, Width: o.Width, Ratio: o.Ratio, MinSize: o.MinSize, Threshold: o.Threshold}
	case index.KindRPTree:
		return IndexConfig{Kind: kind, MaxLeafSize: rptree.DefaultOptions.MaxLeafSize}
	case index.KindRKDTree:
		o := rkdtree.DefaultOptions
		return IndexConfig{Kind: kind, MaxLeafSize: o.MaxLeafSize, TopDims: o.TopDims}
	default:
		return IndexConfig{Kind: kind}
	}
}

// Factory returns the index factory for the configuration.
func (c IndexConfig) Factory() (index.Factory, error) {
	switch c.Kind {
	case index.KindHashTable:
		return hashtable.Factory(func(o *hashtable.Options) {
			o.K = c.K
			o.Width = c.Width
		}), nil
	case index.KindAngularHashTable:
		return hashtable.AngularFactory(func(o *hashtable.AngularOptions) {
			o.K = c.K
		}), nil
	case index.KindC2LSH:
		return c2lsh.Factory(func(o *c2lsh.Options) {
			o.K = c.K
			o.Width = c.Width
			o.Ratio = c.Ratio
			o.MinSize = c.MinSize
			o.Threshold = c.Threshold
		}), nil
	case index.KindRPTree:
		return rptree.Factory(func(o *rptree.Options) {
			o.MaxLeafSize = c.MaxLeafSize
		}), nil
	case index.KindRKDTree:
		return rkdtree.Factory(func(o *rkdtree.Options) {
			o.MaxLeafSize = c.MaxLeafSize
			o.TopDims = c.TopDims
		}), nil
	default:
		return nil, fmt.Errorf("%w: unknown kind %s", ErrInvalidIndexConfig, c.Kind)
	}
}

// Key returns the stable parameter key used to name stored ensembles,
// for example "LSH_K8_r4.0" or "RKDTree_leaf50_o5".
func (c IndexConfig) Key() string {
	switch c.Kind {
	case index.KindHashTable:
		return fmt.Sprintf("%s_K%d_r%s", c.Kind, c.K, formatWidth(c.Width))
	case index.KindAngularHashTable:
		return fmt.Sprintf("%s_K%d", c.Kind, c.K)
	case index.KindC2LSH:
		return fmt.Sprintf("%s_K%d_r%s_c%d", c.Kind, c.K, formatWidth(c.Width), c.Ratio)
	case index.KindRPTree:
		return fmt.Sprintf("%s_leaf%d", c.Kind, c.MaxLeafSize)
	case index.KindRKDTree:
		return fmt.Sprintf("%s_leaf%d_o%d", c.Kind, c.MaxLeafSize, c.TopDims)
	default:
		return c.Kind.String()
	}
}

func (c IndexConfig) String() string { return c.Key() }

// Apply re-applies query-time parameters to a loaded member. Only C2LSH has any.
func (c IndexConfig) Apply(idx index.Index) (index.Index, error) {
	x, ok := idx.(*c2lsh.Index)
	if !ok || c.Kind != index.KindC2LSH {
		return idx, nil
	}
	return x.WithParams(c.MinSize, c.Threshold)
}

func formatWidth(w float64) string {
	s := strconv.FormatFloat(w, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

var kindsByName = map[string]index.Kind{
	index.KindHashTable.String():        index.KindHashTable,
	index.KindAngularHashTable.String(): index.KindAngularHashTable,
	index.KindC2LSH.String():            index.KindC2LSH,
	index.KindRPTree.String():           index.KindRPTree,
	index.KindRKDTree.String():          index.KindRKDTree,
}

// ParseKind parses a variant name as written by index.Kind.String.
func ParseKind(s string) (index.Kind, error) {
	k, ok := kindsByName[s]
	if !ok {
		return 0, fmt.Errorf("%w: unknown kind %q", ErrInvalidIndexConfig, s)
	}
	return k, nil
}

// ParseIndexConfig parses a key written by IndexConfig.Key. Parameters not in
// the key take their defaults.
func ParseIndexConfig(key string) (IndexConfig, error) {
	parts := strings.Split(key, "_")
	kind, err := ParseKind(parts[0])
	if err != nil {
		return IndexConfig{}, err
	}
	c := DefaultIndexConfig(kind)
	for _, p := range parts[1:] {
		if err := c.setField(p); err != nil {
			return IndexConfig{}, fmt.Errorf("%w: key %q: %v", ErrInvalidIndexConfig, key, err)
		}
	}
	if c.Key() != key {
		return IndexConfig{}, fmt.Errorf("%w: key %q is not canonical", ErrInvalidIndexConfig, key)
	}
	return c, nil
}

func (c *IndexConfig) setField(p string) error {
	var err error
	switch {
	case strings.HasPrefix(p, "leaf"):
		c.MaxLeafSize, err = strconv.Atoi(p[len("leaf"):])
	case strings.HasPrefix(p, "K"):
		c.K, err = strconv.Atoi(p[1:])
	case strings.HasPrefix(p, "r"):
		c.Width, err = strconv.ParseFloat(p[1:], 64)
	case strings.HasPrefix(p, "c"):
		c.Ratio, err = strconv.ParseInt(p[1:], 10, 64)
	case strings.HasPrefix(p, "o"):
		c.TopDims, err = strconv.Atoi(p[1:])
	default:
		return fmt.Errorf("unknown field %q", p)
	}
	return err
}
