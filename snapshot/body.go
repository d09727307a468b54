package snapshot

import (
	"fmt"

	"github.com/hupe1980/annforest/groundtruth"
	"github.com/hupe1980/annforest/index"
	"github.com/hupe1980/annforest/persistence"
)

const (
	ensembleMagic   = 0x41464553 // "AFES"
	ensembleVersion = 1
)

// EncodeEnsemble encodes fitted members. m.Kind and m.Members are set from
// the arguments.
func EncodeEnsemble(members []index.Index, m Manifest, optFns ...func(o *Options)) ([]byte, error) {
	if len(members) == 0 {
		return nil, fmt.Errorf("snapshot: empty ensemble")
	}
	e := persistence.NewEncoder(1 << 16)
	e.Header(ensembleMagic, ensembleVersion)
	e.Uint32(uint32(len(members)))
	for i, idx := range members {
		b, err := index.Marshal(idx)
		if err != nil {
			return nil, fmt.Errorf("snapshot: encode member %d: %w", i, err)
		}
		e.Blob(b)
	}
	m.Kind = KindEnsemble
	m.Members = len(members)
	if m.Dimension == 0 {
		m.Dimension = members[0].Dimension()
	}
	return Encode(m, e.Bytes(), optFns...)
}

// DecodeEnsemble restores members written by EncodeEnsemble. When limit is
// positive only the first limit members are decoded.
func DecodeEnsemble(data []byte, limit int) (Manifest, []index.Index, error) {
	m, body, err := Decode(data)
	if err != nil {
		return Manifest{}, nil, err
	}
	if err := expectKind(m, KindEnsemble); err != nil {
		return Manifest{}, nil, err
	}

	d := persistence.NewDecoder(body)
	d.Header(ensembleMagic, ensembleVersion)
	count := d.Count(5)
	if err := d.Err(); err != nil {
		return Manifest{}, nil, err
	}
	if count != m.Members {
		return Manifest{}, nil, fmt.Errorf("snapshot: body holds %d members, manifest %d", count, m.Members)
	}
	n := count
	if limit > 0 && limit < n {
		n = limit
	}

	members := make([]index.Index, n)
	for i := range members {
		b := d.Blob()
		if err := d.Err(); err != nil {
			return Manifest{}, nil, err
		}
		idx, err := index.Unmarshal(b)
		if err != nil {
			return Manifest{}, nil, fmt.Errorf("snapshot: member %d: %w", i, err)
		}
		if idx.Dimension() != m.Dimension {
			return Manifest{}, nil, fmt.Errorf("snapshot: member %d has dimension %d, manifest %d", i, idx.Dimension(), m.Dimension)
		}
		members[i] = idx
	}
	if n == count {
		if err := d.Finish(); err != nil {
			return Manifest{}, nil, err
		}
	}
	return m, members, nil
}

// EncodeGroundTruth encodes a ground-truth table. m.Kind, m.Points and m.K
// are set from the table.
func EncodeGroundTruth(t *groundtruth.Table, m Manifest, optFns ...func(o *Options)) ([]byte, error) {
	body, err := t.MarshalBinary()
	if err != nil {
		return nil, err
	}
	m.Kind = KindGroundTruth
	m.Points = t.Len()
	m.K = t.K()
	return Encode(m, body, optFns...)
}

// DecodeGroundTruth restores a table written by EncodeGroundTruth.
func DecodeGroundTruth(data []byte) (Manifest, *groundtruth.Table, error) {
	m, body, err := Decode(data)
	if err != nil {
		return Manifest{}, nil, err
	}
	if err := expectKind(m, KindGroundTruth); err != nil {
		return Manifest{}, nil, err
	}
	t := new(groundtruth.Table)
	if err := t.UnmarshalBinary(body); err != nil {
		return Manifest{}, nil, err
	}
	if t.Len() != m.Points || t.K() != m.K {
		return Manifest{}, nil, fmt.Errorf("snapshot: table is %dx%d, manifest %dx%d", t.Len(), t.K(), m.Points, m.K)
	}
	return m, t, nil
}
