// Package mmap maps snapshot files read-only into memory.
//
//	m, err := mmap.Open("ensembles/RPTree_leaf50.snap")
//	if err != nil { ... }
//	defer m.Close()
//
//	data := m.Bytes() // valid until Close
//
// Advise passes an access hint to the kernel. It is a no-op on Windows.
package mmap
