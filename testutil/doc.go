// Package testutil provides testing utilities for spatialgo.
//
// This package is intended for use in tests and benchmarks only.
// It provides helpers for generating random boxes and items, and brute-force
// ground truth for checking index answers.
//
// # Random Items
//
//	rng := testutil.NewRNG(seed)
//	items := rng.UniformItems("item", 1000, world, 0.5, 4)
//
// # Ground Truth
//
//	want := testutil.BruteQuery(items, q)
//	got := testutil.IDs(idx.Query(q))
package testutil
