// Package testing provides a reusable test and benchmark suite for the
// btree engine. The suite is factory-driven: callers hand in a function
// producing a fresh tree and the suite exercises the public contract -
// insertion, replacement, deletion, lookups, ordered browsing, snapshot
// isolation and the element count - against it. This keeps in-memory and
// file-backed configurations covered by the exact same assertions.
package testing
