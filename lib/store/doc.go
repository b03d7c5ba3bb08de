// Package store provides a high-level facade over a set of named ordered
// trees with unified error handling. It serves as an abstraction layer
// over the lower-level btree engine, adding lazy tree management and
// standardized error reporting.
//
// The package focuses on:
//   - A unified interface (IStore) for ordered key-value operations over
//     string keys and raw byte values
//   - Lazy, concurrent-safe management of many named trees backed by one
//     directory
//   - Typed error codes so callers can react to specific conditions
//     rather than generic errors
//
// Key Components:
//
//   - IStore Interface: The core abstraction defining Set, Get, Has,
//     Delete, ordered Scan, Flush and tree metadata operations. All
//     operations address a tree by name; trees are created (and recovered
//     from their data and journal files) on first use.
//
//   - Error System: A structured error reporting mechanism using typed
//     error codes (RetCode) and descriptive messages.
//
//   - Tree Registry: Open trees live in a concurrent map, so the hot path
//     of addressing an already open tree takes no lock. Only the creation
//     of a missing tree is serialized.
//
// Thread Safety:
//
//	All store operations are thread-safe. The underlying trees provide
//	single-writer/many-reader semantics per tree; operations on different
//	trees proceed fully independently.
package store
