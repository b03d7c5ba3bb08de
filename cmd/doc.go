// Package cmd implements the command-line interface for the bKV embedded
// ordered key-value store. It provides a hierarchical command structure
// for inspecting and manipulating store directories.
//
// The package is organized into several subpackages:
//
//   - kv: Commands for key-value operations (get, set, delete, scan, etc.)
//     and a local performance benchmark
//   - util: Shared utilities for command-line processing and configuration
//     (internal use)
//
// See bkv -help for a list of all commands.
package cmd
