package store

import (
	"fmt"

	"github.com/ValentinKolb/bKV/lib/btree"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// IStore is the high-level facade over a set of named ordered trees. All
// operations address a tree by name; trees are created lazily on first
// use. Set, Flush and Close return only an error (nil on success); the
// other operations return the requested data (for Delete, whether the key
// existed) along with an error.
type IStore interface {
	// Set inserts or updates a key-value pair in the named tree.
	Set(tree, key string, value []byte) (err error)
	// Get returns the value for a key. The boolean return value indicates
	// whether a value for the key was found.
	Get(tree, key string) (value []byte, loaded bool, err error)
	// Has returns whether a key exists in the named tree.
	Has(tree, key string) (loaded bool, err error)
	// Delete deletes a key-value pair. The boolean return value indicates
	// whether the key existed.
	Delete(tree, key string) (deleted bool, err error)
	// Scan returns up to limit tuples in ascending key order, starting at
	// from (or at the smallest key when from is empty). limit <= 0 means
	// no limit.
	Scan(tree, from string, limit int) (tuples []btree.Tuple[string, []byte], err error)
	// Flush commits the named tree's snapshot to disk and truncates its
	// journal.
	Flush(tree string) (err error)
	// GetTreeInfo returns metadata about the named tree.
	GetTreeInfo(tree string) (info btree.TreeInfo, err error)
	// Trees returns the names of all open trees.
	Trees() (names []string)
	// Close closes every open tree.
	Close() (err error)
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	errorCode := ""
	switch e.Code {
	case RetCInternalError:
		errorCode = "InternalError"
	case RetCInvalidOperation:
		errorCode = "InvalidOperation"
	case RetCNotFound:
		errorCode = "NotFound"
	default:
		errorCode = "Unknown"
	}

	return fmt.Sprintf("KVStoreError (code %s): %s", errorCode, e.Msg)
}

// NewError creates a new store error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

// RetCode classifies store errors
type RetCode uint64

const (
	RetCSuccess          RetCode = iota // 0: Command executed successfully.
	RetCInternalError                   // 1: Command failed due to an internal error.
	RetCInvalidOperation                // 2: Invalid operation (e.g. on a closed store).
	RetCNotFound                        // 3: The requested tree or key does not exist.
)
