package btree

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/bKV/lib/btree/util"
	"github.com/ValentinKolb/bKV/lib/logger"
	"github.com/ValentinKolb/bKV/lib/serializer"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

// Constants for engine behavior and file naming
const (
	DefaultPageSize        = 16          // Default number of entries per page
	DefaultWriteBufferSize = 4096 * 250  // Default write buffer size, around 1 MB
	DefaultJournal         = "mavibot.log" // Default journal file name
	DataSuffix             = ".data"     // Default data file suffix
	JournalSuffix          = ".log"      // Default journal file suffix

	// DefaultReadTimeout is the delay after which the reaper closes a read
	// transaction that was never closed by its owner
	DefaultReadTimeout = 10 * time.Second
)

// --------------------------------------------------------------------------
// Configuration
// --------------------------------------------------------------------------

// Config configures a BTree during initialization
type Config[K any, V any] struct {
	Name            string                           // Tree name, used in logs and metrics
	Directory       string                           // Base directory; empty means in-memory
	FileName        string                           // Data file name (default: Name + DataSuffix)
	JournalName     string                           // Journal file name (default: FileName + JournalSuffix)
	PageSize        int                              // Entries per page (coerced, see SetPageSize)
	ReadTimeout     time.Duration                    // Read transaction timeout (0 = default: 10 sec)
	WriteBufferSize int                              // Buffer size for checkpoint writes (0 = default: 1 MB)
	KeySerializer   serializer.ElementSerializer[K]  // Required
	ValueSerializer serializer.ElementSerializer[V]  // Required
	Logger          logger.ILogger                   // Optional custom logger
}

// --------------------------------------------------------------------------
// Core BTree structure
// --------------------------------------------------------------------------

// rootRef wraps the published root so it can live in an atomic pointer.
// Storing and loading the pointer gives the release/acquire semantics the
// MVCC protocol needs: a reader that observes a new root also observes
// every page it transitively references.
type rootRef[K any, V any] struct {
	page page[K, V]
}

// BTree is an embedded, in-process ordered key-value store built on a
// persistent (copy-on-write) B+Tree with MVCC. One writer at a time
// mutates the tree under the writer lock and publishes a new root; any
// number of readers traverse pinned snapshots without locks.
type BTree[K any, V any] struct {
	name     string
	pageSize int

	keySerializer   serializer.ElementSerializer[K]
	valueSerializer serializer.ElementSerializer[V]

	root              atomic.Pointer[rootRef[K, V]] // The published root page
	revision          atomic.Int64                  // Revision generator
	recordIdGenerator atomic.Int64                  // RecordId generator
	nbElems           atomic.Int64                  // Elements reachable from the current root

	// writeLock serializes all mutations, held across root publication
	writeLock sync.Mutex

	// readTransactions is walked from the head by the reaper
	readTransactions *util.TxnList[Transaction[K, V]]

	// modificationsQueue feeds the journal goroutine; nil for in-memory trees
	modificationsQueue *util.MPSC[modification[K, V]]

	file           string // Data file path; empty for in-memory trees
	journal        string // Journal file path
	inMemory       bool
	journalEnabled bool // Mutated only under the writer lock (disabled during replay)

	readTimeout     atomic.Int64 // Read transaction timeout in nanoseconds
	writeBufferSize int

	closed     atomic.Bool
	reaperStop chan struct{}
	background sync.WaitGroup

	log     logger.ILogger
	metrics *treeMetrics
}

// --------------------------------------------------------------------------
// Initialization and Setup
// --------------------------------------------------------------------------

// New creates a BTree from the given configuration. With a Directory set,
// an existing data file is loaded and a non-empty journal is replayed
// before the tree becomes visible; the journal and reaper goroutines are
// running when New returns.
//
// Thread-safety: This function is not thread-safe and should only be
// called once per tree during initialization.
func New[K any, V any](cfg Config[K, V]) (*BTree[K, V], error) {
	if cfg.KeySerializer == nil || cfg.ValueSerializer == nil {
		return nil, ErrNoSerializer
	}

	bt := &BTree[K, V]{
		name:             cfg.Name,
		keySerializer:    cfg.KeySerializer,
		valueSerializer:  cfg.ValueSerializer,
		readTransactions: util.NewTxnList[Transaction[K, V]](),
		reaperStop:       make(chan struct{}),
		log:              cfg.Logger,
		writeBufferSize:  cfg.WriteBufferSize,
	}

	bt.SetPageSize(cfg.PageSize)

	if bt.log == nil {
		bt.log = logger.CreateLogger("btree/" + bt.name)
	}

	if bt.writeBufferSize <= 0 {
		bt.writeBufferSize = DefaultWriteBufferSize
	}

	readTimeout := cfg.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}
	bt.readTimeout.Store(int64(readTimeout))

	bt.metrics = newTreeMetrics(bt.name)

	// The first root is an empty leaf at revision 0
	bt.root.Store(&rootRef[K, V]{page: newEmptyLeaf(bt)})

	bt.inMemory = cfg.Directory == ""

	if !bt.inMemory {
		bt.modificationsQueue = util.NewMPSC[modification[K, V]]()
		bt.resolveFiles(cfg)

		if err := bt.recover(); err != nil {
			return nil, err
		}

		bt.journalEnabled = true

		bt.background.Add(1)
		go bt.journalManager()
	}

	bt.background.Add(1)
	go bt.transactionReaper()

	return bt, nil
}

// NewInMemory creates a tree without a backing file or journal
func NewInMemory[K any, V any](name string, keySerializer serializer.ElementSerializer[K], valueSerializer serializer.ElementSerializer[V]) (*BTree[K, V], error) {
	return New(Config[K, V]{
		Name:            name,
		KeySerializer:   keySerializer,
		ValueSerializer: valueSerializer,
	})
}

// resolveFiles determines the data and journal file paths. A configured
// file name that exists is used as is; otherwise the data file gets the
// DataSuffix. The journal sits alongside the data file.
func (bt *BTree[K, V]) resolveFiles(cfg Config[K, V]) {
	fileName := cfg.FileName
	if fileName == "" {
		fileName = bt.name
	}

	candidate := filepath.Join(cfg.Directory, fileName)
	if _, err := os.Stat(candidate); err == nil {
		bt.file = candidate
	} else {
		bt.file = filepath.Join(cfg.Directory, fileName+DataSuffix)
	}

	journalName := cfg.JournalName
	if journalName == "" {
		if fileName != "" {
			journalName = fileName + JournalSuffix
		} else {
			journalName = DefaultJournal
		}
	}
	bt.journal = filepath.Join(cfg.Directory, journalName)
}

// getPowerOf2 gets the number which is a power of 2 immediately above the
// given positive number
func getPowerOf2(size int) int {
	newSize := size - 1
	newSize |= newSize >> 1
	newSize |= newSize >> 2
	newSize |= newSize >> 4
	newSize |= newSize >> 8
	newSize |= newSize >> 16
	newSize++

	return newSize
}

// SetPageSize sets the maximum number of elements stored in a page. Values
// below or equal to 2 fall back to the default of 16; any other value is
// rounded up to the next power of two.
//
// Thread-safety: only call before the tree is shared.
func (bt *BTree[K, V]) SetPageSize(pageSize int) {
	if pageSize <= 2 {
		pageSize = DefaultPageSize
	}

	bt.pageSize = getPowerOf2(pageSize)
}

// --------------------------------------------------------------------------
// Generators and helpers
// --------------------------------------------------------------------------

// generateRecordId returns a new incremental recordId, used only by page
// constructors
func (bt *BTree[K, V]) generateRecordId() int64 {
	return bt.recordIdGenerator.Add(1)
}

// comparePtr compares two optional keys: two absent keys compare equal, an
// absent key is strictly greater than any present key.
func (bt *BTree[K, V]) comparePtr(a, b *K) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	default:
		return bt.keySerializer.Compare(*a, *b)
	}
}

// isNil reports whether a generic element is a nil pointer, slice, map,
// interface, function or channel. Value types are never nil.
func isNil(element any) bool {
	if element == nil {
		return true
	}

	v := reflect.ValueOf(element)
	switch v.Kind() {
	case reflect.Ptr, reflect.Slice, reflect.Map, reflect.Interface, reflect.Func, reflect.Chan:
		return v.IsNil()
	default:
		return false
	}
}

// --------------------------------------------------------------------------
// Write Operations
// --------------------------------------------------------------------------

// Insert inserts an entry into the tree. If the key already exists its
// value is replaced and the previous value is returned with replaced=true.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (bt *BTree[K, V]) Insert(key K, value V) (previous V, replaced bool, err error) {
	var zero V

	if bt.closed.Load() {
		return zero, false, ErrClosed
	}
	if isNil(key) {
		return zero, false, ErrNilKey
	}

	bt.writeLock.Lock()
	defer bt.writeLock.Unlock()

	revision := bt.revision.Add(1)
	old := bt.insertLocked(revision, key, value, bt.journalEnabled)

	bt.metrics.inserts.Inc()

	if old == nil {
		return zero, false, nil
	}
	return *old, true, nil
}

// insertLocked applies one insertion with the given revision and publishes
// the new root. The caller must hold the writer lock. Returns the replaced
// value, if any.
func (bt *BTree[K, V]) insertLocked(revision int64, key K, value V, journal bool) *V {
	root := bt.root.Load().page

	result := root.insert(revision, key, value)

	var old *V

	switch res := result.(type) {
	case modifyResult[K, V]:
		bt.root.Store(&rootRef[K, V]{page: res.modifiedPage})
		old = res.modifiedValue

	case splitResult[K, V]:
		// The root itself split: publish a fresh two-child root holding
		// the promoted pivot
		bt.root.Store(&rootRef[K, V]{page: newRootNode(bt, revision, res.pivot, res.leftPage, res.rightPage)})
	}

	if old == nil {
		bt.nbElems.Add(1)
	}

	if journal && bt.modificationsQueue != nil {
		bt.modificationsQueue.Push(&modification[K, V]{kind: modAddition, key: key, value: value})
	}

	return old
}

// Delete removes the entry with the given key. The removed tuple is
// returned with found=true when the key existed.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (bt *BTree[K, V]) Delete(key K) (removed Tuple[K, V], found bool, err error) {
	var zero Tuple[K, V]

	if bt.closed.Load() {
		return zero, false, ErrClosed
	}
	if isNil(key) {
		return zero, false, ErrNilKey
	}

	bt.writeLock.Lock()
	defer bt.writeLock.Unlock()

	revision := bt.revision.Add(1)
	removed, found = bt.deleteLocked(revision, key, bt.journalEnabled)

	bt.metrics.deletes.Inc()

	return removed, found, nil
}

// DeleteValue removes the entry with the given key only if its stored
// value equals the given value under the value serializer's order.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (bt *BTree[K, V]) DeleteValue(key K, value V) (removed Tuple[K, V], found bool, err error) {
	var zero Tuple[K, V]

	if bt.closed.Load() {
		return zero, false, ErrClosed
	}
	if isNil(key) {
		return zero, false, ErrNilKey
	}
	if isNil(value) {
		return zero, false, ErrNilValue
	}

	bt.writeLock.Lock()
	defer bt.writeLock.Unlock()

	stored, ok := bt.root.Load().page.get(key)
	if !ok || bt.valueSerializer.Compare(stored, value) != 0 {
		return zero, false, nil
	}

	revision := bt.revision.Add(1)
	removed, found = bt.deleteLocked(revision, key, bt.journalEnabled)

	bt.metrics.deletes.Inc()

	return removed, found, nil
}

// deleteLocked applies one deletion with the given revision and publishes
// the new root. The caller must hold the writer lock.
func (bt *BTree[K, V]) deleteLocked(revision int64, key K, journal bool) (Tuple[K, V], bool) {
	var zero Tuple[K, V]

	root := bt.root.Load().page

	result := root.remove(revision, key, nil, -1)

	switch res := result.(type) {
	case notPresentResult[K, V]:
		// Deleting an absent key is a no-op: no root change, no count
		// change, no journal record
		return zero, false

	case removeResult[K, V]:
		newRoot := res.modifiedPage

		// A root node left without separators collapses onto its single
		// surviving child
		if nodeRoot, ok := newRoot.(*node[K, V]); ok && nodeRoot.nbElements() == 0 {
			newRoot = nodeRoot.children[0]
		}

		bt.root.Store(&rootRef[K, V]{page: newRoot})
		bt.nbElems.Add(-1)

		if journal && bt.modificationsQueue != nil {
			bt.modificationsQueue.Push(&modification[K, V]{kind: modDeletion, key: key})
		}

		return res.removedElement, true
	}

	panic("unreachable delete result at root")
}

// --------------------------------------------------------------------------
// Read Operations
// --------------------------------------------------------------------------

// Get returns the value associated with the key. Returns ErrKeyNotFound
// when the key is absent.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (bt *BTree[K, V]) Get(key K) (V, error) {
	var zero V

	if bt.closed.Load() {
		return zero, ErrClosed
	}

	bt.metrics.gets.Inc()

	value, ok := bt.root.Load().page.get(key)
	if !ok {
		return zero, ErrKeyNotFound
	}

	return value, nil
}

// Exist checks whether an element is associated with the given key.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (bt *BTree[K, V]) Exist(key K) (bool, error) {
	if bt.closed.Load() {
		return false, ErrClosed
	}

	return bt.root.Load().page.exist(key), nil
}

// Browse creates a cursor over the full key range of the current snapshot.
// The cursor owns a read transaction; closing the cursor closes it.
//
// Thread-safety: This method is thread-safe; the returned cursor is not.
func (bt *BTree[K, V]) Browse() (*Cursor[K, V], error) {
	if bt.closed.Load() {
		return nil, ErrClosed
	}

	bt.metrics.browses.Inc()

	return bt.browse(), nil
}

// BrowseFrom creates a cursor positioned on the given key, or on the first
// key greater than it when the key is absent.
//
// Thread-safety: This method is thread-safe; the returned cursor is not.
func (bt *BTree[K, V]) BrowseFrom(key K) (*Cursor[K, V], error) {
	if bt.closed.Load() {
		return nil, ErrClosed
	}

	bt.metrics.browses.Inc()

	transaction := bt.beginReadTransaction()
	stack := transaction.rootPage.positionAt(key, nil)

	return newCursor(transaction, stack), nil
}

// browse creates a full-range cursor without the closed guard; also used
// internally by the checkpoint after Close
func (bt *BTree[K, V]) browse() *Cursor[K, V] {
	transaction := bt.beginReadTransaction()
	stack := transaction.rootPage.position(nil)

	return newCursor(transaction, stack)
}

// beginReadTransaction pins the current root. The transaction is
// registered for the reaper; if it is not closed explicitly it will be
// closed automatically after the read timeout.
func (bt *BTree[K, V]) beginReadTransaction() *Transaction[K, V] {
	transaction := newTransaction(bt.root.Load().page, bt.revision.Load())

	bt.readTransactions.Append(transaction)

	return transaction
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

// Flush commits the current snapshot to the data file and truncates the
// journal. See checkpoint in persistence.go for the atomic replace
// protocol.
//
// Thread-safety: This method is thread-safe; it blocks writers for the
// duration of the checkpoint.
func (bt *BTree[K, V]) Flush() error {
	if bt.closed.Load() {
		return ErrClosed
	}

	return bt.flush()
}

func (bt *BTree[K, V]) flush() error {
	if bt.inMemory {
		return nil
	}

	bt.writeLock.Lock()
	defer bt.writeLock.Unlock()

	if err := bt.checkpoint(); err != nil {
		return err
	}

	return bt.resetJournal()
}

// Close stops the background goroutines, drains the journal, performs a
// final flush and clears the root. Closing is idempotent.
//
// Thread-safety: This method is thread-safe.
func (bt *BTree[K, V]) Close() error {
	if !bt.closed.CompareAndSwap(false, true) {
		return nil
	}

	// Stop the reaper immediately and release all pinned transactions
	close(bt.reaperStop)

	for _, transaction := range bt.readTransactions.Clear() {
		transaction.Close()
	}

	if !bt.inMemory {
		// The poison pill makes the journal goroutine drain every pending
		// record before it exits
		bt.modificationsQueue.Push(&modification[K, V]{kind: modPoisonPill})
		bt.modificationsQueue.Close()
	}

	bt.background.Wait()

	var err error
	if !bt.inMemory {
		err = bt.flush()
	}

	bt.root.Store(&rootRef[K, V]{page: newEmptyLeaf(bt)})
	bt.nbElems.Store(0)

	return err
}

// --------------------------------------------------------------------------
// Accessors
// --------------------------------------------------------------------------

// Name returns the tree name
func (bt *BTree[K, V]) Name() string {
	return bt.name
}

// PageSize returns the maximum number of elements per page
func (bt *BTree[K, V]) PageSize() int {
	return bt.pageSize
}

// NbElems returns the number of (key, value) pairs reachable from the
// current root
func (bt *BTree[K, V]) NbElems() int64 {
	return bt.nbElems.Load()
}

// Revision returns the revision of the most recent mutation
func (bt *BTree[K, V]) Revision() int64 {
	return bt.revision.Load()
}

// ReadTimeout returns the read transaction timeout
func (bt *BTree[K, V]) ReadTimeout() time.Duration {
	return time.Duration(bt.readTimeout.Load())
}

// SetReadTimeout sets the read transaction timeout used by the reaper
func (bt *BTree[K, V]) SetReadTimeout(timeout time.Duration) {
	if timeout > 0 {
		bt.readTimeout.Store(int64(timeout))
	}
}

// IsInMemory returns whether the tree has no backing file
func (bt *BTree[K, V]) IsInMemory() bool {
	return bt.inMemory
}

// File returns the data file path, empty for in-memory trees
func (bt *BTree[K, V]) File() string {
	return bt.file
}

// Journal returns the journal file path, empty for in-memory trees
func (bt *BTree[K, V]) Journal() string {
	return bt.journal
}

// TreeInfo describes a tree for diagnostics
type TreeInfo struct {
	Name     string `json:"name"`
	PageSize int    `json:"page_size"`
	NbElems  int64  `json:"nb_elems"`
	Revision int64  `json:"revision"`
	InMemory bool   `json:"in_memory"`
	File     string `json:"file,omitempty"`
	Journal  string `json:"journal,omitempty"`
}

// GetInfo returns information about the tree
func (bt *BTree[K, V]) GetInfo() TreeInfo {
	return TreeInfo{
		Name:     bt.name,
		PageSize: bt.pageSize,
		NbElems:  bt.nbElems.Load(),
		Revision: bt.revision.Load(),
		InMemory: bt.inMemory,
		File:     bt.file,
		Journal:  bt.journal,
	}
}

// String renders a summary of the tree followed by a dump of its pages
func (bt *BTree[K, V]) String() string {
	kind := "BTree"
	if bt.inMemory {
		kind = "In-memory BTree"
	}

	return fmt.Sprintf("%s(name:%s, pageSize:%d, nbElems:%d, revision:%d):\n%s",
		kind, bt.name, bt.pageSize, bt.nbElems.Load(), bt.revision.Load(),
		bt.root.Load().page.dump(""))
}
