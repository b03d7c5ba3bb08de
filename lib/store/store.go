package store

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/bKV/lib/btree"
	"github.com/ValentinKolb/bKV/lib/logger"
	"github.com/ValentinKolb/bKV/lib/serializer"
	"github.com/puzpuzpuz/xsync/v3"
)

// Config configures a store
type Config struct {
	// Directory holds one data and one journal file per tree. Empty means
	// every tree is in-memory.
	Directory string
	// PageSize is handed to every tree (0 = engine default)
	PageSize int
	// ReadTimeout is handed to every tree (0 = engine default)
	ReadTimeout time.Duration
	// Logger is an optional custom logger
	Logger logger.ILogger
}

// storeImpl manages a set of named string -> []byte trees. The registry is
// a concurrent map so the hot path (looking up an already open tree) never
// takes a lock; creation of missing trees is serialized separately.
type storeImpl struct {
	cfg    Config
	trees  *xsync.MapOf[string, *btree.BTree[string, []byte]]
	mu     sync.Mutex // guards tree creation only
	closed atomic.Bool
	log    logger.ILogger
}

// NewStore creates a store over the given directory. Trees are opened (and
// recovered, if data or journal files exist) lazily on first use.
func NewStore(cfg Config) IStore {
	log := cfg.Logger
	if log == nil {
		log = logger.CreateLogger("store")
	}

	return &storeImpl{
		cfg:   cfg,
		trees: xsync.NewMapOf[string, *btree.BTree[string, []byte]](),
		log:   log,
	}
}

// tree returns the named tree, opening it on first use.
func (s *storeImpl) tree(name string) (*btree.BTree[string, []byte], error) {
	if s.closed.Load() {
		return nil, NewError(RetCInvalidOperation, "store is closed")
	}
	if name == "" {
		return nil, NewError(RetCInvalidOperation, "tree name must not be empty")
	}

	if tree, ok := s.trees.Load(name); ok {
		return tree, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another goroutine may have created the tree while we waited
	if tree, ok := s.trees.Load(name); ok {
		return tree, nil
	}

	tree, err := btree.New(btree.Config[string, []byte]{
		Name:            name,
		Directory:       s.cfg.Directory,
		PageSize:        s.cfg.PageSize,
		ReadTimeout:     s.cfg.ReadTimeout,
		KeySerializer:   serializer.NewStringSerializer(),
		ValueSerializer: serializer.NewBytesSerializer(),
		Logger:          s.cfg.Logger,
	})
	if err != nil {
		return nil, NewError(RetCInternalError, err.Error())
	}

	s.trees.Store(name, tree)
	s.log.Infof("opened tree %q", name)

	return tree, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Set(treeName, key string, value []byte) error {
	tree, err := s.tree(treeName)
	if err != nil {
		return err
	}

	if _, _, err := tree.Insert(key, value); err != nil {
		return NewError(RetCInternalError, err.Error())
	}
	return nil
}

func (s *storeImpl) Get(treeName, key string) ([]byte, bool, error) {
	tree, err := s.tree(treeName)
	if err != nil {
		return nil, false, err
	}

	value, err := tree.Get(key)
	if errors.Is(err, btree.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, NewError(RetCInternalError, err.Error())
	}

	return value, true, nil
}

func (s *storeImpl) Has(treeName, key string) (bool, error) {
	tree, err := s.tree(treeName)
	if err != nil {
		return false, err
	}

	exists, err := tree.Exist(key)
	if err != nil {
		return false, NewError(RetCInternalError, err.Error())
	}
	return exists, nil
}

func (s *storeImpl) Delete(treeName, key string) (bool, error) {
	tree, err := s.tree(treeName)
	if err != nil {
		return false, err
	}

	_, found, err := tree.Delete(key)
	if err != nil {
		return false, NewError(RetCInternalError, err.Error())
	}
	return found, nil
}

func (s *storeImpl) Scan(treeName, from string, limit int) ([]btree.Tuple[string, []byte], error) {
	tree, err := s.tree(treeName)
	if err != nil {
		return nil, err
	}

	var cursor *btree.Cursor[string, []byte]
	if from == "" {
		cursor, err = tree.Browse()
	} else {
		cursor, err = tree.BrowseFrom(from)
	}
	if err != nil {
		return nil, NewError(RetCInternalError, err.Error())
	}
	defer cursor.Close()

	var tuples []btree.Tuple[string, []byte]
	for cursor.HasNext() {
		if limit > 0 && len(tuples) >= limit {
			break
		}

		tuple, ok := cursor.Next()
		if !ok {
			break
		}
		tuples = append(tuples, tuple)
	}

	return tuples, nil
}

func (s *storeImpl) Flush(treeName string) error {
	tree, err := s.tree(treeName)
	if err != nil {
		return err
	}

	if err := tree.Flush(); err != nil {
		return NewError(RetCInternalError, err.Error())
	}
	return nil
}

func (s *storeImpl) GetTreeInfo(treeName string) (btree.TreeInfo, error) {
	tree, err := s.tree(treeName)
	if err != nil {
		return btree.TreeInfo{}, err
	}

	return tree.GetInfo(), nil
}

func (s *storeImpl) Trees() []string {
	var names []string

	s.trees.Range(func(name string, _ *btree.BTree[string, []byte]) bool {
		names = append(names, name)
		return true
	})

	return names
}

func (s *storeImpl) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	var firstErr error

	s.trees.Range(func(name string, tree *btree.BTree[string, []byte]) bool {
		if err := tree.Close(); err != nil && firstErr == nil {
			firstErr = NewError(RetCInternalError, err.Error())
		}
		s.trees.Delete(name)
		return true
	})

	return firstErr
}
