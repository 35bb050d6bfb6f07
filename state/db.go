package state

import (
	"fmt"
	"sync"

	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/cosmos/iavl"
	dbm "github.com/cosmos/iavl/db"
	"github.com/ethereum/go-ethereum/common"
)

const treeCacheSize = 128

// StateDB owns the versioned tree and the last committed State. Blocks run
// on states derived from it and are published back through SetState.
type StateDB struct {
	mtx sync.RWMutex

	dir          string
	logger       cmtlog.Logger
	tree         *iavl.MutableTree
	keepVersions int64

	state *State
}

// NewStateDB opens the goleveldb-backed tree under dir. keepVersions bounds
// how many committed versions stay on disk; 0 keeps all of them.
func NewStateDB(dir string, keepVersions int64, logger cmtlog.Logger) (*StateDB, error) {
	logger = logger.With("module", "statedb")
	ldb, err := dbm.NewDB("surety", "goleveldb", dir)
	if err != nil {
		return nil, fmt.Errorf("open leveldb %s: %w", dir, err)
	}
	tree := iavl.NewMutableTree(ldb, treeCacheSize, true, Cometbft2CosmosLogger(logger))
	version, err := tree.Load()
	if err != nil {
		return nil, fmt.Errorf("load tree: %w", err)
	}
	st := newState(tree, logger)
	if err = st.load(); err != nil {
		return nil, fmt.Errorf("load state at version %d: %w", version, err)
	}
	st.dbVer = version
	logger.Info("state loaded", "version", version, "height", st.header.Height)
	return &StateDB{
		dir:          dir,
		logger:       logger,
		tree:         tree,
		keepVersions: keepVersions,
		state:        st,
	}, nil
}

func (db *StateDB) Close() error {
	return db.tree.Close()
}

func (db *StateDB) Header() *StateHeader {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	return db.state.Header().Clone()
}

// Version is the tree version of the committed state.
func (db *StateDB) Version() int64 {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	return db.state.dbVer
}

func (db *StateDB) State() *State {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	return db.state
}

// NewState starts the state of the next block.
func (db *StateDB) NewState() *State {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	return db.state.nextState()
}

// SetState saves st as a new tree version, makes it the committed state
// and drops versions older than the retention window.
func (db *StateDB) SetState(st *State) (common.Hash, error) {
	db.mtx.Lock()
	defer db.mtx.Unlock()
	hash, err := st.save()
	if err != nil {
		return common.Hash{}, err
	}
	db.state = st
	db.prune(st.dbVer)
	return hash, nil
}

func (db *StateDB) prune(version int64) {
	if db.keepVersions <= 0 || version <= db.keepVersions {
		return
	}
	to := version - db.keepVersions
	if err := db.tree.DeleteVersionsTo(to); err != nil {
		// pruning is retried at the next commit
		db.logger.Error("prune state versions fail", "to", to, "err", err)
	}
}

// View runs fn against the committed state under the read lock.
func (db *StateDB) View(fn func(st *State) error) error {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	return fn(db.state.Clone())
}

func (db *StateDB) GetAccountByAddress(addr common.Address) (acnt *Account, height uint64, err error) {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	acnt, err = db.state.Clone().GetAccount(addr)
	if err != nil {
		return
	}
	height = db.state.header.Height
	return
}
