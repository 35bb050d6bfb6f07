package state

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/calehh/surety-app/tx"
	"github.com/calehh/surety-app/types"
	abci_types "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/cosmos/iavl"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/syndtr/goleveldb/leveldb"
)

const (
	ModifiedFlagNew = 1 << 0
	ModifiedFlagMod = 1 << 1

	// HashHistoryDepth is how many past block hashes are retained as entropy.
	HashHistoryDepth = 256
)

var (
	KeyState        = "s"
	KeyAccountBody  = "a%x"
	KeyParams       = "p"
	KeyBlockHash    = "bh%d"
	KeyModulePrefix = "m/"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrTxSenderMismatch     = errors.New("tx sender mismatch")
	ErrTxNonceInvalid       = errors.New("nonce invalid")
	ErrTxSigInvalid         = errors.New("signature invalid")
	ErrAccountAlreadyExists = errors.New("account already exists")
	ErrInsufficientBalance  = errors.New("insufficient balance")
	ErrNotOwner             = errors.New("caller is not the owner")
	ErrParamsNotSet         = errors.New("params not set")
)

type State struct {
	logger cmtlog.Logger
	db     *iavl.MutableTree
	dbVer  int64

	header *StateHeader
	params *types.Params

	acnts         map[common.Address]*Account
	modifiedAcnts map[common.Address]uint32
	writes        map[string][]byte
	events        []abci_types.Event
}

func newState(db *iavl.MutableTree, logger cmtlog.Logger) *State {
	s := &State{
		logger:        logger,
		db:            db,
		dbVer:         0,
		header:        new(StateHeader),
		acnts:         make(map[common.Address]*Account),
		modifiedAcnts: make(map[common.Address]uint32),
		writes:        make(map[string][]byte),
	}
	return s
}

func (s *State) nextState() *State {
	n := &State{
		logger:        s.logger,
		db:            s.db,
		dbVer:         s.dbVer,
		params:        s.params,
		acnts:         make(map[common.Address]*Account),
		modifiedAcnts: make(map[common.Address]uint32),
		writes:        make(map[string][]byte),
	}
	n.header = s.header.Clone()
	if s.header.GetHash() != nil {
		n.header.Height = s.header.Height + 1
	}
	return n
}

func deepCopyMap[K comparable, V any](source map[K]V) map[K]V {
	res := make(map[K]V, len(source))
	for k, v := range source {
		switch x := any(v).(type) {
		case *Account:
			res[k] = any(x.Clone()).(V)
		case []byte:
			res[k] = any(cloneBytes(x)).(V)
		default:
			res[k] = v
		}
	}
	return res
}

// Clone branches the state for a single transaction. Discarding the clone
// aborts every change made through it.
func (s *State) Clone() *State {
	n := &State{
		logger:        s.logger,
		db:            s.db,
		dbVer:         s.dbVer,
		header:        s.header.Clone(),
		params:        s.params,
		acnts:         deepCopyMap(s.acnts),
		modifiedAcnts: deepCopyMap(s.modifiedAcnts),
		writes:        deepCopyMap(s.writes),
		events:        append([]abci_types.Event(nil), s.events...),
	}
	return n
}

func (s *State) load() (err error) {
	val, err := s.db.Get([]byte(KeyState))
	if err != nil && !isNotFound(err) {
		return err
	}
	if val != nil {
		err = s.header.Unmarshal(val)
		if err != nil {
			return
		}
		h := s.db.Hash()
		if h != nil {
			s.calcHash(h, true)
		}
	}
	val, err = s.db.Get([]byte(KeyParams))
	if err != nil && !isNotFound(err) {
		return err
	}
	err = nil
	if val != nil {
		p := new(types.Params)
		if err = rlp.DecodeBytes(val, p); err != nil {
			return
		}
		s.params = p
	}
	return
}

func isNotFound(err error) bool {
	return errors.Is(err, leveldb.ErrNotFound) || errors.Is(err, ErrNotFound)
}

func (s *State) calcHash(rootHash []byte, update bool) (h common.Hash) {
	h = crypto.Keccak256Hash(rootHash)
	if update {
		s.header.RootHash = cloneBytes(rootHash)
		s.header.Hash = cloneBytes(h[:])
	}
	return
}

// Update flushes buffered writes into the working tree and returns the
// resulting state hash. It does not save a version.
func (s *State) Update() (h common.Hash, err error) {
	var hash []byte
	defer func() {
		if hash == nil {
			s.db.Rollback()
		}
	}()
	_, err = s.db.Set([]byte(KeyState), s.header.Marshal())
	if err != nil {
		return
	}

	keys := make([]string, 0, len(s.writes))
	for k := range s.writes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		_, err = s.db.Set([]byte(k), s.writes[k])
		if err != nil {
			return
		}
	}

	addrs := make([]common.Address, 0, len(s.modifiedAcnts))
	for addr := range s.modifiedAcnts {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool {
		return bytes.Compare(addrs[i][:], addrs[j][:]) < 0
	})
	for _, addr := range addrs {
		acnt := s.acnts[addr]
		var val []byte
		val, err = acnt.encode()
		if err != nil {
			return
		}
		_, err = s.db.Set([]byte(fmt.Sprintf(KeyAccountBody, addr[:])), val)
		if err != nil {
			return
		}
	}
	hash = s.db.WorkingHash()
	h = s.calcHash(hash, false)
	s.writes = make(map[string][]byte)
	s.modifiedAcnts = make(map[common.Address]uint32)
	return
}

func (s *State) save() (h common.Hash, err error) {
	hash, ver, err := s.db.SaveVersion()
	if err != nil {
		return h, err
	}

	s.dbVer = ver
	h = s.calcHash(hash, true)

	return
}

// Get reads a module key, preferring writes buffered in this state.
func (s *State) Get(key []byte) ([]byte, error) {
	k := KeyModulePrefix + string(key)
	if v, ok := s.writes[k]; ok {
		return v, nil
	}
	v, err := s.db.Get([]byte(k))
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return v, nil
}

func (s *State) Set(key, val []byte) error {
	if len(key) == 0 {
		return errors.New("empty key")
	}
	s.writes[KeyModulePrefix+string(key)] = cloneBytes(val)
	return nil
}

func (s *State) Emit(ev abci_types.Event) {
	s.events = append(s.events, ev)
}

// TakeEvents returns the events emitted so far and clears the buffer.
func (s *State) TakeEvents() []abci_types.Event {
	evs := s.events
	s.events = nil
	return evs
}

func (s *State) Now() uint64 {
	return s.header.Time
}

func (s *State) Operational() bool {
	return s.header.Operational
}

func (s *State) Owner() common.Address {
	return common.BytesToAddress(s.header.Owner)
}

func (s *State) SetOwner(owner common.Address) {
	s.header.Owner = cloneBytes(owner[:])
}

// SetOperating flips the operational switch; only the genesis owner may.
func (s *State) SetOperating(caller common.Address, operational bool) (event *types.EventOperating, err error) {
	if caller != s.Owner() {
		err = ErrNotOwner
		return
	}
	s.header.Operational = operational
	event = &types.EventOperating{Operational: operational, Owner: caller.Hex()}
	return
}

// BeginBlock stamps height and time of the block being executed and
// records its hash in the entropy ring when known.
func (s *State) BeginBlock(height uint64, unixTime uint64, hash []byte) error {
	s.header.Height = height
	if unixTime > s.header.Time {
		s.header.Time = unixTime
	}
	if len(hash) == 0 {
		return nil
	}
	val, err := rlp.EncodeToBytes(&blockHash{Height: height, Hash: common.BytesToHash(hash)})
	if err != nil {
		return err
	}
	s.writes[fmt.Sprintf(KeyBlockHash, height%HashHistoryDepth)] = val
	return nil
}

type blockHash struct {
	Height uint64
	Hash   common.Hash
}

func (s *State) Depth() uint64 {
	return HashHistoryDepth
}

// Seed returns the hash of the block back blocks before the current one, or
// the zero hash when that block is outside the retained history.
func (s *State) Seed(back uint64) common.Hash {
	if back == 0 || back >= HashHistoryDepth || back > s.header.Height {
		return common.Hash{}
	}
	target := s.header.Height - back
	key := fmt.Sprintf(KeyBlockHash, target%HashHistoryDepth)
	val, ok := s.writes[key]
	if !ok {
		var err error
		val, err = s.db.Get([]byte(key))
		if err != nil || val == nil {
			return common.Hash{}
		}
	}
	var bh blockHash
	if err := rlp.DecodeBytes(val, &bh); err != nil || bh.Height != target {
		return common.Hash{}
	}
	return bh.Hash
}

func (s *State) Params() (*types.Params, error) {
	if s.params == nil {
		return nil, ErrParamsNotSet
	}
	p := *s.params
	return &p, nil
}

func (s *State) SetParams(p *types.Params) error {
	val, err := rlp.EncodeToBytes(p)
	if err != nil {
		return err
	}
	cp := *p
	s.params = &cp
	s.writes[KeyParams] = val
	return nil
}

// GetAccount returns the account for addr; unknown addresses yield nil.
func (s *State) GetAccount(addr common.Address) (acnt *Account, err error) {
	acnt = s.acnts[addr]
	if acnt != nil {
		return
	}
	val, err := s.db.Get([]byte(fmt.Sprintf(KeyAccountBody, addr[:])))
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if val == nil {
		return nil, nil
	}
	acnt, err = decodeAccount(val)
	if err != nil {
		return nil, err
	}
	s.acnts[addr] = acnt
	return
}

func (s *State) getOrNewAccount(addr common.Address) (*Account, error) {
	a, err := s.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	if a == nil {
		a = &Account{Address: addr}
		s.acnts[addr] = a
		s.modifiedAcnts[addr] |= ModifiedFlagNew
	}
	return a, nil
}

func (s *State) markModified(a *Account) {
	s.modifiedAcnts[a.Address] |= ModifiedFlagMod
}

func (s *State) AddAccount(acnt *Account) (err error) {
	a, err := s.GetAccount(acnt.Address)
	if err != nil {
		return err
	}
	if a != nil {
		err = ErrAccountAlreadyExists
		return
	}
	s.acnts[acnt.Address] = acnt.Clone()
	s.modifiedAcnts[acnt.Address] = ModifiedFlagNew
	return
}

func (s *State) move(from, to common.Address, amount uint64) error {
	if amount == 0 {
		return nil
	}
	src, err := s.getOrNewAccount(from)
	if err != nil {
		return err
	}
	if src.Balance < amount {
		return fmt.Errorf("%w: %s has %d, needs %d", ErrInsufficientBalance, from.Hex(), src.Balance, amount)
	}
	dst, err := s.getOrNewAccount(to)
	if err != nil {
		return err
	}
	src.Balance -= amount
	dst.Balance += amount
	s.markModified(src)
	s.markModified(dst)
	return nil
}

// Transfer pays amount out of the escrow account.
func (s *State) Transfer(to common.Address, amount uint64) error {
	return s.move(EscrowAddress, to, amount)
}

// Prepay consumes the tx nonce and moves the attached value into escrow.
func (s *State) Prepay(btx *tx.SuretyTx) error {
	a, err := s.getOrNewAccount(btx.From)
	if err != nil {
		return err
	}
	a.Nonce += 1
	s.markModified(a)
	return s.move(btx.From, EscrowAddress, btx.Value)
}

// BumpNonce consumes the nonce of a tx whose execution failed.
func (s *State) BumpNonce(addr common.Address) error {
	a, err := s.getOrNewAccount(addr)
	if err != nil {
		return err
	}
	a.Nonce += 1
	s.markModified(a)
	return nil
}

func (s *State) Verify(btx *tx.SuretyTx, allowNonceGap bool) (succ bool, err error) {
	sender, err := btx.Sender(s.header.ChainId)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrTxSigInvalid, err)
	}
	if sender != btx.From {
		err = ErrTxSenderMismatch
		return
	}
	a, err := s.GetAccount(btx.From)
	if err != nil {
		return succ, err
	}
	var nonce uint64
	if a != nil {
		nonce = a.Nonce
	}
	if !(nonce == btx.Nonce || (allowNonceGap && nonce < btx.Nonce)) {
		err = ErrTxNonceInvalid
		return
	}
	succ = true
	return
}

func (s *State) Header() *StateHeader {
	return s.header
}

func (s *State) Hash() (h common.Hash) {
	if s.header.Hash != nil {
		copy(h[:], s.header.Hash)
	}
	return
}

func (s *State) SetChainId(chainId string) {
	s.header.ChainId = chainId
}

// ExportJSON renders an account for ABCI queries.
func (s *State) ExportJSON(addr common.Address) ([]byte, error) {
	a, err := s.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	if a == nil {
		a = &Account{Address: addr}
	}
	return json.Marshal(a)
}

// Iterate walks persisted module keys under prefix in key order. Writes
// still buffered in this state are not visited.
func (s *State) Iterate(prefix []byte, fn func(key, val []byte) (stop bool)) error {
	start := append([]byte(KeyModulePrefix), prefix...)
	it, err := s.db.Iterator(start, PrefixEndBytes(start), true)
	if err != nil {
		return err
	}
	defer it.Close()
	for ; it.Valid(); it.Next() {
		if fn(it.Key()[len(KeyModulePrefix):], it.Value()) {
			break
		}
	}
	return it.Error()
}

func PrefixEndBytes(prefix []byte) []byte {
	if len(prefix) == 0 {
		return nil
	}
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for {
		if end[len(end)-1] != byte(255) {
			end[len(end)-1]++
			break
		}
		end = end[:len(end)-1]
		if len(end) == 0 {
			end = nil
			break
		}
	}
	return end
}
