package state

import (
	"testing"

	"github.com/calehh/surety-app/tx"
	"github.com/calehh/surety-app/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testChainId = "surety-test"

func openDB(t *testing.T, dir string) *StateDB {
	t.Helper()
	db, err := NewStateDB(dir, 0, cmtlog.NewNopLogger())
	require.NoError(t, err)
	return db
}

// commitBlock runs fn on the next state and commits it.
func commitBlock(t *testing.T, db *StateDB, height, unixTime uint64, fn func(st *State)) common.Hash {
	t.Helper()
	st := db.NewState()
	require.NoError(t, st.BeginBlock(height, unixTime, crypto.Keccak256([]byte{byte(height)})))
	if fn != nil {
		fn(st)
	}
	working, err := st.Update()
	require.NoError(t, err)
	saved, err := db.SetState(st)
	require.NoError(t, err)
	require.Equal(t, working, saved)
	return saved
}

func genesis(t *testing.T, db *StateDB, owner common.Address) {
	t.Helper()
	st := db.NewState()
	st.SetChainId(testChainId)
	st.SetOwner(owner)
	require.NoError(t, st.BeginBlock(0, 100, nil))
	p := types.DefaultParams()
	require.NoError(t, st.SetParams(&p))
	_, err := st.SetOperating(owner, true)
	require.NoError(t, err)
	require.NoError(t, st.AddAccount(&Account{Address: owner, Balance: 1000}))
	_, err = st.Update()
	require.NoError(t, err)
	_, err = db.SetState(st)
	require.NoError(t, err)
}

func TestStatePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	owner := common.HexToAddress("0x01")
	db := openDB(t, dir)
	genesis(t, db, owner)
	hash := commitBlock(t, db, 1, 110, func(st *State) {
		require.NoError(t, st.Set([]byte("flight/a"), []byte("one")))
		require.NoError(t, st.Set([]byte("flight/b"), []byte("two")))
	})
	require.NoError(t, db.Close())

	db = openDB(t, dir)
	defer db.Close()
	h := db.Header()
	assert.Equal(t, uint64(1), h.Height)
	assert.Equal(t, uint64(110), h.Time)
	assert.Equal(t, testChainId, h.ChainId)
	assert.Equal(t, hash.Bytes(), h.Hash)

	err := db.View(func(st *State) error {
		assert.True(t, st.Operational())
		assert.Equal(t, owner, st.Owner())
		p, err := st.Params()
		require.NoError(t, err)
		assert.Equal(t, types.DefaultParams(), *p)
		v, err := st.Get([]byte("flight/a"))
		require.NoError(t, err)
		assert.Equal(t, []byte("one"), v)

		var keys []string
		require.NoError(t, st.Iterate([]byte("flight/"), func(key, val []byte) bool {
			keys = append(keys, string(key))
			return false
		}))
		assert.Equal(t, []string{"flight/a", "flight/b"}, keys)
		return nil
	})
	require.NoError(t, err)

	a, height, err := db.GetAccountByAddress(owner)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), height)
	assert.Equal(t, uint64(1000), a.Balance)
}

func TestNextStateAdvancesHeight(t *testing.T) {
	db := openDB(t, t.TempDir())
	defer db.Close()
	genesis(t, db, common.HexToAddress("0x01"))
	st := db.NewState()
	assert.Equal(t, uint64(1), st.Header().Height)
}

func TestTimeNeverGoesBack(t *testing.T) {
	db := openDB(t, t.TempDir())
	defer db.Close()
	st := db.NewState()
	require.NoError(t, st.BeginBlock(1, 500, nil))
	require.NoError(t, st.BeginBlock(2, 400, nil))
	assert.Equal(t, uint64(500), st.Now())
}

func TestSeedReadsBlockHashHistory(t *testing.T) {
	db := openDB(t, t.TempDir())
	defer db.Close()
	genesis(t, db, common.HexToAddress("0x01"))
	for h := uint64(1); h <= 3; h++ {
		commitBlock(t, db, h, 100+h, nil)
	}
	st := db.NewState()
	require.NoError(t, st.BeginBlock(4, 200, nil))

	assert.Equal(t, common.BytesToHash(crypto.Keccak256([]byte{3})), st.Seed(1))
	assert.Equal(t, common.BytesToHash(crypto.Keccak256([]byte{1})), st.Seed(3))
	assert.Equal(t, common.Hash{}, st.Seed(0))
	assert.Equal(t, common.Hash{}, st.Seed(5))
	assert.Equal(t, common.Hash{}, st.Seed(HashHistoryDepth))
	assert.Equal(t, uint64(HashHistoryDepth), st.Depth())
}

func TestCloneIsolatesWrites(t *testing.T) {
	db := openDB(t, t.TempDir())
	defer db.Close()
	owner := common.HexToAddress("0x01")
	genesis(t, db, owner)
	st := db.NewState()
	require.NoError(t, st.Set([]byte("k"), []byte("base")))

	branch := st.Clone()
	require.NoError(t, branch.Set([]byte("k"), []byte("branch")))
	require.NoError(t, branch.Transfer(owner, 0))
	branch.Emit(types.EncodeEventPayout(&types.EventPayout{Insuree: owner, Amount: 1}))

	v, err := st.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("base"), v)
	assert.Empty(t, st.TakeEvents())
	assert.Len(t, branch.TakeEvents(), 1)
	assert.Empty(t, branch.TakeEvents())
}

func TestPrepayAndTransfer(t *testing.T) {
	db := openDB(t, t.TempDir())
	defer db.Close()
	owner := common.HexToAddress("0x01")
	genesis(t, db, owner)
	st := db.NewState()

	btx := &tx.SuretyTx{From: owner, Value: 300}
	require.NoError(t, st.Prepay(btx))
	a, err := st.GetAccount(owner)
	require.NoError(t, err)
	assert.Equal(t, uint64(700), a.Balance)
	assert.Equal(t, uint64(1), a.Nonce)
	escrow, err := st.GetAccount(EscrowAddress)
	require.NoError(t, err)
	assert.Equal(t, uint64(300), escrow.Balance)

	insuree := common.HexToAddress("0x02")
	require.NoError(t, st.Transfer(insuree, 120))
	got, err := st.GetAccount(insuree)
	require.NoError(t, err)
	assert.Equal(t, uint64(120), got.Balance)

	err = st.Transfer(insuree, 1000)
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	err = st.Prepay(&tx.SuretyTx{From: insuree, Value: 5000})
	assert.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestSetOperatingOwnerOnly(t *testing.T) {
	db := openDB(t, t.TempDir())
	defer db.Close()
	owner := common.HexToAddress("0x01")
	genesis(t, db, owner)
	st := db.NewState()

	_, err := st.SetOperating(common.HexToAddress("0x02"), false)
	assert.ErrorIs(t, err, ErrNotOwner)
	assert.True(t, st.Operational())

	ev, err := st.SetOperating(owner, false)
	require.NoError(t, err)
	assert.False(t, ev.Operational)
	assert.False(t, st.Operational())
}

func TestVerifyNonce(t *testing.T) {
	db := openDB(t, t.TempDir())
	defer db.Close()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	from := crypto.PubkeyToAddress(key.PublicKey)
	genesis(t, db, from)
	st := db.NewState()

	sign := func(nonce uint64) *tx.SuretyTx {
		btx := &tx.SuretyTx{
			Version: tx.SuretyTxVersion1,
			Type:    tx.SuretyTxTypeWithdraw,
			Nonce:   nonce,
			From:    from,
			Tx:      &tx.WithdrawTx{},
		}
		require.NoError(t, btx.Sign(key, testChainId))
		return btx
	}

	ok, err := st.Verify(sign(0), false)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = st.Verify(sign(2), false)
	assert.ErrorIs(t, err, ErrTxNonceInvalid)
	ok, err = st.Verify(sign(2), true)
	require.NoError(t, err)
	assert.True(t, ok)

	forged := sign(0)
	forged.From = common.HexToAddress("0x09")
	_, err = st.Verify(forged, false)
	assert.ErrorIs(t, err, ErrTxSenderMismatch)
}

func TestPrefixEndBytes(t *testing.T) {
	assert.Equal(t, []byte("m/b"), PrefixEndBytes([]byte("m/a")))
	assert.Equal(t, []byte{0x02}, PrefixEndBytes([]byte{0x01, 0xff}))
	assert.Nil(t, PrefixEndBytes(nil))
}

func TestStateDBPrunesOldVersions(t *testing.T) {
	db, err := NewStateDB(t.TempDir(), 2, cmtlog.NewNopLogger())
	require.NoError(t, err)
	defer db.Close()
	genesis(t, db, common.HexToAddress("0x01"))
	for h := uint64(1); h <= 4; h++ {
		commitBlock(t, db, h, 100+h*10, nil)
	}
	assert.Equal(t, int64(5), db.Version())
	assert.False(t, db.tree.VersionExists(1))
	assert.False(t, db.tree.VersionExists(3))
	assert.True(t, db.tree.VersionExists(4))
	assert.True(t, db.tree.VersionExists(5))
	assert.Equal(t, uint64(4), db.Header().Height)
}
