package surety

import (
	"testing"

	"github.com/calehh/surety-app/types"
	abci "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

type memLedger struct {
	kv          map[string][]byte
	now         uint64
	operational bool
	escrow      uint64
	paid        map[common.Address]uint64
	events      []abci.Event
}

func newMemLedger() *memLedger {
	return &memLedger{
		kv:          make(map[string][]byte),
		now:         1_000,
		operational: true,
		paid:        make(map[common.Address]uint64),
	}
}

func (m *memLedger) Get(key []byte) ([]byte, error) { return m.kv[string(key)], nil }

func (m *memLedger) Set(key, val []byte) error {
	m.kv[string(key)] = append([]byte(nil), val...)
	return nil
}

func (m *memLedger) Now() uint64       { return m.now }
func (m *memLedger) Operational() bool { return m.operational }
func (m *memLedger) Emit(ev abci.Event) { m.events = append(m.events, ev) }

func (m *memLedger) Transfer(to common.Address, amount uint64) error {
	if m.escrow < amount {
		return ErrInvariantViolation
	}
	m.escrow -= amount
	m.paid[to] += amount
	return nil
}

func (m *memLedger) eventsOf(tp string) []abci.Event {
	var out []abci.Event
	for _, ev := range m.events {
		if ev.Type == tp {
			out = append(out, ev)
		}
	}
	return out
}

// snapshot copies the key space so tests can assert nothing changed.
func (m *memLedger) snapshot() map[string]string {
	s := make(map[string]string, len(m.kv))
	for k, v := range m.kv {
		s[k] = string(v)
	}
	return s
}

type fakeSeeds struct {
	depth uint64
	base  common.Hash
}

func (f fakeSeeds) Seed(back uint64) common.Hash {
	if back >= f.depth {
		return common.Hash{}
	}
	return crypto.Keccak256Hash(f.base[:], []byte{byte(back)})
}

func (f fakeSeeds) Depth() uint64 { return f.depth }

func addr(n byte) common.Address {
	return common.BytesToAddress([]byte{0xa0, n})
}

type fixture struct {
	t      *testing.T
	ledger *memLedger
	params types.Params
	s      *Surety
}

func newFixture(t *testing.T) *fixture {
	l := newMemLedger()
	p := types.DefaultParams()
	return &fixture{
		t:      t,
		ledger: l,
		params: p,
		s:      New(l, fakeSeeds{depth: 256, base: common.HexToHash("0x5eed")}, p, cmtlog.NewNopLogger()),
	}
}

// fundedAirlines admits founder plus n-1 more airlines and funds all of them.
func (f *fixture) fundedAirlines(n int) []common.Address {
	f.t.Helper()
	founder := addr(1)
	require.NoError(f.t, f.s.Airlines.AdmitBootstrap(founder, "Founder Air"))
	require.NoError(f.t, f.s.Airlines.Fund(founder, f.params.MinFunding, founder))
	out := []common.Address{founder}
	for i := 2; i <= n; i++ {
		a := addr(byte(i))
		ok, _, err := f.s.Airlines.RegisterAirline(a, "Air", founder)
		require.NoError(f.t, err)
		require.True(f.t, ok)
		require.NoError(f.t, f.s.Airlines.Fund(a, f.params.MinFunding, a))
		out = append(out, a)
	}
	return out
}
