package surety

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
)

const (
	prefixAirline   = "airline/"
	prefixVote      = "vote/"
	prefixFlight    = "flight/"
	prefixPolicies  = "policies/"
	prefixCredited  = "credited/"
	prefixCredit    = "credit/"
	prefixPaid      = "paid/"
	prefixOracle    = "oracle/"
	prefixRequest   = "request/"
	keyAirlineCount = "airline_count"
	keyOracleNonce  = "oracle_nonce"
)

// store is an RLP-encoded keyed collection inside the ledger.
type store[T any] struct {
	ledger Ledger
	prefix string
}

func newStore[T any](l Ledger, prefix string) *store[T] {
	return &store[T]{ledger: l, prefix: prefix}
}

func (s *store[T]) key(id []byte) []byte {
	k := make([]byte, 0, len(s.prefix)+len(id))
	k = append(k, s.prefix...)
	return append(k, id...)
}

// get returns nil when id is absent.
func (s *store[T]) get(id []byte) (*T, error) {
	raw, err := s.ledger.Get(s.key(id))
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}
	v := new(T)
	if err := rlp.DecodeBytes(raw, v); err != nil {
		return nil, fmt.Errorf("decode %s%x: %w", s.prefix, id, err)
	}
	return v, nil
}

func (s *store[T]) put(id []byte, v *T) error {
	raw, err := rlp.EncodeToBytes(v)
	if err != nil {
		return err
	}
	return s.ledger.Set(s.key(id), raw)
}

// counter is a single uint64 cell.
type counter struct {
	s *store[uint64]
}

func newCounter(l Ledger, key string) counter {
	return counter{s: newStore[uint64](l, key)}
}

func (c counter) get() (uint64, error) {
	v, err := c.s.get(nil)
	if err != nil || v == nil {
		return 0, err
	}
	return *v, nil
}

func (c counter) set(v uint64) error {
	return c.s.put(nil, &v)
}

// Keys exposes storage prefixes to readers that iterate the ledger directly.
var Keys = struct {
	Airline, Flight, Policies, Credit, Paid, Oracle, Request string
}{
	Airline:  prefixAirline,
	Flight:   prefixFlight,
	Policies: prefixPolicies,
	Credit:   prefixCredit,
	Paid:     prefixPaid,
	Oracle:   prefixOracle,
	Request:  prefixRequest,
}
