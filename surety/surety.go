// Package surety holds the flight-delay insurance rules: airline admission,
// flight registration, the insurance escrow and payout bookkeeping, and the
// oracle consensus that settles flight status.
//
// Every component reads and writes through a Ledger. Callers are expected to
// hand in a ledger branch scoped to one transaction and to discard it when an
// operation returns an error.
package surety

import (
	"github.com/calehh/surety-app/types"
	abci "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"
)

// Ledger is the key/value state, clock, value transfer and event log the
// rules run against.
type Ledger interface {
	Get(key []byte) ([]byte, error)
	Set(key, val []byte) error
	Now() uint64
	Operational() bool
	// Transfer pays amount out of the application escrow.
	Transfer(to common.Address, amount uint64) error
	Emit(ev abci.Event)
}

// SeedProvider supplies entropy that was unknown when the current operation
// was submitted. Seed(back) for back >= Depth() is the zero hash.
type SeedProvider interface {
	Seed(back uint64) common.Hash
	Depth() uint64
}

type Surety struct {
	Airlines  *AirlineRegistry
	Flights   *FlightRegistry
	Insurance *InsuranceLedger
	Oracles   *OracleEngine
}

func New(ledger Ledger, seeds SeedProvider, params types.Params, logger cmtlog.Logger) *Surety {
	logger = logger.With("module", "surety")
	airlines := NewAirlineRegistry(ledger, params, logger)
	flights := NewFlightRegistry(ledger, airlines, logger)
	return &Surety{
		Airlines:  airlines,
		Flights:   flights,
		Insurance: NewInsuranceLedger(ledger, params, airlines, flights, logger),
		Oracles:   NewOracleEngine(ledger, seeds, params, flights, logger),
	}
}
