package surety

import (
	"fmt"
	"math/big"

	"github.com/calehh/surety-app/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// FlightKey derives the unique key of (airline, designator, timestamp).
func FlightKey(airline common.Address, designator string, timestamp uint64) common.Hash {
	return crypto.Keccak256Hash(
		airline.Bytes(),
		[]byte(designator),
		common.BigToHash(new(big.Int).SetUint64(timestamp)).Bytes(),
	)
}

type FlightRegistry struct {
	ledger   Ledger
	logger   cmtlog.Logger
	airlines *AirlineRegistry

	flights *store[types.Flight]
}

func NewFlightRegistry(ledger Ledger, airlines *AirlineRegistry, logger cmtlog.Logger) *FlightRegistry {
	return &FlightRegistry{
		ledger:   ledger,
		logger:   logger.With("component", "flights"),
		airlines: airlines,
		flights:  newStore[types.Flight](ledger, prefixFlight),
	}
}

func (r *FlightRegistry) Flight(key common.Hash) (*types.Flight, error) {
	return r.flights.get(key[:])
}

func (r *FlightRegistry) IsRegistered(key common.Hash) (bool, error) {
	f, err := r.Flight(key)
	if err != nil {
		return false, err
	}
	return f != nil && f.IsRegistered, nil
}

func (r *FlightRegistry) RegisterFlight(airline common.Address, designator string, timestamp uint64, caller common.Address) (key common.Hash, err error) {
	key = FlightKey(airline, designator, timestamp)
	err = check(
		operational(r.ledger),
		callerIs(caller, airline),
		registeredAirline(r.airlines, airline),
		fundedAirline(r.airlines, airline),
		inFuture(r.ledger, timestamp),
		func() error {
			ok, err := r.IsRegistered(key)
			if err != nil {
				return err
			}
			if ok {
				return fmt.Errorf("%w: flight %s", ErrAlreadyRegistered, key.Hex())
			}
			return nil
		},
	)
	if err != nil {
		return
	}
	f := &types.Flight{
		Key:          key,
		Airline:      airline,
		Designator:   designator,
		Timestamp:    timestamp,
		IsRegistered: true,
		StatusCode:   types.StatusUnknown,
	}
	if err = r.flights.put(key[:], f); err != nil {
		return
	}
	r.ledger.Emit(types.EncodeEventFlightRegistered(&types.EventFlightRegistered{
		Key:        key,
		Airline:    airline,
		Designator: designator,
		Timestamp:  timestamp,
	}))
	return
}

// recordStatus is the only writer of flight status and is reached through
// oracle quorum.
func (r *FlightRegistry) recordStatus(key common.Hash, code types.StatusCode, now uint64) (*types.Flight, error) {
	f, err := r.Flight(key)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, fmt.Errorf("%w: %s", ErrFlightNotRegistered, key.Hex())
	}
	f.StatusCode = code
	f.UpdatedTimestamp = now
	if err = r.flights.put(key[:], f); err != nil {
		return nil, err
	}
	r.logger.Info("flight status recorded", "flight", key.Hex(), "status", code.String())
	return f, nil
}
