package surety

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/calehh/surety-app/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// RequestKey derives the key of a status request for one oracle index.
func RequestKey(index uint8, airline common.Address, designator string, timestamp uint64) common.Hash {
	return crypto.Keccak256Hash(
		[]byte{index},
		airline.Bytes(),
		[]byte(designator),
		common.BigToHash(new(big.Int).SetUint64(timestamp)).Bytes(),
	)
}

type OracleEngine struct {
	ledger  Ledger
	seeds   SeedProvider
	params  types.Params
	logger  cmtlog.Logger
	flights *FlightRegistry

	oracles  *store[types.Oracle]
	requests *store[types.StatusRequest]
	nonce    counter
}

func NewOracleEngine(ledger Ledger, seeds SeedProvider, params types.Params, flights *FlightRegistry, logger cmtlog.Logger) *OracleEngine {
	return &OracleEngine{
		ledger:   ledger,
		seeds:    seeds,
		params:   params,
		logger:   logger.With("component", "oracles"),
		flights:  flights,
		oracles:  newStore[types.Oracle](ledger, prefixOracle),
		requests: newStore[types.StatusRequest](ledger, prefixRequest),
		nonce:    newCounter(ledger, keyOracleNonce),
	}
}

func (e *OracleEngine) Oracle(addr common.Address) (*types.Oracle, error) {
	return e.oracles.get(addr[:])
}

func (e *OracleEngine) Request(index uint8, airline common.Address, designator string, timestamp uint64) (*types.StatusRequest, error) {
	key := RequestKey(index, airline, designator, timestamp)
	return e.requests.get(key[:])
}

// drawIndex mixes the seed nonce+1 blocks back with account and nonce.
func (e *OracleEngine) drawIndex(account common.Address) (uint8, error) {
	nonce, err := e.nonce.get()
	if err != nil {
		return 0, err
	}
	seed := e.seeds.Seed(nonce + 1)
	var nb [8]byte
	binary.BigEndian.PutUint64(nb[:], nonce)
	h := crypto.Keccak256(seed[:], account[:], nb[:])

	idx := new(uint256.Int).SetBytes(h)
	idx.Mod(idx, uint256.NewInt(uint64(e.params.IndexRange)))

	nonce++
	if nonce > e.params.NonceWrap {
		nonce = 0
	}
	if err = e.nonce.set(nonce); err != nil {
		return 0, err
	}
	return uint8(idx.Uint64()), nil
}

// maxDraws bounds rejection sampling; the nonce cycles so an unlucky seed
// window could otherwise repeat forever.
const maxDraws = 1024

func (e *OracleEngine) drawIndexes(account common.Address) (idx [3]uint8, err error) {
	draws := 0
	next := func() (uint8, error) {
		draws++
		if draws > maxDraws {
			return 0, fmt.Errorf("%w: index sampling did not converge", ErrInvariantViolation)
		}
		return e.drawIndex(account)
	}
	if idx[0], err = next(); err != nil {
		return
	}
	for idx[1] = idx[0]; idx[1] == idx[0]; {
		if idx[1], err = next(); err != nil {
			return
		}
	}
	for idx[2] = idx[0]; idx[2] == idx[0] || idx[2] == idx[1]; {
		if idx[2], err = next(); err != nil {
			return
		}
	}
	return
}

// RegisterOracle admits payer as an oracle for fee, already escrowed by the
// ledger, and assigns its three indexes. An oracle registers once.
func (e *OracleEngine) RegisterOracle(payer common.Address, fee uint64) (*types.Oracle, error) {
	err := check(
		operational(e.ledger),
		valueAtLeast(fee, e.params.OracleFee),
		func() error {
			o, err := e.Oracle(payer)
			if err != nil {
				return err
			}
			if o != nil && o.IsRegistered {
				return fmt.Errorf("%w: oracle %s", ErrAlreadyRegistered, payer.Hex())
			}
			return nil
		},
	)
	if err != nil {
		return nil, err
	}
	idx, err := e.drawIndexes(payer)
	if err != nil {
		return nil, err
	}
	o := &types.Oracle{Address: payer, IsRegistered: true, Indexes: idx}
	if err = e.oracles.put(payer[:], o); err != nil {
		return nil, err
	}
	e.ledger.Emit(types.EncodeEventOracleRegistered(&types.EventOracleRegistered{
		Oracle:  payer,
		Indexes: idx,
	}))
	return o, nil
}

// RequestStatus opens a request under a freshly drawn index and broadcasts
// it. Reopening an existing request keeps the responses it has collected.
func (e *OracleEngine) RequestStatus(airline common.Address, designator string, timestamp uint64, requester common.Address) (index uint8, err error) {
	key := FlightKey(airline, designator, timestamp)
	err = check(
		operational(e.ledger),
		func() error {
			ok, err := e.flights.IsRegistered(key)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%w: %s", ErrFlightNotRegistered, key.Hex())
			}
			return nil
		},
	)
	if err != nil {
		return
	}
	index, err = e.drawIndex(requester)
	if err != nil {
		return
	}
	rkey := RequestKey(index, airline, designator, timestamp)
	req, err := e.requests.get(rkey[:])
	if err != nil {
		return
	}
	if req == nil {
		req = &types.StatusRequest{
			Key:        rkey,
			Index:      index,
			Airline:    airline,
			Designator: designator,
			Timestamp:  timestamp,
		}
	}
	req.Requester = requester
	req.IsOpen = true
	if err = e.requests.put(rkey[:], req); err != nil {
		return
	}
	e.ledger.Emit(types.EncodeEventOracleRequest(&types.EventOracleRequest{
		Index:      index,
		Airline:    airline,
		Designator: designator,
		Timestamp:  timestamp,
		Requester:  requester,
	}))
	return
}

// SubmitResponse records an oracle's report. The first status code whose
// reporters reach Quorum settles the flight; later reports to the same
// request are kept but change nothing. Each request settles on its own, so a
// later request reaching quorum records its status over an earlier one.
func (e *OracleEngine) SubmitResponse(oracle common.Address, index uint8, airline common.Address, designator string, timestamp uint64, code types.StatusCode) (finalized bool, err error) {
	rkey := RequestKey(index, airline, designator, timestamp)
	var req *types.StatusRequest
	err = check(
		operational(e.ledger),
		func() error {
			o, err := e.Oracle(oracle)
			if err != nil {
				return err
			}
			if o == nil || !o.IsRegistered {
				return fmt.Errorf("%w: %s is not a registered oracle", ErrUnauthorized, oracle.Hex())
			}
			if !o.HasIndex(index) {
				return fmt.Errorf("%w: index %d not in %v", ErrIndexMismatch, index, o.Indexes)
			}
			return nil
		},
		func() error {
			r, err := e.requests.get(rkey[:])
			if err != nil {
				return err
			}
			if r == nil || !r.IsOpen {
				return fmt.Errorf("%w: index %d flight %s/%d", ErrRequestNotOpen, index, designator, timestamp)
			}
			req = r
			return nil
		},
		func() error {
			if !code.Valid() {
				return fmt.Errorf("%w: %d", ErrInvalidStatus, uint8(code))
			}
			return nil
		},
		func() error {
			if req.HasReported(oracle) {
				return fmt.Errorf("%w: %s", ErrAlreadyReported, oracle.Hex())
			}
			return nil
		},
	)
	if err != nil {
		return
	}

	i := req.Reported(code)
	if i < 0 {
		req.Responses = append(req.Responses, types.StatusResponses{Code: code})
		i = len(req.Responses) - 1
	}
	req.Responses[i].Oracles = append(req.Responses[i].Oracles, oracle)
	count := uint64(len(req.Responses[i].Oracles))
	e.ledger.Emit(types.EncodeEventOracleReport(&types.EventOracleReport{
		Oracle:     oracle,
		Index:      index,
		Airline:    airline,
		Designator: designator,
		Timestamp:  timestamp,
		Status:     code,
		Count:      count,
	}))

	if count == e.params.Quorum && !req.Finalized {
		now := e.ledger.Now()
		var f *types.Flight
		f, err = e.flights.recordStatus(FlightKey(airline, designator, timestamp), code, now)
		if err != nil {
			return
		}
		req.Finalized = true
		finalized = true
		e.ledger.Emit(types.EncodeEventFlightStatus(&types.EventFlightStatus{
			Key:        f.Key,
			Airline:    airline,
			Designator: designator,
			Timestamp:  timestamp,
			Status:     code,
			UpdatedAt:  now,
		}))
	}
	err = e.requests.put(rkey[:], req)
	return
}
