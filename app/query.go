package app

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/calehh/surety-app/state"
	"github.com/calehh/surety-app/surety"
	"github.com/calehh/surety-app/tx"
	"github.com/calehh/surety-app/tx/handler"
	"github.com/calehh/surety-app/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
)

const (
	QueryCodeOK       uint32 = 0
	QueryCodeNotFound uint32 = 1
	QueryCodeInvalid  uint32 = 2
	QueryCodeNoPath   uint32 = 404
)

var (
	ErrQueryNotFound = errors.New("not found")
	ErrQueryData     = errors.New("malformed query data")
)

func (app *SuretyApp) registerQuerier() {
	app.queriers["/accounts/"] = NewAccountQuerier(app.db, app.logger)
	for path, fn := range map[string]queryFunc{
		"/airlines/": queryAirlines,
		"/flights/":  queryFlight,
		"/policies/": queryPolicies,
		"/credits/":  queryCredit,
		"/paid/":     queryPaid,
		"/oracles/":  queryOracle,
		"/requests/": queryRequest,
		"/params/":   queryParams,
		"/status/":   queryStatus,
	} {
		app.queriers[path] = NewSuretyQuerier(app.db, app.logger, fn)
	}
}

func (app *SuretyApp) Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error) {
	path := req.Path
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	q, ok := app.queriers[path]
	if !ok {
		res = &abcitypes.ResponseQuery{}
		res.Code = QueryCodeNoPath
		return
	}
	res, err = q.Query(ctx, req)
	return
}

type Querier interface {
	Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error)
}

type AccountQuerier struct {
	db     *state.StateDB
	logger cmtlog.Logger
}

func NewAccountQuerier(db *state.StateDB, logger cmtlog.Logger) (q *AccountQuerier) {
	q = &AccountQuerier{
		db:     db,
		logger: logger,
	}
	return
}

func (q *AccountQuerier) Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error) {
	res = &abcitypes.ResponseQuery{}
	if len(req.Data) != common.AddressLength {
		res.Code = QueryCodeInvalid
		res.Log = ErrQueryData.Error()
		return
	}
	addr := common.BytesToAddress(req.Data)
	a, height, err1 := q.db.GetAccountByAddress(addr)
	if err1 != nil {
		q.logger.Error("query account fail", "err", err1)
		res.Code = QueryCodeNotFound
		res.Log = err1.Error()
		return
	}
	if a == nil {
		a = &state.Account{Address: addr}
	}
	res.Value, _ = a.MarshalJSON()
	res.Height = int64(height)
	return
}

type queryFunc func(s *surety.Surety, st *state.State, data []byte) (any, error)

// SuretyQuerier answers a query against the committed state.
type SuretyQuerier struct {
	db     *state.StateDB
	logger cmtlog.Logger
	fn     queryFunc
}

func NewSuretyQuerier(db *state.StateDB, logger cmtlog.Logger, fn queryFunc) *SuretyQuerier {
	return &SuretyQuerier{db: db, logger: logger, fn: fn}
}

func (q *SuretyQuerier) Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error) {
	res = &abcitypes.ResponseQuery{}
	err1 := q.db.View(func(st *state.State) error {
		s, err := handler.NewSurety(st, q.logger)
		if err != nil {
			return err
		}
		v, err := q.fn(s, st, req.Data)
		if err != nil {
			return err
		}
		res.Value, err = json.Marshal(v)
		res.Height = int64(st.Header().Height)
		return err
	})
	switch {
	case err1 == nil:
	case errors.Is(err1, ErrQueryNotFound):
		res.Code = QueryCodeNotFound
		res.Log = err1.Error()
	case errors.Is(err1, ErrQueryData):
		res.Code = QueryCodeInvalid
		res.Log = err1.Error()
	default:
		q.logger.Error("query fail", "path", req.Path, "err", err1)
		res.Code = QueryCodeNotFound
		res.Log = err1.Error()
	}
	return
}

func addressArg(data []byte) (common.Address, error) {
	if len(data) != common.AddressLength {
		return common.Address{}, ErrQueryData
	}
	return common.BytesToAddress(data), nil
}

func hashArg(data []byte) (common.Hash, error) {
	if len(data) != common.HashLength {
		return common.Hash{}, ErrQueryData
	}
	return common.BytesToHash(data), nil
}

func notNil[T any](v *T, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, ErrQueryNotFound
	}
	return v, nil
}

// AirlineInfo is an airline with its pending admission votes.
type AirlineInfo struct {
	types.Airline
	Votes *types.AirlineVote `json:"votes,omitempty"`
}

// queryAirlines lists every airline for empty data, or one airline.
func queryAirlines(s *surety.Surety, st *state.State, data []byte) (any, error) {
	if len(data) == 0 {
		out := make([]types.Airline, 0)
		var decodeErr error
		err := st.Iterate([]byte(surety.Keys.Airline), func(_, val []byte) bool {
			var a types.Airline
			if decodeErr = rlp.DecodeBytes(val, &a); decodeErr != nil {
				return true
			}
			out = append(out, a)
			return false
		})
		if err == nil {
			err = decodeErr
		}
		return out, err
	}
	addr, err := addressArg(data)
	if err != nil {
		return nil, err
	}
	a, err := s.Airlines.Airline(addr)
	if err != nil {
		return nil, err
	}
	v, err := s.Airlines.Votes(addr)
	if err != nil {
		return nil, err
	}
	if a == nil && v == nil {
		return nil, ErrQueryNotFound
	}
	info := &AirlineInfo{Votes: v}
	if a != nil {
		info.Airline = *a
	} else {
		info.Address = addr
		info.Name = v.Name
	}
	return info, nil
}

func queryFlight(s *surety.Surety, st *state.State, data []byte) (any, error) {
	key, err := hashArg(data)
	if err != nil {
		return nil, err
	}
	return notNil(s.Flights.Flight(key))
}

// PolicyInfo lists a flight's policies and whether they were credited.
type PolicyInfo struct {
	Key      common.Hash    `json:"key"`
	Credited bool           `json:"credited"`
	Policies []types.Policy `json:"policies"`
}

func queryPolicies(s *surety.Surety, st *state.State, data []byte) (any, error) {
	key, err := hashArg(data)
	if err != nil {
		return nil, err
	}
	ps, err := s.Insurance.Policies(key)
	if err != nil {
		return nil, err
	}
	credited, err := s.Insurance.Credited(key)
	if err != nil {
		return nil, err
	}
	if ps == nil {
		ps = []types.Policy{}
	}
	return &PolicyInfo{Key: key, Credited: credited, Policies: ps}, nil
}

func queryCredit(s *surety.Surety, st *state.State, data []byte) (any, error) {
	addr, err := addressArg(data)
	if err != nil {
		return nil, err
	}
	c, err := s.Insurance.Credit(addr)
	if err != nil {
		return nil, err
	}
	return map[string]uint64{"credit": c}, nil
}

// queryPaid takes insuree address followed by flight key.
func queryPaid(s *surety.Surety, st *state.State, data []byte) (any, error) {
	if len(data) != common.AddressLength+common.HashLength {
		return nil, ErrQueryData
	}
	insuree := common.BytesToAddress(data[:common.AddressLength])
	key := common.BytesToHash(data[common.AddressLength:])
	paid, err := s.Insurance.PaidAmount(insuree, key)
	if err != nil {
		return nil, err
	}
	return map[string]uint64{"paid": paid}, nil
}

func queryOracle(s *surety.Surety, st *state.State, data []byte) (any, error) {
	addr, err := addressArg(data)
	if err != nil {
		return nil, err
	}
	return notNil(s.Oracles.Oracle(addr))
}

// RequestQuery selects a status request; it is sent JSON encoded.
type RequestQuery struct {
	Index uint8 `json:"index"`
	tx.FlightRef
}

func queryRequest(s *surety.Surety, st *state.State, data []byte) (any, error) {
	var rq RequestQuery
	if err := json.Unmarshal(data, &rq); err != nil {
		return nil, errors.Join(ErrQueryData, err)
	}
	return notNil(s.Oracles.Request(rq.Index, rq.Airline, rq.Flight, rq.Timestamp))
}

func queryParams(s *surety.Surety, st *state.State, data []byte) (any, error) {
	return st.Params()
}

// ChainStatus summarises the application state.
type ChainStatus struct {
	ChainId      string         `json:"chain_id"`
	Height       uint64         `json:"height"`
	Time         uint64         `json:"time"`
	Operational  bool           `json:"operational"`
	Owner        common.Address `json:"owner"`
	AirlineCount uint64         `json:"airline_count"`
	Escrow       uint64         `json:"escrow"`
}

func queryStatus(s *surety.Surety, st *state.State, data []byte) (any, error) {
	n, err := s.Airlines.Count()
	if err != nil {
		return nil, err
	}
	escrow, err := st.GetAccount(state.EscrowAddress)
	if err != nil {
		return nil, err
	}
	h := st.Header()
	cs := &ChainStatus{
		ChainId:      h.ChainId,
		Height:       h.Height,
		Time:         h.Time,
		Operational:  st.Operational(),
		Owner:        st.Owner(),
		AirlineCount: n,
	}
	if escrow != nil {
		cs.Escrow = escrow.Balance
	}
	return cs, nil
}
