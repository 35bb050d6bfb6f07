package surety

import (
	"testing"

	"github.com/calehh/surety-app/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOracleIndexesDistinctAndInRange(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 300; i++ {
		o, err := f.s.Oracles.RegisterOracle(common.BytesToAddress([]byte{0xbe, byte(i >> 8), byte(i)}), f.params.OracleFee)
		require.NoError(t, err)
		idx := o.Indexes
		for _, v := range idx {
			assert.Less(t, v, f.params.IndexRange)
		}
		assert.NotEqual(t, idx[0], idx[1])
		assert.NotEqual(t, idx[0], idx[2])
		assert.NotEqual(t, idx[1], idx[2])
	}
	nonce, err := f.s.Oracles.nonce.get()
	require.NoError(t, err)
	assert.LessOrEqual(t, nonce, f.params.NonceWrap)
}

func TestRegisterOracle(t *testing.T) {
	f := newFixture(t)
	oracle := addr(70)

	_, err := f.s.Oracles.RegisterOracle(oracle, f.params.OracleFee-1)
	assert.ErrorIs(t, err, ErrInsufficientValue)

	o, err := f.s.Oracles.RegisterOracle(oracle, f.params.OracleFee)
	require.NoError(t, err)
	stored, err := f.s.Oracles.Oracle(oracle)
	require.NoError(t, err)
	assert.Equal(t, o, stored)

	_, err = f.s.Oracles.RegisterOracle(oracle, f.params.OracleFee)
	assert.ErrorIs(t, err, ErrAlreadyRegistered)

	evs := f.ledger.eventsOf(types.EventOracleRegisteredType)
	require.Len(t, evs, 1)
	ev := types.DecodeEventOracleRegistered(evs[0])
	require.NotNil(t, ev)
	assert.Equal(t, o.Indexes, ev.Indexes)
}

func TestDrawIndexNonceWraps(t *testing.T) {
	f := newFixture(t)
	for i := uint64(0); i <= f.params.NonceWrap; i++ {
		_, err := f.s.Oracles.drawIndex(addr(1))
		require.NoError(t, err)
	}
	nonce, err := f.s.Oracles.nonce.get()
	require.NoError(t, err)
	assert.Zero(t, nonce)
}

// quorumFixture registers a flight, opens a request and enrols oracles
// until at least three of them own the request's index.
type quorumFixture struct {
	*fixture
	airline common.Address
	key     common.Hash
	index   uint8
	matched []common.Address
	other   []common.Address
}

func newQuorumFixture(t *testing.T) *quorumFixture {
	f := newFixture(t)
	airline := f.fundedAirlines(1)[0]
	key := f.flight(airline, "SA100")
	index, err := f.s.Oracles.RequestStatus(airline, "SA100", departure, addr(60))
	require.NoError(t, err)

	q := &quorumFixture{fixture: f, airline: airline, key: key, index: index}
	for i := 0; len(q.matched) < 5 || len(q.other) < 1; i++ {
		require.Less(t, i, 500)
		a := common.BytesToAddress([]byte{0x0c, byte(i >> 8), byte(i)})
		o, err := f.s.Oracles.RegisterOracle(a, f.params.OracleFee)
		require.NoError(t, err)
		if o.HasIndex(index) {
			q.matched = append(q.matched, a)
		} else {
			q.other = append(q.other, a)
		}
	}
	return q
}

func (q *quorumFixture) submit(oracle common.Address, code types.StatusCode) (bool, error) {
	return q.s.Oracles.SubmitResponse(oracle, q.index, q.airline, "SA100", departure, code)
}

func TestRequestStatus(t *testing.T) {
	f := newFixture(t)
	airline := f.fundedAirlines(1)[0]

	_, err := f.s.Oracles.RequestStatus(airline, "NOPE", departure, addr(60))
	assert.ErrorIs(t, err, ErrFlightNotRegistered)

	f.flight(airline, "SA100")
	index, err := f.s.Oracles.RequestStatus(airline, "SA100", departure, addr(60))
	require.NoError(t, err)
	assert.Less(t, index, f.params.IndexRange)

	req, err := f.s.Oracles.Request(index, airline, "SA100", departure)
	require.NoError(t, err)
	require.NotNil(t, req)
	assert.True(t, req.IsOpen)
	assert.Equal(t, addr(60), req.Requester)

	evs := f.ledger.eventsOf(types.EventOracleRequestType)
	require.Len(t, evs, 1)
	ev := types.DecodeEventOracleRequest(evs[0])
	require.NotNil(t, ev)
	assert.Equal(t, index, ev.Index)
	assert.Equal(t, "SA100", ev.Designator)
}

func TestSubmitResponseQuorum(t *testing.T) {
	q := newQuorumFixture(t)
	m := q.matched

	done, err := q.submit(m[0], types.StatusLateAirline)
	require.NoError(t, err)
	assert.False(t, done)
	done, err = q.submit(m[1], types.StatusOnTime)
	require.NoError(t, err)
	assert.False(t, done)
	done, err = q.submit(m[2], types.StatusLateAirline)
	require.NoError(t, err)
	assert.False(t, done)

	fl, err := q.s.Flights.Flight(q.key)
	require.NoError(t, err)
	assert.Equal(t, types.StatusUnknown, fl.StatusCode)

	done, err = q.submit(m[3], types.StatusLateAirline)
	require.NoError(t, err)
	assert.True(t, done)

	fl, err = q.s.Flights.Flight(q.key)
	require.NoError(t, err)
	assert.Equal(t, types.StatusLateAirline, fl.StatusCode)
	assert.Equal(t, q.ledger.now, fl.UpdatedTimestamp)
	assert.Len(t, q.ledger.eventsOf(types.EventFlightStatusType), 1)

	// a fourth matching report is recorded but settles nothing
	q.ledger.now += 10
	done, err = q.submit(m[4], types.StatusLateAirline)
	require.NoError(t, err)
	assert.False(t, done)
	fl, err = q.s.Flights.Flight(q.key)
	require.NoError(t, err)
	assert.Equal(t, q.ledger.now-10, fl.UpdatedTimestamp)
	assert.Len(t, q.ledger.eventsOf(types.EventFlightStatusType), 1)

	req, err := q.s.Oracles.Request(q.index, q.airline, "SA100", departure)
	require.NoError(t, err)
	assert.True(t, req.Finalized)
	assert.Len(t, req.Responses[req.Reported(types.StatusLateAirline)].Oracles, 4)
}

func TestSubmitResponseFirstQuorumWins(t *testing.T) {
	q := newQuorumFixture(t)
	m := q.matched
	for _, o := range m[:3] {
		_, err := q.submit(o, types.StatusLateWeather)
		require.NoError(t, err)
	}
	for _, o := range m[3:5] {
		_, err := q.submit(o, types.StatusLateAirline)
		require.NoError(t, err)
	}
	fl, err := q.s.Flights.Flight(q.key)
	require.NoError(t, err)
	assert.Equal(t, types.StatusLateWeather, fl.StatusCode)
}

func TestLaterRequestQuorumOverwritesStatus(t *testing.T) {
	q := newQuorumFixture(t)
	for _, o := range q.matched[:3] {
		_, err := q.submit(o, types.StatusLateWeather)
		require.NoError(t, err)
	}
	settled := q.ledger.now

	var index uint8
	for i := 0; ; i++ {
		require.Less(t, i, 100)
		idx, err := q.s.Oracles.RequestStatus(q.airline, "SA100", departure, addr(byte(61+i)))
		require.NoError(t, err)
		if idx != q.index {
			index = idx
			break
		}
	}
	var matched []common.Address
	for i := 0; len(matched) < 3; i++ {
		require.Less(t, i, 500)
		a := common.BytesToAddress([]byte{0x0d, byte(i >> 8), byte(i)})
		o, err := q.s.Oracles.RegisterOracle(a, q.params.OracleFee)
		require.NoError(t, err)
		if o.HasIndex(index) {
			matched = append(matched, a)
		}
	}

	q.ledger.now += 10
	var done bool
	for _, o := range matched {
		var err error
		done, err = q.s.Oracles.SubmitResponse(o, index, q.airline, "SA100", departure, types.StatusLateAirline)
		require.NoError(t, err)
	}
	assert.True(t, done)

	fl, err := q.s.Flights.Flight(q.key)
	require.NoError(t, err)
	assert.Equal(t, types.StatusLateAirline, fl.StatusCode)
	assert.Equal(t, settled+10, fl.UpdatedTimestamp)
	assert.Len(t, q.ledger.eventsOf(types.EventFlightStatusType), 2)

	first, err := q.s.Oracles.Request(q.index, q.airline, "SA100", departure)
	require.NoError(t, err)
	assert.True(t, first.Finalized)
}

func TestSubmitResponseGuards(t *testing.T) {
	q := newQuorumFixture(t)

	_, err := q.submit(addr(99), types.StatusOnTime)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = q.submit(q.other[0], types.StatusOnTime)
	assert.ErrorIs(t, err, ErrIndexMismatch)

	_, err = q.s.Oracles.SubmitResponse(q.matched[0], q.index, q.airline, "SA100", departure+1, types.StatusOnTime)
	assert.ErrorIs(t, err, ErrRequestNotOpen)

	_, err = q.submit(q.matched[0], types.StatusCode(11))
	assert.ErrorIs(t, err, ErrInvalidStatus)

	_, err = q.submit(q.matched[0], types.StatusOnTime)
	require.NoError(t, err)
	_, err = q.submit(q.matched[0], types.StatusLateAirline)
	assert.ErrorIs(t, err, ErrAlreadyReported)

	// an index the oracle owns but no one requested
	o, err := q.s.Oracles.Oracle(q.other[0])
	require.NoError(t, err)
	_, err = q.s.Oracles.SubmitResponse(q.other[0], o.Indexes[0], q.airline, "SA100", departure, types.StatusOnTime)
	assert.ErrorIs(t, err, ErrRequestNotOpen)
}

func TestEndToEndLateFlightPayout(t *testing.T) {
	q := newQuorumFixture(t)
	insuree := addr(50)
	_, err := q.s.Insurance.BuyInsurance(insuree, q.airline, "SA100", departure, 400)
	require.NoError(t, err)

	for _, o := range q.matched[:3] {
		_, err := q.submit(o, types.StatusLateAirline)
		require.NoError(t, err)
	}
	q.ledger.now++
	_, err = q.s.Insurance.ClaimCredit(q.airline, "SA100", departure)
	require.NoError(t, err)

	q.ledger.escrow = 10_000
	amount, err := q.s.Insurance.Withdraw(insuree)
	require.NoError(t, err)
	assert.Equal(t, uint64(600), amount)
}
