package surety

import (
	"testing"

	"github.com/calehh/surety-app/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAirlineBootstrapAdmission(t *testing.T) {
	f := newFixture(t)
	airlines := f.fundedAirlines(1)
	founder := airlines[0]

	for i, cand := range []byte{2, 3, 4} {
		ok, votes, err := f.s.Airlines.RegisterAirline(addr(cand), "Air", founder)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Zero(t, votes)
		n, err := f.s.Airlines.Count()
		require.NoError(t, err)
		assert.Equal(t, uint64(i+2), n)
	}

	registered, err := f.s.Airlines.IsRegistered(addr(3))
	require.NoError(t, err)
	assert.True(t, registered)
	funded, err := f.s.Airlines.IsFunded(addr(3))
	require.NoError(t, err)
	assert.False(t, funded)
	assert.Len(t, f.ledger.eventsOf(types.EventAirlineRegisteredType), 4)
}

func TestAirlineThresholdVoting(t *testing.T) {
	f := newFixture(t)
	airlines := f.fundedAirlines(4)
	candidate := addr(9)

	ok, votes, err := f.s.Airlines.RegisterAirline(candidate, "Late Air", airlines[0])
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, uint64(1), votes)

	// a repeated vote changes nothing
	ok, votes, err = f.s.Airlines.RegisterAirline(candidate, "Late Air", airlines[0])
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, uint64(1), votes)

	ok, votes, err = f.s.Airlines.RegisterAirline(candidate, "Late Air", airlines[1])
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(2), votes)

	a, err := f.s.Airlines.Airline(candidate)
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.True(t, a.IsRegistered)
	assert.Equal(t, "Late Air", a.Name)

	n, err := f.s.Airlines.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(5), n)

	voteEvents := f.ledger.eventsOf(types.EventAirlineVoteType)
	require.Len(t, voteEvents, 3)
	ev := types.DecodeEventAirlineVote(voteEvents[2])
	require.NotNil(t, ev)
	assert.Equal(t, uint64(200), ev.Needed)

	_, _, err = f.s.Airlines.RegisterAirline(candidate, "Late Air", airlines[2])
	assert.ErrorIs(t, err, ErrAlreadyRegistered)
}

func TestAirlineVoteThresholdUsesPreAdmissionCount(t *testing.T) {
	f := newFixture(t)
	airlines := f.fundedAirlines(4)

	// five airlines: needed = 250, so three distinct votes
	ok, _, err := f.s.Airlines.RegisterAirline(addr(9), "Fifth", airlines[0])
	require.NoError(t, err)
	require.False(t, ok)
	ok, _, err = f.s.Airlines.RegisterAirline(addr(9), "Fifth", airlines[1])
	require.NoError(t, err)
	require.True(t, ok)

	candidate := addr(10)
	for i, voter := range airlines[:3] {
		ok, votes, err := f.s.Airlines.RegisterAirline(candidate, "Sixth", voter)
		require.NoError(t, err)
		assert.Equal(t, uint64(i+1), votes)
		assert.Equal(t, i == 2, ok)
	}
}

func TestRegisterAirlineGuards(t *testing.T) {
	f := newFixture(t)
	founder := addr(1)
	require.NoError(t, f.s.Airlines.AdmitBootstrap(founder, "Founder Air"))

	_, _, err := f.s.Airlines.RegisterAirline(addr(2), "Air", founder)
	assert.ErrorIs(t, err, ErrNotFunded)

	_, _, err = f.s.Airlines.RegisterAirline(addr(2), "Air", addr(7))
	assert.ErrorIs(t, err, ErrUnauthorized)

	require.NoError(t, f.s.Airlines.Fund(founder, f.params.MinFunding, founder))
	_, _, err = f.s.Airlines.RegisterAirline(founder, "Again", founder)
	assert.ErrorIs(t, err, ErrAlreadyRegistered)

	f.ledger.operational = false
	before := f.ledger.snapshot()
	_, _, err = f.s.Airlines.RegisterAirline(addr(2), "Air", founder)
	assert.ErrorIs(t, err, ErrNotOperational)
	assert.Equal(t, before, f.ledger.snapshot())

	assert.ErrorIs(t, f.s.Airlines.AdmitBootstrap(founder, "Founder Air"), ErrAlreadyRegistered)
}

func TestFundAirline(t *testing.T) {
	f := newFixture(t)
	founder := addr(1)
	require.NoError(t, f.s.Airlines.AdmitBootstrap(founder, "Founder Air"))

	assert.ErrorIs(t, f.s.Airlines.Fund(founder, f.params.MinFunding, addr(2)), ErrUnauthorized)
	assert.ErrorIs(t, f.s.Airlines.Fund(addr(2), f.params.MinFunding, addr(2)), ErrUnauthorized)
	assert.ErrorIs(t, f.s.Airlines.Fund(founder, 0, founder), ErrInsufficientValue)

	require.NoError(t, f.s.Airlines.Fund(founder, f.params.MinFunding-1, founder))
	funded, err := f.s.Airlines.IsFunded(founder)
	require.NoError(t, err)
	assert.False(t, funded)

	require.NoError(t, f.s.Airlines.Fund(founder, f.params.MinFunding, founder))
	require.NoError(t, f.s.Airlines.Fund(founder, 1, founder))
	a, err := f.s.Airlines.Airline(founder)
	require.NoError(t, err)
	assert.True(t, a.IsFunded)
	assert.Equal(t, 2*f.params.MinFunding, a.Funds)

	evs := f.ledger.eventsOf(types.EventAirlineFundedType)
	require.Len(t, evs, 3)
	last := types.DecodeEventAirlineFunded(evs[2])
	require.NotNil(t, last)
	assert.True(t, last.Funded)
	assert.Equal(t, 2*f.params.MinFunding, last.Funds)
}
