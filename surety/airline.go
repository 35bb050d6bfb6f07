package surety

import (
	"fmt"

	"github.com/calehh/surety-app/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"
)

type AirlineRegistry struct {
	ledger Ledger
	params types.Params
	logger cmtlog.Logger

	airlines *store[types.Airline]
	votes    *store[types.AirlineVote]
	count    counter
}

func NewAirlineRegistry(ledger Ledger, params types.Params, logger cmtlog.Logger) *AirlineRegistry {
	return &AirlineRegistry{
		ledger:   ledger,
		params:   params,
		logger:   logger.With("component", "airlines"),
		airlines: newStore[types.Airline](ledger, prefixAirline),
		votes:    newStore[types.AirlineVote](ledger, prefixVote),
		count:    newCounter(ledger, keyAirlineCount),
	}
}

func (r *AirlineRegistry) Airline(addr common.Address) (*types.Airline, error) {
	return r.airlines.get(addr[:])
}

func (r *AirlineRegistry) IsRegistered(addr common.Address) (bool, error) {
	a, err := r.Airline(addr)
	if err != nil {
		return false, err
	}
	return a != nil && a.IsRegistered, nil
}

func (r *AirlineRegistry) IsFunded(addr common.Address) (bool, error) {
	a, err := r.Airline(addr)
	if err != nil {
		return false, err
	}
	return a != nil && a.IsFunded, nil
}

// Count is the number of admitted airlines.
func (r *AirlineRegistry) Count() (uint64, error) {
	return r.count.get()
}

// Votes returns the pending vote tally for candidate, or nil.
func (r *AirlineRegistry) Votes(candidate common.Address) (*types.AirlineVote, error) {
	return r.votes.get(candidate[:])
}

func (r *AirlineRegistry) admit(candidate common.Address, name string, registrar common.Address, votes uint64) error {
	a, err := r.Airline(candidate)
	if err != nil {
		return err
	}
	if a == nil {
		a = &types.Airline{Address: candidate}
	}
	a.Name = name
	a.IsRegistered = true
	if err = r.airlines.put(candidate[:], a); err != nil {
		return err
	}
	n, err := r.count.get()
	if err != nil {
		return err
	}
	if err = r.count.set(n + 1); err != nil {
		return err
	}
	r.ledger.Emit(types.EncodeEventAirlineRegistered(&types.EventAirlineRegistered{
		Airline:   candidate,
		Name:      name,
		Registrar: registrar,
		Votes:     votes,
	}))
	r.logger.Info("airline admitted", "airline", candidate.Hex(), "name", name, "votes", votes)
	return nil
}

// AdmitBootstrap admits the founding airline without a vote.
func (r *AirlineRegistry) AdmitBootstrap(candidate common.Address, name string) error {
	ok, err := r.IsRegistered(candidate)
	if err != nil {
		return err
	}
	if ok {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, candidate.Hex())
	}
	return r.admit(candidate, name, common.Address{}, 0)
}

// RegisterAirline admits candidate directly while fewer than
// BootstrapAirlines are registered. Past that it records caller's vote and
// admits once distinct voters reach half of the current count. The returned
// success and votes describe progress and are valid whenever err is nil.
func (r *AirlineRegistry) RegisterAirline(candidate common.Address, name string, caller common.Address) (success bool, votes uint64, err error) {
	err = check(
		operational(r.ledger),
		registeredAirline(r, caller),
		fundedAirline(r, caller),
		func() error {
			ok, err := r.IsRegistered(candidate)
			if err != nil {
				return err
			}
			if ok {
				return fmt.Errorf("%w: %s", ErrAlreadyRegistered, candidate.Hex())
			}
			return nil
		},
	)
	if err != nil {
		return
	}

	count, err := r.count.get()
	if err != nil {
		return
	}
	if count < r.params.BootstrapAirlines {
		err = r.admit(candidate, name, caller, 0)
		return err == nil, 0, err
	}

	v, err := r.votes.get(candidate[:])
	if err != nil {
		return
	}
	if v == nil {
		v = &types.AirlineVote{Candidate: candidate, Name: name}
	}
	if !v.HasVoted(caller) {
		v.Voters = append(v.Voters, caller)
	}
	if err = r.votes.put(candidate[:], v); err != nil {
		return
	}
	votes = v.Count()
	needed := count * 100 / 2
	r.ledger.Emit(types.EncodeEventAirlineVote(&types.EventAirlineVote{
		Candidate: candidate,
		Voter:     caller,
		Votes:     votes,
		Needed:    needed,
	}))
	if votes*100 >= needed {
		if err = r.admit(candidate, v.Name, caller, votes); err != nil {
			return false, votes, err
		}
		success = true
	}
	return
}

// Fund adds amount to the airline's capital. A single contribution of at
// least MinFunding marks the airline funded for good.
func (r *AirlineRegistry) Fund(airline common.Address, amount uint64, caller common.Address) error {
	err := check(
		operational(r.ledger),
		callerIs(caller, airline),
		registeredAirline(r, airline),
		valueAtLeast(amount, 1),
	)
	if err != nil {
		return err
	}
	a, err := r.Airline(airline)
	if err != nil {
		return err
	}
	a.Funds += amount
	if amount >= r.params.MinFunding {
		a.IsFunded = true
	}
	if err = r.airlines.put(airline[:], a); err != nil {
		return err
	}
	r.ledger.Emit(types.EncodeEventAirlineFunded(&types.EventAirlineFunded{
		Airline: airline,
		Amount:  amount,
		Funds:   a.Funds,
		Funded:  a.IsFunded,
	}))
	return nil
}

// addFunds recapitalises an airline with a premium and returns its new funds.
func (r *AirlineRegistry) addFunds(airline common.Address, amount uint64) (uint64, error) {
	a, err := r.Airline(airline)
	if err != nil {
		return 0, err
	}
	if a == nil {
		return 0, fmt.Errorf("%w: %s", ErrUnauthorized, airline.Hex())
	}
	a.Funds += amount
	return a.Funds, r.airlines.put(airline[:], a)
}

// debitFunds takes amount out of an airline's capital and returns what is left.
func (r *AirlineRegistry) debitFunds(airline common.Address, amount uint64) (uint64, error) {
	a, err := r.Airline(airline)
	if err != nil {
		return 0, err
	}
	if a == nil || a.Funds < amount {
		return 0, fmt.Errorf("%w: airline %s funds below %d", ErrInvariantViolation, airline.Hex(), amount)
	}
	a.Funds -= amount
	return a.Funds, r.airlines.put(airline[:], a)
}
