package surety

import (
	"fmt"

	"github.com/calehh/surety-app/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"
)

type policyList struct {
	Policies []types.Policy
}

type InsuranceLedger struct {
	ledger   Ledger
	params   types.Params
	logger   cmtlog.Logger
	airlines *AirlineRegistry
	flights  *FlightRegistry

	policies *store[policyList]
	credited *store[bool]
	credits  *store[uint64]
	paid     *store[uint64]
}

func NewInsuranceLedger(ledger Ledger, params types.Params, airlines *AirlineRegistry, flights *FlightRegistry, logger cmtlog.Logger) *InsuranceLedger {
	return &InsuranceLedger{
		ledger:   ledger,
		params:   params,
		logger:   logger.With("component", "insurance"),
		airlines: airlines,
		flights:  flights,
		policies: newStore[policyList](ledger, prefixPolicies),
		credited: newStore[bool](ledger, prefixCredited),
		credits:  newStore[uint64](ledger, prefixCredit),
		paid:     newStore[uint64](ledger, prefixPaid),
	}
}

func (l *InsuranceLedger) Policies(key common.Hash) ([]types.Policy, error) {
	pl, err := l.policies.get(key[:])
	if err != nil || pl == nil {
		return nil, err
	}
	return pl.Policies, nil
}

func (l *InsuranceLedger) Credited(key common.Hash) (bool, error) {
	v, err := l.credited.get(key[:])
	if err != nil || v == nil {
		return false, err
	}
	return *v, nil
}

// Credit is the insuree's credited and not yet withdrawn balance.
func (l *InsuranceLedger) Credit(insuree common.Address) (uint64, error) {
	v, err := l.credits.get(insuree[:])
	if err != nil || v == nil {
		return 0, err
	}
	return *v, nil
}

func paidID(insuree common.Address, key common.Hash) []byte {
	id := make([]byte, 0, common.AddressLength+common.HashLength)
	id = append(id, insuree[:]...)
	return append(id, key[:]...)
}

// PaidAmount is the total premium insuree paid for the flight.
func (l *InsuranceLedger) PaidAmount(insuree common.Address, key common.Hash) (uint64, error) {
	v, err := l.paid.get(paidID(insuree, key))
	if err != nil || v == nil {
		return 0, err
	}
	return *v, nil
}

// BuyInsurance records a policy for premium, already escrowed by the
// ledger, and adds the premium to the insured airline's capital.
func (l *InsuranceLedger) BuyInsurance(insuree, airline common.Address, designator string, timestamp uint64, premium uint64) (key common.Hash, err error) {
	key = FlightKey(airline, designator, timestamp)
	err = check(
		operational(l.ledger),
		callerIsNot(insuree, airline),
		inFuture(l.ledger, timestamp),
		valueAtLeast(premium, 1),
		func() error {
			if premium > l.params.MaxInsurance {
				return fmt.Errorf("%w: premium %d above %d", ErrInsufficientValue, premium, l.params.MaxInsurance)
			}
			return nil
		},
		func() error {
			ok, err := l.flights.IsRegistered(key)
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

	pl, err := l.policies.get(key[:])
	if err != nil {
		return
	}
	if pl == nil {
		pl = new(policyList)
	}
	pl.Policies = append(pl.Policies, types.Policy{
		Insuree:    insuree,
		Premium:    premium,
		Airline:    airline,
		Designator: designator,
		Timestamp:  timestamp,
	})
	if err = l.policies.put(key[:], pl); err != nil {
		return
	}
	paid, err := l.PaidAmount(insuree, key)
	if err != nil {
		return
	}
	paid += premium
	if err = l.paid.put(paidID(insuree, key), &paid); err != nil {
		return
	}
	funds, err := l.airlines.addFunds(airline, premium)
	if err != nil {
		return
	}
	l.ledger.Emit(types.EncodeEventInsurancePurchased(&types.EventInsurancePurchased{
		Key:     key,
		Insuree: insuree,
		Airline: airline,
		Premium: premium,
		Funds:   funds,
	}))
	return
}

// CreditInsurees credits every policy of the flight with percentage of its
// premium, paid from the insured airline's own capital. It runs at most once
// per flight.
func (l *InsuranceLedger) CreditInsurees(key common.Hash, percentage uint64) error {
	err := check(
		operational(l.ledger),
		func() error {
			done, err := l.Credited(key)
			if err != nil {
				return err
			}
			if done {
				return fmt.Errorf("%w: %s", ErrAlreadyCredited, key.Hex())
			}
			return nil
		},
	)
	if err != nil {
		return err
	}
	policies, err := l.Policies(key)
	if err != nil {
		return err
	}

	var airline common.Address
	if len(policies) > 0 {
		airline = policies[0].Airline
		a, err := l.airlines.Airline(airline)
		if err != nil {
			return err
		}
		var total, funds uint64
		if a != nil {
			funds = a.Funds
		}
		for _, p := range policies {
			total += p.Premium * percentage / 100
		}
		if total > funds {
			l.logger.Error("payout exceeds airline capital", "flight", key.Hex(), "airline", airline.Hex(), "total", total, "funds", funds)
			return fmt.Errorf("%w: airline %s funds %d below payout %d", ErrInvariantViolation, airline.Hex(), funds, total)
		}
	}

	var total, funds uint64
	for _, p := range policies {
		amount := p.Premium * percentage / 100
		if funds, err = l.airlines.debitFunds(p.Airline, amount); err != nil {
			l.logger.Error("debit airline funds", "flight", key.Hex(), "err", err)
			return err
		}
		balance, err := l.Credit(p.Insuree)
		if err != nil {
			return err
		}
		balance += amount
		if err = l.credits.put(p.Insuree[:], &balance); err != nil {
			return err
		}
		total += amount
		l.ledger.Emit(types.EncodeEventCreditAvailable(&types.EventCreditAvailable{
			Key:     key,
			Insuree: p.Insuree,
			Amount:  amount,
			Balance: balance,
		}))
	}

	done := true
	if err = l.credited.put(key[:], &done); err != nil {
		return err
	}
	l.ledger.Emit(types.EncodeEventCreditIssued(&types.EventCreditIssued{
		Key:      key,
		Airline:  airline,
		Policies: uint64(len(policies)),
		Total:    total,
		Funds:    funds,
	}))
	return nil
}

// ClaimCredit credits the flight's insurees once oracles have settled it as
// late through the airline's fault, no earlier than the block after.
func (l *InsuranceLedger) ClaimCredit(airline common.Address, designator string, timestamp uint64) (key common.Hash, err error) {
	key = FlightKey(airline, designator, timestamp)
	f, err := l.flights.Flight(key)
	if err != nil {
		return
	}
	err = check(
		operational(l.ledger),
		func() error {
			if f == nil || !f.IsRegistered {
				return fmt.Errorf("%w: %s", ErrFlightNotRegistered, key.Hex())
			}
			return nil
		},
		func() error {
			if f.StatusCode != types.StatusLateAirline {
				return fmt.Errorf("%w: status is %s", ErrStatusNotLate, f.StatusCode)
			}
			return nil
		},
		func() error {
			if f.UpdatedTimestamp >= l.ledger.Now() {
				return ErrCooldownActive
			}
			return nil
		},
	)
	if err != nil {
		return
	}
	err = l.CreditInsurees(key, l.params.PayoutPercentage)
	return
}

// Withdraw pays out the insuree's whole credit. The balance is cleared
// before value leaves escrow.
func (l *InsuranceLedger) Withdraw(insuree common.Address) (amount uint64, err error) {
	if err = check(operational(l.ledger)); err != nil {
		return
	}
	amount, err = l.Credit(insuree)
	if err != nil {
		return
	}
	if amount == 0 {
		err = fmt.Errorf("%w: %s", ErrNoCredits, insuree.Hex())
		return
	}
	var zero uint64
	if err = l.credits.put(insuree[:], &zero); err != nil {
		return
	}
	if err = l.ledger.Transfer(insuree, amount); err != nil {
		return
	}
	l.ledger.Emit(types.EncodeEventPayout(&types.EventPayout{
		Insuree: insuree,
		Amount:  amount,
	}))
	return
}
