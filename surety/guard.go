package surety

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

type guard func() error

// check evaluates guards in order and returns the first failure.
func check(guards ...guard) error {
	for _, g := range guards {
		if err := g(); err != nil {
			return err
		}
	}
	return nil
}

func operational(l Ledger) guard {
	return func() error {
		if !l.Operational() {
			return ErrNotOperational
		}
		return nil
	}
}

func callerIs(caller, want common.Address) guard {
	return func() error {
		if caller != want {
			return fmt.Errorf("%w: caller %s is not %s", ErrUnauthorized, caller.Hex(), want.Hex())
		}
		return nil
	}
}

func callerIsNot(caller, forbidden common.Address) guard {
	return func() error {
		if caller == forbidden {
			return fmt.Errorf("%w: %s may not act on its own flight", ErrUnauthorized, caller.Hex())
		}
		return nil
	}
}

func registeredAirline(r *AirlineRegistry, addr common.Address) guard {
	return func() error {
		ok, err := r.IsRegistered(addr)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s is not a registered airline", ErrUnauthorized, addr.Hex())
		}
		return nil
	}
}

func fundedAirline(r *AirlineRegistry, addr common.Address) guard {
	return func() error {
		ok, err := r.IsFunded(addr)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s", ErrNotFunded, addr.Hex())
		}
		return nil
	}
}

func inFuture(l Ledger, timestamp uint64) guard {
	return func() error {
		if timestamp <= l.Now() {
			return fmt.Errorf("%w: %d <= %d", ErrNotInFuture, timestamp, l.Now())
		}
		return nil
	}
}

func valueAtLeast(value, min uint64) guard {
	return func() error {
		if value == 0 || value < min {
			return fmt.Errorf("%w: %d below %d", ErrInsufficientValue, value, min)
		}
		return nil
	}
}
