package main

import (
	"errors"
	"fmt"

	"github.com/calehh/surety-app/surety"
	"github.com/calehh/surety-app/tx"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

func urlFlag(cmd *cobra.Command, url *string) {
	cmd.Flags().StringVarP(url, "url", "u", "http://127.0.0.1:26657", "surety node rpc url")
}

func keyFlag(cmd *cobra.Command, path *string) {
	cmd.Flags().StringVarP(path, "key", "k", "./config/owner_key.json", "account key file")
}

// txArguments are shared by every command that sends a transaction.
type txArguments struct {
	Url    string
	Key    string
	Nonce  uint64
	Value  uint64
	Commit bool
}

func txFlags(cmd *cobra.Command, args *txArguments, withValue bool) {
	urlFlag(cmd, &args.Url)
	keyFlag(cmd, &args.Key)
	cmd.Flags().Uint64VarP(&args.Nonce, "nonce", "n", 0, "account nonce, queried when 0")
	cmd.Flags().BoolVarP(&args.Commit, "commit", "c", false, "wait for the transaction to be committed")
	if withValue {
		cmd.Flags().Uint64VarP(&args.Value, "value", "v", 0, "value sent with the transaction")
	}
}

type flightArguments struct {
	Airline   string
	Flight    string
	Timestamp uint64
}

func flightFlags(cmd *cobra.Command, args *flightArguments) {
	cmd.Flags().StringVarP(&args.Airline, "airline", "a", "", "airline address")
	cmd.Flags().StringVarP(&args.Flight, "flight", "f", "", "flight designator")
	cmd.Flags().Uint64VarP(&args.Timestamp, "timestamp", "t", 0, "scheduled departure, unix seconds")
}

var errFlightRef = errors.New("--airline, --flight and --timestamp are required")

func (a *flightArguments) ref() (tx.FlightRef, error) {
	if a.Flight == "" || a.Timestamp == 0 {
		return tx.FlightRef{}, errFlightRef
	}
	airline, err := parseAddress(a.Airline)
	if err != nil {
		return tx.FlightRef{}, err
	}
	return tx.FlightRef{Airline: airline, Flight: a.Flight, Timestamp: a.Timestamp}, nil
}

func (a *flightArguments) key() (common.Hash, error) {
	ref, err := a.ref()
	if err != nil {
		return common.Hash{}, err
	}
	return surety.FlightKey(ref.Airline, ref.Flight, ref.Timestamp), nil
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}
