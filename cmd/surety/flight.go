package main

import (
	"github.com/calehh/surety-app/tx"
	"github.com/spf13/cobra"
)

var flightCmd = &cobra.Command{
	Use:   "flight",
	Short: "Register and inspect flights",
}

type flightCmdArguments struct {
	txArguments
	flightArguments
}

var (
	registerFlightArgs flightCmdArguments
	showFlightArgs     flightCmdArguments
)

var registerFlightCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a future flight of the sending airline",
	RunE: func(cmd *cobra.Command, args []string) error {
		ref, err := registerFlightArgs.ref()
		if err != nil {
			return err
		}
		return sendTx(&registerFlightArgs.txArguments, tx.SuretyTxTypeRegisterFlight, &tx.RegisterFlightTx{FlightRef: ref})
	},
}

var showFlightCmd = &cobra.Command{
	Use:   "show",
	Short: "Show a flight and its policies",
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := showFlightArgs.key()
		if err != nil {
			return err
		}
		if err = queryAndPrint(showFlightArgs.Url, "/flights/", key.Bytes()); err != nil {
			return err
		}
		return queryAndPrint(showFlightArgs.Url, "/policies/", key.Bytes())
	},
}

func init() {
	txFlags(registerFlightCmd, &registerFlightArgs.txArguments, false)
	flightFlags(registerFlightCmd, &registerFlightArgs.flightArguments)

	urlFlag(showFlightCmd, &showFlightArgs.Url)
	flightFlags(showFlightCmd, &showFlightArgs.flightArguments)

	flightCmd.AddCommand(registerFlightCmd, showFlightCmd)
}
