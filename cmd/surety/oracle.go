package main

import (
	"encoding/json"

	"github.com/calehh/surety-app/app"
	"github.com/calehh/surety-app/crypto"
	"github.com/calehh/surety-app/tx"
	"github.com/calehh/surety-app/types"
	"github.com/spf13/cobra"
)

var oracleCmd = &cobra.Command{
	Use:   "oracle",
	Short: "Register oracles, request flight status and submit reports",
}

type oracleArguments struct {
	txArguments
	flightArguments
	Index  uint8
	Status string
}

var (
	registerOracleArgs oracleArguments
	requestStatusArgs  oracleArguments
	reportArgs         oracleArguments
	showOracleArgs     oracleArguments
)

var registerOracleCmd = &cobra.Command{
	Use:   "register",
	Short: "Register the sender as an oracle; --value is the registration fee",
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendTx(&registerOracleArgs.txArguments, tx.SuretyTxTypeRegisterOracle, &tx.RegisterOracleTx{})
	},
}

var requestStatusCmd = &cobra.Command{
	Use:   "request",
	Short: "Ask the oracles for a flight's status",
	RunE: func(cmd *cobra.Command, args []string) error {
		ref, err := requestStatusArgs.ref()
		if err != nil {
			return err
		}
		return sendTx(&requestStatusArgs.txArguments, tx.SuretyTxTypeRequestStatus, &tx.RequestStatusTx{FlightRef: ref})
	},
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Answer an open status request for one of the sender's indexes",
	RunE: func(cmd *cobra.Command, args []string) error {
		ref, err := reportArgs.ref()
		if err != nil {
			return err
		}
		code, err := types.ParseStatusCode(reportArgs.Status)
		if err != nil {
			return err
		}
		return sendTx(&reportArgs.txArguments, tx.SuretyTxTypeSubmitResponse, &tx.SubmitResponseTx{
			FlightRef: ref,
			Index:     reportArgs.Index,
			Status:    code,
		})
	},
}

var showOracleCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the key's oracle indexes, or a status request with --flight",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showOracleArgs.Flight != "" {
			ref, err := showOracleArgs.ref()
			if err != nil {
				return err
			}
			data, err := json.Marshal(&app.RequestQuery{Index: showOracleArgs.Index, FlightRef: ref})
			if err != nil {
				return err
			}
			return queryAndPrint(showOracleArgs.Url, "/requests/", data)
		}
		k, err := crypto.LoadKey(showOracleArgs.Key)
		if err != nil {
			return err
		}
		return queryAndPrint(showOracleArgs.Url, "/oracles/", k.Address().Bytes())
	},
}

func init() {
	txFlags(registerOracleCmd, &registerOracleArgs.txArguments, true)

	txFlags(requestStatusCmd, &requestStatusArgs.txArguments, false)
	flightFlags(requestStatusCmd, &requestStatusArgs.flightArguments)

	txFlags(reportCmd, &reportArgs.txArguments, false)
	flightFlags(reportCmd, &reportArgs.flightArguments)
	reportCmd.Flags().Uint8VarP(&reportArgs.Index, "index", "i", 0, "request index")
	reportCmd.Flags().StringVarP(&reportArgs.Status, "status", "s", "", "status name or code, e.g. late_airline or 20")

	urlFlag(showOracleCmd, &showOracleArgs.Url)
	keyFlag(showOracleCmd, &showOracleArgs.Key)
	flightFlags(showOracleCmd, &showOracleArgs.flightArguments)
	showOracleCmd.Flags().Uint8VarP(&showOracleArgs.Index, "index", "i", 0, "request index")

	oracleCmd.AddCommand(registerOracleCmd, requestStatusCmd, reportCmd, showOracleCmd)
}
