package main

import (
	"github.com/calehh/surety-app/tx"
	"github.com/spf13/cobra"
)

var airlineCmd = &cobra.Command{
	Use:   "airline",
	Short: "Register, vote for, fund and inspect airlines",
}

type airlineArguments struct {
	txArguments
	Airline string
	Name    string
}

var (
	registerAirlineArgs airlineArguments
	fundAirlineArgs     airlineArguments
	showAirlineArgs     airlineArguments
)

var registerAirlineCmd = &cobra.Command{
	Use:   "register",
	Short: "Propose or vote for an airline; funded airlines only",
	Long: `Propose an airline for admission. While fewer airlines than the bootstrap
count are registered a funded airline admits directly; after that every
call counts as a vote and the airline is admitted once half of the
registered airlines agree.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		airline, err := parseAddress(registerAirlineArgs.Airline)
		if err != nil {
			return err
		}
		return sendTx(&registerAirlineArgs.txArguments, tx.SuretyTxTypeRegisterAirline, &tx.RegisterAirlineTx{
			Airline: airline,
			Name:    registerAirlineArgs.Name,
		})
	},
}

var fundAirlineCmd = &cobra.Command{
	Use:   "fund",
	Short: "Pay an airline's participation fund",
	RunE: func(cmd *cobra.Command, args []string) error {
		airline, err := parseAddress(fundAirlineArgs.Airline)
		if err != nil {
			return err
		}
		return sendTx(&fundAirlineArgs.txArguments, tx.SuretyTxTypeFundAirline, &tx.FundAirlineTx{Airline: airline})
	},
}

var showAirlineCmd = &cobra.Command{
	Use:   "show",
	Short: "Show one airline with its votes, or all airlines",
	RunE: func(cmd *cobra.Command, args []string) error {
		var data []byte
		if showAirlineArgs.Airline != "" {
			airline, err := parseAddress(showAirlineArgs.Airline)
			if err != nil {
				return err
			}
			data = airline.Bytes()
		}
		return queryAndPrint(showAirlineArgs.Url, "/airlines/", data)
	},
}

func init() {
	txFlags(registerAirlineCmd, &registerAirlineArgs.txArguments, false)
	registerAirlineCmd.Flags().StringVarP(&registerAirlineArgs.Airline, "airline", "a", "", "airline address")
	registerAirlineCmd.Flags().StringVar(&registerAirlineArgs.Name, "name", "", "airline name")

	txFlags(fundAirlineCmd, &fundAirlineArgs.txArguments, true)
	fundAirlineCmd.Flags().StringVarP(&fundAirlineArgs.Airline, "airline", "a", "", "airline address")

	urlFlag(showAirlineCmd, &showAirlineArgs.Url)
	showAirlineCmd.Flags().StringVarP(&showAirlineArgs.Airline, "airline", "a", "", "airline address, all airlines when empty")

	airlineCmd.AddCommand(registerAirlineCmd, fundAirlineCmd, showAirlineCmd)
}
