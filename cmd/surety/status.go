package main

import (
	"context"

	"github.com/calehh/surety-app/tx"
	"github.com/spf13/cobra"
)

var statusUrl string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the chain and contract status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return queryAndPrint(statusUrl, "/status/", nil)
	},
}

type operatingArguments struct {
	txArguments
	Off bool
}

var operatingArgs operatingArguments

var operatingCmd = &cobra.Command{
	Use:   "operating",
	Short: "Pause or resume the contract (owner only)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendTx(&operatingArgs.txArguments, tx.SuretyTxTypeSetOperating, &tx.SetOperatingTx{
			Operational: !operatingArgs.Off,
		})
	},
}

func init() {
	urlFlag(statusCmd, &statusUrl)
	txFlags(operatingCmd, &operatingArgs.txArguments, false)
	operatingCmd.Flags().BoolVar(&operatingArgs.Off, "off", false, "pause instead of resume")
}

func queryAndPrint(url string, path string, data []byte) error {
	cli, err := newClient(url)
	if err != nil {
		return err
	}
	var out any
	if err = query(context.Background(), cli, path, data, &out); err != nil {
		return err
	}
	return printJSON(out)
}
