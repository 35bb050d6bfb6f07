package main

import (
	"github.com/calehh/surety-app/crypto"
	"github.com/calehh/surety-app/tx"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

var insuranceCmd = &cobra.Command{
	Use:   "insurance",
	Short: "Buy policies, claim and withdraw credits",
}

type insuranceArguments struct {
	txArguments
	flightArguments
	Insuree string
}

var (
	buyArgs      insuranceArguments
	claimArgs    insuranceArguments
	withdrawArgs insuranceArguments
	creditArgs   insuranceArguments
)

var buyInsuranceCmd = &cobra.Command{
	Use:   "buy",
	Short: "Insure a registered flight; --value is the premium",
	RunE: func(cmd *cobra.Command, args []string) error {
		ref, err := buyArgs.ref()
		if err != nil {
			return err
		}
		return sendTx(&buyArgs.txArguments, tx.SuretyTxTypeBuyInsurance, &tx.BuyInsuranceTx{FlightRef: ref})
	},
}

var claimCreditCmd = &cobra.Command{
	Use:   "claim",
	Short: "Credit every insuree of a flight delayed by its airline",
	RunE: func(cmd *cobra.Command, args []string) error {
		ref, err := claimArgs.ref()
		if err != nil {
			return err
		}
		return sendTx(&claimArgs.txArguments, tx.SuretyTxTypeClaimCredit, &tx.ClaimCreditTx{FlightRef: ref})
	},
}

var withdrawCmd = &cobra.Command{
	Use:   "withdraw",
	Short: "Withdraw the sender's whole credit balance",
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendTx(&withdrawArgs.txArguments, tx.SuretyTxTypeWithdraw, &tx.WithdrawTx{})
	},
}

var creditCmd = &cobra.Command{
	Use:   "credit",
	Short: "Show an insuree's credit balance, and what it paid for a flight",
	RunE: func(cmd *cobra.Command, args []string) error {
		var insuree common.Address
		if creditArgs.Insuree != "" {
			a, err := parseAddress(creditArgs.Insuree)
			if err != nil {
				return err
			}
			insuree = a
		} else {
			k, err := crypto.LoadKey(creditArgs.Key)
			if err != nil {
				return err
			}
			insuree = k.Address()
		}
		if err := queryAndPrint(creditArgs.Url, "/credits/", insuree.Bytes()); err != nil {
			return err
		}
		if creditArgs.Flight == "" {
			return nil
		}
		key, err := creditArgs.key()
		if err != nil {
			return err
		}
		return queryAndPrint(creditArgs.Url, "/paid/", append(insuree.Bytes(), key.Bytes()...))
	},
}

func init() {
	txFlags(buyInsuranceCmd, &buyArgs.txArguments, true)
	flightFlags(buyInsuranceCmd, &buyArgs.flightArguments)

	txFlags(claimCreditCmd, &claimArgs.txArguments, false)
	flightFlags(claimCreditCmd, &claimArgs.flightArguments)

	txFlags(withdrawCmd, &withdrawArgs.txArguments, false)

	urlFlag(creditCmd, &creditArgs.Url)
	keyFlag(creditCmd, &creditArgs.Key)
	flightFlags(creditCmd, &creditArgs.flightArguments)
	creditCmd.Flags().StringVarP(&creditArgs.Insuree, "insuree", "i", "", "insuree address, defaults to the key's")

	insuranceCmd.AddCommand(buyInsuranceCmd, claimCreditCmd, withdrawCmd, creditCmd)
}
