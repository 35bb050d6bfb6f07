package main

import (
	"context"
	"fmt"

	"github.com/calehh/surety-app/crypto"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

type accountArguments struct {
	Url     string
	Address string
	Key     string
}

var accountArgs accountArguments

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Show an account's balance and nonce",
	RunE:  accountRun,
}

func init() {
	urlFlag(accountCmd, &accountArgs.Url)
	accountCmd.Flags().StringVarP(&accountArgs.Address, "address", "a", "", "account address, defaults to the key's")
	keyFlag(accountCmd, &accountArgs.Key)
}

func accountRun(cmd *cobra.Command, args []string) error {
	var addr common.Address
	if accountArgs.Address != "" {
		a, err := parseAddress(accountArgs.Address)
		if err != nil {
			return err
		}
		addr = a
	} else {
		k, err := crypto.LoadKey(accountArgs.Key)
		if err != nil {
			return err
		}
		addr = k.Address()
	}
	cli, err := newClient(accountArgs.Url)
	if err != nil {
		return err
	}
	act, err := queryAccount(context.Background(), cli, addr)
	if err != nil {
		return err
	}
	fmt.Printf("%s %s\n%s %d\n%s %d\n",
		keyLine("address"), act.Address.Hex(),
		keyLine("balance"), act.Balance,
		keyLine("nonce"), act.Nonce)
	return nil
}
