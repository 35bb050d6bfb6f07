package main

import (
	"encoding/hex"
	"fmt"
	"path/filepath"

	"github.com/calehh/surety-app/crypto"
	"github.com/spf13/cobra"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage account and validator keys",
}

type keysArguments struct {
	Out  string
	Key  string
	Hex  string
	Home string
}

var keysArgs keysArguments

var keysNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Generate an account key, or import one with --hex",
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			k   *crypto.Key
			err error
		)
		if keysArgs.Hex != "" {
			k, err = crypto.KeyFromHex(keysArgs.Hex)
		} else {
			k, err = crypto.GenerateKey()
		}
		if err != nil {
			return err
		}
		if err = k.Save(keysArgs.Out); err != nil {
			return err
		}
		fmt.Printf("%s %s\n%s %s\n", keyLine("address"), k.Address().Hex(), keyLine("file"), keysArgs.Out)
		return nil
	},
}

var keysShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the address of an account key",
	RunE: func(cmd *cobra.Command, args []string) error {
		k, err := crypto.LoadKey(keysArgs.Key)
		if err != nil {
			return err
		}
		fmt.Printf("%s %s\n", keyLine("address"), k.Address().Hex())
		return nil
	},
}

var keysValidatorCmd = &cobra.Command{
	Use:   "validator",
	Short: "Print the node's validator public key",
	RunE: func(cmd *cobra.Command, args []string) error {
		vk, err := crypto.LoadValidatorKey(filepath.Join(keysArgs.Home, "config", "priv_validator_key.json"))
		if err != nil {
			return err
		}
		fmt.Printf("%s %s\n%s %s\n", keyLine("pubkey"), hex.EncodeToString(vk.PubKey.Bytes()), keyLine("address"), vk.PubKey.Address())
		return nil
	},
}

func init() {
	keysNewCmd.Flags().StringVarP(&keysArgs.Out, "out", "o", "./key.json", "key file to write")
	keysNewCmd.Flags().StringVar(&keysArgs.Hex, "hex", "", "hex private key to import")
	keyFlag(keysShowCmd, &keysArgs.Key)
	keysValidatorCmd.Flags().StringVarP(&keysArgs.Home, "homedir", "d", ".", "home directory")
	keysCmd.AddCommand(keysNewCmd, keysShowCmd, keysValidatorCmd)
}
