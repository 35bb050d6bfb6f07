package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/calehh/surety-app/crypto"
	"github.com/calehh/surety-app/state"
	"github.com/calehh/surety-app/surety"
	"github.com/calehh/surety-app/tx"
	"github.com/cometbft/cometbft/rpc/client/http"
	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/color"
)

var (
	okLine   = color.New(color.FgGreen).SprintfFunc()
	failLine = color.New(color.FgRed).SprintfFunc()
	keyLine  = color.New(color.FgCyan).SprintFunc()
)

var ErrQueryFail = errors.New("abci query fail")

func newClient(url string) (*http.HTTP, error) {
	cli, err := http.New(url, "/websocket")
	if err != nil {
		return nil, fmt.Errorf("new client: %w", err)
	}
	return cli, nil
}

// query runs an ABCI query and decodes the JSON answer into out.
func query(ctx context.Context, cli *http.HTTP, path string, data []byte, out any) error {
	res, err := cli.ABCIQuery(ctx, path, data)
	if err != nil {
		return err
	}
	if res.Response.Code != 0 {
		return fmt.Errorf("%w: %s code %d %s", ErrQueryFail, path, res.Response.Code, res.Response.Log)
	}
	return json.Unmarshal(res.Response.Value, out)
}

func queryAccount(ctx context.Context, cli *http.HTTP, addr common.Address) (*state.Account, error) {
	var act state.Account
	if err := query(ctx, cli, "/accounts/", addr.Bytes(), &act); err != nil {
		return nil, err
	}
	return &act, nil
}

// printJSON prints v indented, the way query commands show results.
func printJSON(v any) error {
	dat, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(dat))
	return nil
}

// sendTx signs a transaction of type typ with the key at args.Key and
// broadcasts it.
func sendTx(args *txArguments, typ tx.SuretyTxType, body any) error {
	key, err := crypto.LoadKey(args.Key)
	if err != nil {
		return fmt.Errorf("load key: %w", err)
	}
	cli, err := newClient(args.Url)
	if err != nil {
		return err
	}
	ctx := context.Background()
	st, err := cli.Status(ctx)
	if err != nil {
		return fmt.Errorf("get node status: %w", err)
	}
	chainId := st.NodeInfo.Network
	nonce := args.Nonce
	if nonce == 0 {
		act, err := queryAccount(ctx, cli, key.Address())
		if err != nil {
			return err
		}
		nonce = act.Nonce
	}
	btx := &tx.SuretyTx{
		Version: tx.SuretyTxVersion1,
		Type:    typ,
		Nonce:   nonce,
		Value:   args.Value,
		Tx:      body,
	}
	if err = key.SignTx(btx, chainId); err != nil {
		return fmt.Errorf("sign tx: %w", err)
	}
	dat, err := tx.MarshalSuretyTx(btx)
	if err != nil {
		return err
	}
	fmt.Printf("%s %s from:%s nonce:%d value:%d\n", keyLine("tx"), typ, key.Address().Hex(), nonce, args.Value)

	if args.Commit {
		res, err := cli.BroadcastTxCommit(ctx, dat)
		if err != nil {
			return fmt.Errorf("broadcast tx: %w", err)
		}
		if res.CheckTx.Code != 0 {
			return report(res.CheckTx.Code, res.CheckTx.Log, res.Hash.String())
		}
		if err = report(res.TxResult.Code, res.TxResult.Log, res.Hash.String()); err != nil {
			return err
		}
		fmt.Printf("%s %d\n", keyLine("height"), res.Height)
		for _, ev := range res.TxResult.Events {
			fmt.Printf("%s %s", keyLine("event"), ev.Type)
			for _, attr := range ev.Attributes {
				fmt.Printf(" %s=%s", attr.Key, attr.Value)
			}
			fmt.Println()
		}
		return nil
	}
	res, err := cli.BroadcastTxSync(ctx, dat)
	if err != nil {
		return fmt.Errorf("broadcast tx: %w", err)
	}
	return report(res.Code, res.Log, res.Hash.String())
}

func report(code uint32, log string, hash string) error {
	if code != 0 {
		fmt.Println(failLine("rejected hash:%s code:%d (%s) %s", hash, code, surety.CodeText(code), log))
		return fmt.Errorf("tx failed with code %d", code)
	}
	fmt.Println(okLine("ok hash:%s", hash))
	return nil
}
