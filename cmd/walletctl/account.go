package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opd-ai/hdvault/asset"
	"github.com/opd-ai/hdvault/walletcore"
)

func accountCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "account", Short: "Manage address accounts"}
	cmd.AddCommand(accountAddCmd())
	return cmd
}

func accountAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a new BIP32 address account",
		RunE:  runAccountAdd,
	}
	return cmd
}

func runAccountAdd(cmd *cobra.Command, args []string) error {
	w, err := walletcore.Open(walletPath, params, promptPassphrase, promptPassphrase)
	if err != nil {
		return err
	}
	defer w.Close()

	acc, err := w.AddBIP32Account([]asset.AddressType{asset.P2WPKH, asset.P2WPKH | asset.P2SH})
	if err != nil {
		return err
	}
	fmt.Printf("created account %d\n", acc.ID)
	return nil
}
