package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opd-ai/hdvault/asset"
	"github.com/opd-ai/hdvault/walletcore"
)

var addressTypeName string

func addressCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "address", Short: "Issue wallet addresses"}
	cmd.PersistentFlags().StringVar(&addressTypeName, "type", "p2wpkh", "address type: p2pkh, p2wpkh, p2wpkh-p2sh")
	cmd.AddCommand(addressNextCmd())
	return cmd
}

func addressNextCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "next",
		Short: "Issue the next deposit address",
		RunE:  runAddressNext,
	}
}

func addressTypeFromName(name string) (asset.AddressType, error) {
	switch name {
	case "p2pkh":
		return asset.P2PKH, nil
	case "p2wpkh":
		return asset.P2WPKH, nil
	case "p2wpkh-p2sh":
		return asset.P2WPKH | asset.P2SH, nil
	default:
		return 0, fmt.Errorf("unknown address type %q", name)
	}
}

func runAddressNext(cmd *cobra.Command, args []string) error {
	t, err := addressTypeFromName(addressTypeName)
	if err != nil {
		return err
	}

	w, err := walletcore.Open(walletPath, params, promptPassphrase, promptPassphrase)
	if err != nil {
		return err
	}
	defer w.Close()

	entry, err := w.GetNewAddress(t)
	if err != nil {
		return err
	}
	fmt.Println(entry.EncodedAddress)
	return nil
}
