package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tyler-smith/go-bip39"

	"github.com/opd-ai/hdvault/walletcore"
)

var (
	initMnemonic string
	initWatch    string
)

func initCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a new wallet file",
		RunE:  runInit,
	}
	cmd.Flags().StringVar(&initMnemonic, "mnemonic", "", "restore from an existing BIP39 mnemonic instead of generating one")
	cmd.Flags().StringVar(&initWatch, "xpub", "", "create a watch-only wallet from an extended public key instead")
	return cmd
}

func runInit(cmd *cobra.Command, args []string) error {
	if initWatch != "" {
		w, err := walletcore.NewFromExtendedKey(walletPath, initWatch, params, promptPassphrase, nil)
		if err != nil {
			return err
		}
		defer w.Close()
		fmt.Printf("watch-only wallet %s created at %s\n", w.ID, walletPath)
		return nil
	}

	mnemonic := initMnemonic
	if mnemonic == "" {
		entropy, err := bip39.NewEntropy(256)
		if err != nil {
			return err
		}
		mnemonic, err = bip39.NewMnemonic(entropy)
		if err != nil {
			return err
		}
		fmt.Println("write this mnemonic down, it will not be shown again:")
		fmt.Println(mnemonic)
	}

	passphrase, err := readLine("BIP39 passphrase (leave blank for none): ")
	if err != nil {
		return err
	}

	w, err := walletcore.NewFromMnemonic(walletPath, mnemonic, passphrase, params, promptPassphrase, promptPassphrase)
	if err != nil {
		return err
	}
	defer w.Close()
	fmt.Printf("wallet %s created at %s\n", w.ID, walletPath)
	return nil
}
