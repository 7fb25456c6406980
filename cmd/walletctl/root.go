package main

import (
	"fmt"
	"os"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile     string
	walletPath  string
	networkName string
	params      *chaincfg.Params
)

var rootCmd = &cobra.Command{
	Use:   "walletctl",
	Short: "Operate an HD wallet file from the command line",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		initConfig()
		var err error
		params, err = networkParams(networkName)
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.walletctl.yaml)")
	rootCmd.PersistentFlags().StringVar(&walletPath, "wallet", "./wallet.db", "path to the wallet file")
	rootCmd.PersistentFlags().StringVar(&networkName, "network", "mainnet", "bitcoin network: mainnet, testnet3, simnet, regtest")

	_ = viper.BindPFlag("wallet", rootCmd.PersistentFlags().Lookup("wallet"))
	_ = viper.BindPFlag("network", rootCmd.PersistentFlags().Lookup("network"))

	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(accountCmd())
	rootCmd.AddCommand(addressCmd())
	rootCmd.AddCommand(backupCmd())
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.SetConfigName(".walletctl")
		viper.SetConfigType("yaml")
	}
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err == nil {
		if v := viper.GetString("wallet"); v != "" {
			walletPath = v
		}
		if v := viper.GetString("network"); v != "" {
			networkName = v
		}
	}
}

func networkParams(name string) (*chaincfg.Params, error) {
	switch name {
	case "mainnet":
		return &chaincfg.MainNetParams, nil
	case "testnet3":
		return &chaincfg.TestNet3Params, nil
	case "simnet":
		return &chaincfg.SimNetParams, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	default:
		return nil, fmt.Errorf("unknown network %q", name)
	}
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
