package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/opd-ai/hdvault/backup"
	"github.com/opd-ai/hdvault/walletcore"
)

var (
	backupSecurePrint string
	restoreFile       string
)

func backupCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "backup", Short: "Create or restore a paper backup"}
	cmd.AddCommand(backupCreateCmd())
	cmd.AddCommand(backupRestoreCmd())
	return cmd
}

func backupCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Print an Easy16 paper backup of the wallet's seed",
		RunE:  runBackupCreate,
	}
	cmd.Flags().StringVar(&backupSecurePrint, "secureprint", "", "wrap the backup under a SecurePrint passphrase")
	return cmd
}

func backupRestoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Restore a wallet from an Easy16 paper backup file",
		RunE:  runBackupRestore,
	}
	cmd.Flags().StringVar(&restoreFile, "file", "", "path to a text file with one backup line per line")
	cmd.Flags().StringVar(&backupSecurePrint, "secureprint", "", "SecurePrint passphrase, if the backup was wrapped")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func runBackupCreate(cmd *cobra.Command, args []string) error {
	w, err := walletcore.Open(walletPath, params, promptPassphrase, promptPassphrase)
	if err != nil {
		return err
	}
	defer w.Close()

	lines, err := w.ExportEasy16(promptPassphrase, backupSecurePrint)
	if err != nil {
		return err
	}
	for _, line := range lines {
		fmt.Println(line)
	}
	return nil
}

func runBackupRestore(cmd *cobra.Command, args []string) error {
	lines, err := readLines(restoreFile)
	if err != nil {
		return err
	}

	confirmPrompt := func(kind backup.PromptKind, indexes []byte, walletID string) bool {
		switch kind {
		case backup.PromptChecksumError:
			fmt.Fprintln(os.Stderr, "backup line checksum failed, attempting auto-repair")
			return true
		case backup.PromptConfirmID:
			reply, _ := readLine(fmt.Sprintf("restore wallet %s? [y/N] ", walletID))
			return strings.EqualFold(reply, "y")
		default:
			return false
		}
	}

	w, err := walletcore.RestoreFromEasy16(walletPath, lines, backupSecurePrint, params, promptPassphrase, promptPassphrase, nil, confirmPrompt)
	if err != nil {
		return err
	}
	defer w.Close()
	fmt.Printf("restored wallet %s at %s\n", w.ID, walletPath)
	return nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines, scanner.Err()
}
