package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/meko-christian/mail-sorter/internal/credential"
)

var credentialsCmd = &cobra.Command{
	Use:   "credentials",
	Short: "Store secrets in the system keyring",
	Long: "Store secrets in the system keyring instead of config.yaml.\n\nKeys: " +
		strings.Join(credential.Known, ", "),
}

var credentialsSetCmd = &cobra.Command{
	Use:   "set <key>",
	Short: "Store a secret read from stdin",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		key := args[0]
		if !credential.IsKnown(key) {
			return fmt.Errorf("unknown key %q (known: %s)", key, strings.Join(credential.Known, ", "))
		}

		value := prompt(bufio.NewReader(os.Stdin), key+": ")
		if value == "" {
			return fmt.Errorf("empty value for %s", key)
		}

		store, err := credential.Open()
		if err != nil {
			return err
		}

		if err := store.Set(key, value); err != nil {
			return err
		}

		fmt.Printf("Stored %s in the system keyring.\n", key)
		return nil
	},
}

var credentialsDeleteCmd = &cobra.Command{
	Use:   "delete <key>",
	Short: "Remove a secret from the keyring",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		store, err := credential.Open()
		if err != nil {
			return err
		}

		if err := store.Delete(args[0]); err != nil {
			return err
		}

		fmt.Printf("Deleted %s from the system keyring.\n", args[0])
		return nil
	},
}

func init() {
	credentialsCmd.AddCommand(credentialsSetCmd, credentialsDeleteCmd)
}
