package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Test the IMAP and LLM connections",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		var failed []error

		fmt.Printf("Testing IMAP connection to %s ... ", cfg.IMAP.Address())
		session, err := dialSession(cfg)
		if err != nil {
			fmt.Println("failed")
			failed = append(failed, err)
		} else {
			folders, listErr := session.ListFolders()
			if listErr != nil {
				fmt.Println("failed")
				failed = append(failed, fmt.Errorf("failed to list folders: %w", listErr))
			} else {
				fmt.Printf("ok (%d folders)\n", len(folders))
			}
			_ = session.Logout()
		}

		fmt.Printf("Testing LLM API at %s ... ", cfg.LLM.Endpoint)
		client, err := newOracle(cfg)
		if err == nil {
			err = client.Ping(context.Background())
		}
		if err != nil {
			fmt.Println("failed")
			failed = append(failed, fmt.Errorf("LLM API: %w", err))
		} else {
			fmt.Println("ok")
		}

		return errors.Join(failed...)
	},
}
