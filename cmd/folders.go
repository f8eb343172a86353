package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/meko-christian/mail-sorter/internal/config"
	"github.com/meko-christian/mail-sorter/internal/sorter"
)

var foldersCmd = &cobra.Command{
	Use:   "folders",
	Short: "List the folders on the IMAP server and how categories resolve",
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		session, err := dialSession(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = session.Logout() }()

		folders, err := session.ListFolders()
		if err != nil {
			return err
		}

		fmt.Println("Folders:")
		for _, f := range folders {
			fmt.Printf("  %s\n", f.Raw())
		}

		resolver := sorter.NewResolver(session, cfg.FolderPrefixes, slog.Default())

		fmt.Println("\nCategories:")
		for _, cat := range cfg.Categories.All() {
			res := resolver.Resolve(cat.Folder)
			if !res.OK {
				fmt.Printf("  %-20s %-30s NOT FOUND\n", cat.Name, cat.Folder)
				continue
			}
			fmt.Printf("  %-20s %-30s -> %s (%s)\n", cat.Name, cat.Folder, res.Folder, res.Via)
		}

		return nil
	},
}

var foldersCreateCmd = &cobra.Command{
	Use:   "create <folder>...",
	Short: "Create folders on the IMAP server",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		return createFolders(cfg, args)
	},
}

func init() {
	foldersCmd.AddCommand(foldersCreateCmd)
}

func createFolders(cfg config.Config, labels []string) error {
	session, err := dialSession(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = session.Logout() }()

	for _, label := range labels {
		name, err := sorter.EnsureFolder(session, label, cfg.FolderPrefixes, slog.Default())
		if err != nil {
			return err
		}
		fmt.Printf("%s -> %s\n", label, name)
	}

	return nil
}
