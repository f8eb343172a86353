package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/meko-christian/mail-sorter/internal/config"
)

const backupDir = "backups"

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "Manage classification categories",
}

var categoriesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List categories and their folders",
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		for _, cat := range cfg.Categories.All() {
			marker := ""
			if cat.Name == cfg.Categories.Fallback().Name {
				marker = " (fallback)"
			}
			fmt.Printf("%-20s %s%s\n", cat.Name, cat.Folder, marker)
		}

		return nil
	},
}

var categoriesAddCmd = &cobra.Command{
	Use:   "add <name> <folder>",
	Short: "Add a category",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return changeCategories(cmd, "add "+args[0], args[1], func(c config.Categories) (config.Categories, error) {
			return c.Add(args[0], args[1])
		})
	},
}

var categoriesUpdateCmd = &cobra.Command{
	Use:   "update <name> <folder>",
	Short: "Change the folder of a category",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return changeCategories(cmd, "update "+args[0], args[1], func(c config.Categories) (config.Categories, error) {
			return c.Update(args[0], args[1])
		})
	},
}

var categoriesRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a category",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return changeCategories(cmd, "remove "+args[0], "", func(c config.Categories) (config.Categories, error) {
			return c.Remove(args[0])
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{categoriesAddCmd, categoriesUpdateCmd} {
		c.Flags().Bool("create", false, "Create the folder on the IMAP server")
	}

	categoriesCmd.AddCommand(categoriesListCmd, categoriesAddCmd, categoriesUpdateCmd, categoriesRemoveCmd)
}

// changeCategories applies change to the configured categories, writes the
// result to the config file after a backup and optionally creates folder.
func changeCategories(cmd *cobra.Command, reason, folder string, change func(config.Categories) (config.Categories, error)) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	cats, err := change(cfg.Categories)
	if err != nil {
		return err
	}

	if err := config.SaveCategories(viper.GetViper(), config.NewBackup(backupDir), cats, reason); err != nil {
		return err
	}

	fmt.Printf("Saved %d categories to %s\n", cats.Len(), viper.ConfigFileUsed())

	if create, _ := cmd.Flags().GetBool("create"); create && folder != "" {
		return createFolders(cfg.WithCategories(cats), []string{folder})
	}

	return nil
}
