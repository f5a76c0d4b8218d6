package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joacominatel/sqlgate/internal/config"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var passwordCmd = &cobra.Command{
	Use:   "password",
	Short: "Manage the database password stored in the OS keyring",
}

var passwordSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Prompt for the database password and store it",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cmd.SilenceUsage = true

		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		target := cfg.Database.Target()

		password, err := promptPassword(fmt.Sprintf("Password for %s: ", target.DisplayString()))
		if err != nil {
			return err
		}
		if password == "" {
			return errors.New("password is required")
		}
		confirm, err := promptPassword("Confirm password: ")
		if err != nil {
			return err
		}
		if password != confirm {
			return errors.New("passwords do not match")
		}

		if err := config.StorePassword(target, password); err != nil {
			return err
		}
		fmt.Printf("Stored password for %s\n", config.KeyringAccount(target))
		if !cfg.Database.UseKeyring {
			fmt.Println("Set database.use_keyring: true (or SQLGATE_DATABASE_USE_KEYRING=true) to use it.")
		}
		return nil
	},
}

var passwordDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Remove the stored database password",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cmd.SilenceUsage = true

		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		target := cfg.Database.Target()
		if err := config.DeletePassword(target); err != nil {
			return err
		}
		fmt.Printf("Removed password for %s\n", config.KeyringAccount(target))
		return nil
	},
}

func init() {
	passwordCmd.AddCommand(passwordSetCmd, passwordDeleteCmd)
}

// promptPassword reads a line from the terminal without echo.
func promptPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("password prompt requires a terminal")
	}
	fmt.Print(prompt)
	b, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(b), nil
}
