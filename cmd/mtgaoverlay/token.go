package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mdib1/mtgaoverlay/internal/config"
)

var tokenSet string

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Show or set the client token",
	Long: `Show the configured client token, or store one with --set.

The token ties submissions to your account on the stats service; it must
be a UUID. Without --set, the current token is printed.`,
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSet, "set", "",
		"Store this token in the config file")
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if tokenSet == "" {
		if err := cfg.ValidateToken(); err != nil {
			return err
		}
		fmt.Println(cfg.Token)
		return nil
	}

	cfg.Token = tokenSet
	if err := cfg.ValidateToken(); err != nil {
		return err
	}
	if err := cfg.Save(); err != nil {
		return err
	}
	path, _ := config.Path()
	fmt.Printf("token saved to %s\n", path)
	return nil
}
