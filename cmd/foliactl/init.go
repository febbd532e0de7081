package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/foliavcs/folia/repo"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a new repository using the configured storage adapter",
	RunE:  runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	adapter, err := cfg.openAdapter()
	if err != nil {
		return err
	}
	defer adapter.Close()

	r, err := repo.Create(context.Background(), adapter, cfg.repoConfig())
	if err != nil {
		return fmt.Errorf("foliactl: init: %w", err)
	}
	fmt.Printf("created repository on branch %q, root hash %s\n", r.CurrentBranch(), r.RootHash())
	return nil
}
