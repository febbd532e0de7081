package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/foliavcs/folia/automerge"
	"github.com/foliavcs/folia/repo"
	"github.com/foliavcs/folia/storage/remote"
)

var pullRemoteURL string
var pullSync bool

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Pull commits from a remote folia server and optionally auto-merge",
	RunE:  runPull,
}

func init() {
	pullCmd.Flags().StringVar(&pullRemoteURL, "remote", "", "base URL of a storage/remote server")
	pullCmd.Flags().BoolVar(&pullSync, "sync", false, "run the auto-merge protocol after pulling")
	_ = pullCmd.MarkFlagRequired("remote")
}

func runPull(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	adapter, err := cfg.openAdapter()
	if err != nil {
		return err
	}
	defer adapter.Close()

	ctx := context.Background()
	r, err := repo.Open(ctx, adapter, cfg.repoConfig())
	if err != nil {
		return fmt.Errorf("foliactl: pull: %w", err)
	}

	client := remote.NewClient(pullRemoteURL)
	defer client.Close()

	if err := r.Pull(ctx, client); err != nil {
		return fmt.Errorf("foliactl: pull: %w", err)
	}
	fmt.Printf("pulled into %q, root hash %s\n", r.CurrentBranch(), r.RootHash())

	if pullSync {
		if err := automerge.Sync(ctx, r); err != nil {
			return fmt.Errorf("foliactl: pull: sync: %w", err)
		}
		fmt.Printf("synced %q, root hash %s\n", r.CurrentBranch(), r.RootHash())
	}
	return nil
}
