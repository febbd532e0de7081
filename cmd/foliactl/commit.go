package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/foliavcs/folia/delta"
	"github.com/foliavcs/folia/repo"
)

var commitDeltaPath string
var commitMessage string

var commitCmd = &cobra.Command{
	Use:   "commit",
	Short: "Apply a delta file to the repository and commit the result",
	RunE:  runCommit,
}

func init() {
	commitCmd.Flags().StringVar(&commitDeltaPath, "delta", "", "path to a JSON-encoded delta file")
	commitCmd.Flags().StringVar(&commitMessage, "message", "", "commit message")
	_ = commitCmd.MarkFlagRequired("delta")
}

func runCommit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	adapter, err := cfg.openAdapter()
	if err != nil {
		return err
	}
	defer adapter.Close()

	r, err := repo.Open(context.Background(), adapter, cfg.repoConfig())
	if err != nil {
		return fmt.Errorf("foliactl: commit: %w", err)
	}

	data, err := os.ReadFile(commitDeltaPath)
	if err != nil {
		return fmt.Errorf("foliactl: commit: read delta: %w", err)
	}
	d, err := delta.Unmarshal(data)
	if err != nil {
		return fmt.Errorf("foliactl: commit: decode delta: %w", err)
	}

	c, err := r.Commit(context.Background(), d, commitMessage)
	if err != nil {
		return fmt.Errorf("foliactl: commit: %w", err)
	}
	fmt.Printf("committed %s on %q, root hash %s\n", c.ID, r.CurrentBranch(), r.RootHash())
	return nil
}
