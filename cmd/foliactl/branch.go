package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/foliavcs/folia/repo"
	"github.com/foliavcs/folia/storage"
	"github.com/foliavcs/folia/vcs"
)

var branchNewName string

var branchCmd = &cobra.Command{
	Use:   "branch",
	Short: "List branches, or create one with --new and switch to it",
	RunE:  runBranch,
}

func init() {
	branchCmd.Flags().StringVar(&branchNewName, "new", "", "create a branch with this name and make it current")
}

func runBranch(cmd *cobra.Command, args []string) error {
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
		return fmt.Errorf("foliactl: branch: %w", err)
	}

	if branchNewName == "" {
		for _, b := range r.Graph().Branches() {
			marker := " "
			if b.Name == r.CurrentBranch() {
				marker = "*"
			}
			fmt.Printf("%s %s\t%s\n", marker, b.Name, b.HeadCommitID)
		}
		return nil
	}

	var headCommitID string
	if head, ok := r.Graph().Branch(r.CurrentBranch()); ok {
		headCommitID = head.HeadCommitID
	}
	newBranch := vcs.Branch{Name: branchNewName, HeadCommitID: headCommitID}
	if err := adapter.ApplyUpdate(ctx, storage.InternalRepoUpdate{
		AddedBranches: []vcs.Branch{newBranch},
	}); err != nil {
		return fmt.Errorf("foliactl: branch: %w", err)
	}

	r.Graph().AddBranch(branchNewName)
	if headCommitID != "" {
		if err := r.Graph().SetBranchHead(branchNewName, headCommitID); err != nil {
			return fmt.Errorf("foliactl: branch: %w", err)
		}
	}
	if err := r.SetCurrentBranch(branchNewName); err != nil {
		return fmt.Errorf("foliactl: branch: %w", err)
	}
	fmt.Printf("created and switched to %q\n", branchNewName)
	return nil
}
