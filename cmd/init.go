package cmd

import (
	"github.com/spf13/cobra"

	"github.com/satchel-app/satchel/internal/output"
	"github.com/satchel-app/satchel/internal/store"
)

var initCmd = &cobra.Command{
	Use:     "init",
	Short:   "Create the local store",
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.Initialize(baseDir)
		if err != nil {
			output.Error("initialize store: %v", err)
			return err
		}
		defer st.Close()

		output.Success("satchel store initialized")
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:     "logout",
	Short:   "Clear credentials and wipe the local store",
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			output.Error("open store: %v", err)
			return err
		}
		defer st.Close()

		stats, err := st.GetQueueStats()
		if err != nil {
			output.Error("read queue: %v", err)
			return err
		}
		force, _ := cmd.Flags().GetBool("force")
		if stats.Queued+stats.Terminal+stats.Conflicted > 0 && !force {
			output.Warning("%d unsynced change(s) would be lost; run 'satchel sync' first or pass --force",
				stats.Queued+stats.Terminal+stats.Conflicted)
			return nil
		}

		if err := st.ClearAll(); err != nil {
			output.Error("clear store: %v", err)
			return err
		}
		if err := clearStoredAuth(); err != nil {
			output.Error("clear credentials: %v", err)
			return err
		}

		output.Success("logged out, local data cleared")
		return nil
	},
}

func init() {
	logoutCmd.Flags().Bool("force", false, "discard unsynced changes")
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(logoutCmd)
}
