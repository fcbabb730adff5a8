package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/satchel-app/satchel/internal/output"
)

var pendingCmd = &cobra.Command{
	Use:     "pending",
	Short:   "Show queued, failed, and conflicted actions",
	GroupID: "sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			output.Error("open store: %v", err)
			return err
		}
		defer st.Close()

		actions, err := st.ListPendingActions()
		if err != nil {
			output.Error("list pending actions: %v", err)
			return err
		}

		if len(actions) == 0 {
			output.Info("queue is empty")
			return nil
		}

		output.Title("Pending Actions")
		for _, a := range actions {
			fmt.Println(output.FormatAction(a))
		}
		return nil
	},
}

var pendingRetryCmd = &cobra.Command{
	Use:   "retry <action-id>",
	Short: "Re-arm a terminally failed action",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid action id %q", args[0])
		}

		st, err := openStore()
		if err != nil {
			output.Error("open store: %v", err)
			return err
		}
		defer st.Close()

		s, err := buildSyncer(st)
		if err != nil {
			return err
		}

		if err := s.RetryTerminal(id); err != nil {
			output.Error("retry: %v", err)
			return err
		}

		output.Success("action %d re-armed; run 'satchel sync' to replay", id)
		return nil
	},
}

var pendingDiscardCmd = &cobra.Command{
	Use:   "discard <action-id>",
	Short: "Drop a queued action and any conflict recorded for it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid action id %q", args[0])
		}

		st, err := openStore()
		if err != nil {
			output.Error("open store: %v", err)
			return err
		}
		defer st.Close()

		s, err := buildSyncer(st)
		if err != nil {
			return err
		}

		if err := s.Discard(id); err != nil {
			output.Error("discard: %v", err)
			return err
		}

		output.Warning("action %d discarded; the local change will not reach the server", id)
		return nil
	},
}

func init() {
	pendingCmd.AddCommand(pendingRetryCmd)
	pendingCmd.AddCommand(pendingDiscardCmd)
	rootCmd.AddCommand(pendingCmd)
}
