package cmd

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/satchel-app/satchel/internal/conflict"
	"github.com/satchel-app/satchel/internal/output"
	"github.com/satchel-app/satchel/internal/syncer"
)

var conflictsCmd = &cobra.Command{
	Use:     "conflicts",
	Short:   "Review and resolve sync conflicts",
	GroupID: "sync",
	RunE: func(cmd *cobra.Command, args []string) error {
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

		views, err := s.ListConflicts()
		if err != nil {
			output.Error("list conflicts: %v", err)
			return err
		}

		if len(views) == 0 {
			output.Success("no conflicts")
			return nil
		}

		output.Title("Conflicts")
		for _, v := range views {
			c := v.Conflict
			fmt.Println(output.FormatConflictLine(c.ID, c.EntityKind, c.EntityID, v.Summary, c.DetectedAt))
		}
		output.Subtle("use 'satchel conflicts show <id>' for the full report")
		return nil
	},
}

var conflictsShowCmd = &cobra.Command{
	Use:   "show <conflict-id>",
	Short: "Show the field-level conflict report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid conflict id %q", args[0])
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

		view, err := s.GetConflict(id)
		if err != nil {
			output.Error("load conflict: %v", err)
			return err
		}

		fmt.Println(output.RenderReport(view.Report()))
		return nil
	},
}

var conflictsResolveCmd = &cobra.Command{
	Use:   "resolve <conflict-id>",
	Short: "Resolve a conflict with a strategy",
	Long: `Resolve a conflict with a strategy.

Strategies:
  client_wins  keep the local payload wholesale
  server_wins  keep the server payload wholesale
  smart_merge  combine one-sided changes, tie-break true conflicts
  manual       pick a side per conflicted field (interactive)`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid conflict id %q", args[0])
		}

		strategyName, _ := cmd.Flags().GetString("strategy")
		strategy := conflict.Strategy(strategyName)
		if !conflict.ValidStrategy(strategy) {
			return fmt.Errorf("unknown strategy %q", strategyName)
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

		var selections map[string]conflict.Side
		if strategy == conflict.Manual {
			view, err := s.GetConflict(id)
			if err != nil {
				output.Error("load conflict: %v", err)
				return err
			}
			selections, err = promptSelections(view)
			if err != nil {
				return err
			}
		}

		res, err := s.Resolve(id, strategy, selections)
		if err != nil {
			if errors.Is(err, conflict.ErrUnresolvedFields) {
				output.Error("resolution incomplete; fields still open: %v", res.ConflictedFields)
				return err
			}
			output.Error("resolve: %v", err)
			return err
		}

		output.Success("resolved with %s; reconciled write queued at version %d", res.Strategy, res.NewVersion)
		output.Subtle("run 'satchel sync' to push the reconciled payload")
		return nil
	},
}

// promptSelections runs one select per conflicted field. Every field must
// get an answer; the form has no skip path.
func promptSelections(view *syncer.ConflictView) (map[string]conflict.Side, error) {
	selections := make(map[string]conflict.Side)
	answers := make(map[string]*string)

	var fields []huh.Field
	for _, d := range view.Diff {
		if !d.IsConflict {
			continue
		}
		choice := new(string)
		answers[d.Field] = choice
		fields = append(fields, huh.NewSelect[string]().
			Title(d.Field).
			Description(d.Description).
			Options(
				huh.NewOption(fmt.Sprintf("local:  %v", d.ClientValue), string(conflict.SideClient)),
				huh.NewOption(fmt.Sprintf("server: %v", d.ServerValue), string(conflict.SideServer)),
			).
			Value(choice))
	}
	if len(fields) == 0 {
		return selections, nil
	}

	form := huh.NewForm(huh.NewGroup(fields...).Title("Pick a side for each field"))
	if err := form.Run(); err != nil {
		return nil, fmt.Errorf("manual resolution cancelled: %w", err)
	}

	for field, choice := range answers {
		selections[field] = conflict.Side(*choice)
	}
	return selections, nil
}

func init() {
	conflictsResolveCmd.Flags().String("strategy", string(conflict.Manual), "client_wins, server_wins, smart_merge, or manual")
	conflictsCmd.AddCommand(conflictsShowCmd)
	conflictsCmd.AddCommand(conflictsResolveCmd)
	rootCmd.AddCommand(conflictsCmd)
}
