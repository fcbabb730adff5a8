package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/satchel-app/satchel/internal/models"
	"github.com/satchel-app/satchel/internal/output"
)

var addDue string

var addCmd = &cobra.Command{
	Use:     "add <title>",
	Short:   "Add an assignment",
	GroupID: "planner",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		subject, _ := cmd.Flags().GetString("subject")
		description, _ := cmd.Flags().GetString("description")

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

		entity, _, err := s.Create(models.KindAssignments, &models.Assignment{
			Title:       args[0],
			Description: description,
			Subject:     subject,
			DueDate:     addDue,
		})
		if err != nil {
			output.Error("add assignment: %v", err)
			return err
		}

		output.Success("added %q (%s), queued for sync", args[0], entity.ID)
		return nil
	},
}

var doneCmd = &cobra.Command{
	Use:     "done <id>",
	Short:   "Mark an assignment completed",
	GroupID: "planner",
	Args:    cobra.ExactArgs(1),
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

		entity, err := st.GetByID(args[0])
		if err != nil {
			output.Error("lookup %s: %v", args[0], err)
			return err
		}

		var assignment models.Assignment
		if err := json.Unmarshal(entity.Payload, &assignment); err != nil {
			output.Error("decode assignment: %v", err)
			return err
		}
		assignment.Completed = true

		if _, err := s.Update(entity.ID, &assignment); err != nil {
			output.Error("update assignment: %v", err)
			return err
		}

		output.Success("completed %q, queued for sync", assignment.Title)
		return nil
	},
}

var rmCmd = &cobra.Command{
	Use:     "rm <id>",
	Short:   "Delete an entity and its attachments",
	GroupID: "planner",
	Args:    cobra.ExactArgs(1),
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

		if _, err := s.Delete(args[0]); err != nil {
			output.Error("delete %s: %v", args[0], err)
			return err
		}

		output.Success("deleted %s, queued for sync", args[0])
		return nil
	},
}

func init() {
	addCmd.Flags().String("subject", "", "subject name")
	addCmd.Flags().Var(newDateValue(&addDue), "due", "due date (YYYY-MM-DD, tomorrow, +3d, friday)")
	addCmd.Flags().String("description", "", "longer description")
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(doneCmd)
	rootCmd.AddCommand(rmCmd)
}
