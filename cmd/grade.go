package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/satchel-app/satchel/internal/models"
	"github.com/satchel-app/satchel/internal/output"
)

var gradeDate string

var gradeCmd = &cobra.Command{
	Use:     "grade",
	Short:   "Record graded results",
	GroupID: "planner",
}

var gradeAddCmd = &cobra.Command{
	Use:   "add <subject>",
	Short: "Record a grade",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		score, _ := cmd.Flags().GetFloat64("score")
		maxScore, _ := cmd.Flags().GetFloat64("max")
		weight, _ := cmd.Flags().GetFloat64("weight")

		gradedAt := gradeDate
		if gradedAt == "" {
			gradedAt = time.Now().Format("2006-01-02")
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

		entity, _, err := s.Create(models.KindGrades, &models.Grade{
			Subject:  args[0],
			Score:    score,
			MaxScore: maxScore,
			Weight:   weight,
			GradedAt: gradedAt,
		})
		if err != nil {
			output.Error("add grade: %v", err)
			return err
		}

		output.Success("recorded %.1f/%.1f for %s (%s), queued for sync", score, maxScore, args[0], entity.ID)
		return nil
	},
}

func init() {
	gradeAddCmd.Flags().Float64("score", 0, "points earned")
	gradeAddCmd.Flags().Float64("max", 100, "maximum points")
	gradeAddCmd.Flags().Float64("weight", 0, "weight toward the subject average")
	gradeAddCmd.Flags().Var(newDateValue(&gradeDate), "date", "grading date (YYYY-MM-DD or shorthand, default today)")
	gradeCmd.AddCommand(gradeAddCmd)
	rootCmd.AddCommand(gradeCmd)
}
