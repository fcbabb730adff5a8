package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/satchel-app/satchel/internal/models"
	"github.com/satchel-app/satchel/internal/output"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Short:   "List assignments",
	GroupID: "planner",
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		days, _ := cmd.Flags().GetInt("days")

		st, err := openStore()
		if err != nil {
			output.Error("open store: %v", err)
			return err
		}
		defer st.Close()

		var entities []models.CachedEntity
		if all {
			entities, err = st.GetByKind(models.KindAssignments)
		} else {
			from := time.Now().Format("2006-01-02")
			to := time.Now().AddDate(0, 0, days).Format("2006-01-02")
			entities, err = st.GetDueBetween(from, to)
		}
		if err != nil {
			output.Error("list assignments: %v", err)
			return err
		}

		if len(entities) == 0 {
			output.Info("no assignments")
			return nil
		}

		output.Title("Assignments")
		for _, e := range entities {
			var a models.Assignment
			p, err := e.DecodedPayload()
			if err != nil {
				output.Warning("skipping %s: %v", e.ID, err)
				continue
			}
			a = *p.(*models.Assignment)

			mark := " "
			if a.Completed {
				mark = "x"
			}
			due := a.DueDate
			if due == "" {
				due = "no due date"
			}
			suffix := ""
			if !e.Synced {
				suffix = " (unsynced)"
			}
			fmt.Printf("[%s] %-30s %-12s due %s  %s%s\n", mark, truncateTitle(a.Title), a.Subject, due, shortID(e.ID), suffix)
		}
		return nil
	},
}

var scheduleCmd = &cobra.Command{
	Use:     "schedule [day]",
	Short:   "Show the timetable for a day",
	GroupID: "planner",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		day := int(time.Now().Weekday())
		if day == 0 {
			day = 7 // Sunday
		}
		if len(args) == 1 {
			var err error
			day, err = parseWeekday(args[0])
			if err != nil {
				output.Error("%v", err)
				return err
			}
		}

		st, err := openStore()
		if err != nil {
			output.Error("open store: %v", err)
			return err
		}
		defer st.Close()

		entities, err := st.GetByDay(day)
		if err != nil {
			output.Error("load schedule: %v", err)
			return err
		}

		if len(entities) == 0 {
			output.Info("no lessons on %s", weekdayName(day))
			return nil
		}

		output.Title(weekdayName(day))
		for _, e := range entities {
			p, err := e.DecodedPayload()
			if err != nil {
				output.Warning("skipping %s: %v", e.ID, err)
				continue
			}
			slot := p.(*models.ScheduleSlot)
			room := slot.Room
			if room != "" {
				room = "  " + room
			}
			fmt.Printf("%s-%s  %s%s\n", slot.StartTime, slot.EndTime, slot.Subject, room)
		}
		return nil
	},
}

var gradesCmd = &cobra.Command{
	Use:     "grades [subject]",
	Short:   "Show recorded grades",
	GroupID: "planner",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			output.Error("open store: %v", err)
			return err
		}
		defer st.Close()

		entities, err := st.GetByKind(models.KindGrades)
		if err != nil {
			output.Error("load grades: %v", err)
			return err
		}

		// Per-subject weighted averages alongside the raw list.
		type bucket struct {
			weighted float64
			weights  float64
		}
		averages := map[string]*bucket{}

		output.Title("Grades")
		shown := 0
		for _, e := range entities {
			p, err := e.DecodedPayload()
			if err != nil {
				output.Warning("skipping %s: %v", e.ID, err)
				continue
			}
			g := p.(*models.Grade)
			if len(args) == 1 && g.Subject != args[0] {
				continue
			}
			shown++

			fmt.Printf("%-12s %6.1f / %-6.1f %s\n", g.Subject, g.Score, g.MaxScore, g.GradedAt)

			if g.MaxScore > 0 {
				w := g.Weight
				if w == 0 {
					w = 1
				}
				b := averages[g.Subject]
				if b == nil {
					b = &bucket{}
					averages[g.Subject] = b
				}
				b.weighted += (g.Score / g.MaxScore) * w
				b.weights += w
			}
		}

		if shown == 0 {
			output.Info("no grades recorded")
			return nil
		}

		fmt.Println()
		for subject, b := range averages {
			if b.weights > 0 {
				output.Subtle("%s average: %.1f%%", subject, 100*b.weighted/b.weights)
			}
		}
		return nil
	},
}

// shortID abbreviates local uuid ids for display. Server-assigned ids can
// be shorter than the abbreviation and are shown whole.
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

func truncateTitle(s string) string {
	if len(s) <= 30 {
		return s
	}
	return s[:27] + "..."
}

func init() {
	listCmd.Flags().Bool("all", false, "include assignments without a due date in range")
	listCmd.Flags().Int("days", 14, "days ahead to list")
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(gradesCmd)
}
