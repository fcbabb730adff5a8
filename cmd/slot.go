package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/satchel-app/satchel/internal/models"
	"github.com/satchel-app/satchel/internal/output"
)

var slotCmd = &cobra.Command{
	Use:     "slot",
	Short:   "Manage weekly timetable slots",
	GroupID: "planner",
}

var slotAddCmd = &cobra.Command{
	Use:   "add <subject>",
	Short: "Add a timetable slot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		day, _ := cmd.Flags().GetString("day")
		start, _ := cmd.Flags().GetString("start")
		end, _ := cmd.Flags().GetString("end")
		room, _ := cmd.Flags().GetString("room")

		dayNum, err := parseWeekday(day)
		if err != nil {
			output.Error("%v", err)
			return err
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

		entity, _, err := s.Create(models.KindScheduleSlots, &models.ScheduleSlot{
			Subject:   args[0],
			DayOfWeek: dayNum,
			StartTime: start,
			EndTime:   end,
			Room:      room,
		})
		if err != nil {
			output.Error("add slot: %v", err)
			return err
		}

		output.Success("added %s %s %s-%s (%s), queued for sync", args[0], day, start, end, entity.ID)
		return nil
	},
}

var weekdayNames = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

func parseWeekday(name string) (int, error) {
	needle := strings.ToLower(name)
	for i, full := range weekdayNames {
		if needle == full || (len(needle) >= 3 && strings.HasPrefix(full, needle)) {
			return i + 1, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q (use monday..sunday)", name)
}

func weekdayName(day int) string {
	if day < 1 || day > 7 {
		return fmt.Sprintf("day-%d", day)
	}
	return strings.ToUpper(weekdayNames[day-1][:1]) + weekdayNames[day-1][1:]
}

func init() {
	slotAddCmd.Flags().String("day", "monday", "weekday (monday..sunday)")
	slotAddCmd.Flags().String("start", "09:00", "start time (HH:MM)")
	slotAddCmd.Flags().String("end", "10:00", "end time (HH:MM)")
	slotAddCmd.Flags().String("room", "", "room name")
	slotCmd.AddCommand(slotAddCmd)
	rootCmd.AddCommand(slotCmd)
}
