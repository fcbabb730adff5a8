package cmd

import (
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/satchel-app/satchel/internal/output"
)

var attachCmd = &cobra.Command{
	Use:     "attach <entity-id> <file>",
	Short:   "Attach a file to an entity",
	GroupID: "planner",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[1])
		if err != nil {
			output.Error("read %s: %v", args[1], err)
			return err
		}

		mimeType := mime.TypeByExtension(filepath.Ext(args[1]))
		if mimeType == "" {
			mimeType = "application/octet-stream"
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

		att, _, err := s.Attach(args[0], filepath.Base(args[1]), mimeType, data)
		if err != nil {
			output.Error("attach: %v", err)
			return err
		}

		output.Success("attached %s (%d bytes, %s), queued for upload", filepath.Base(args[1]), att.FileSize, att.ID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(attachCmd)
}
