package main

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/folio/internal/api"
	"github.com/jackzampolin/folio/internal/pdf"
)

// InfoResult is the output of the info command.
type InfoResult struct {
	Filename   string `json:"filename" yaml:"filename"`
	TotalPages int    `json:"total_pages" yaml:"total_pages"`
}

var infoCmd = &cobra.Command{
	Use:   "info <file.pdf>",
	Short: "Print page metadata for a local PDF",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		if err := pdf.ValidateFile(path); err != nil {
			return err
		}
		count, err := pdf.PageCount(path)
		if err != nil {
			return err
		}
		return api.Output(InfoResult{
			Filename:   filepath.Base(path),
			TotalPages: count,
		})
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
