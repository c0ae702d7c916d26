package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/folio/internal/api"
	"github.com/jackzampolin/folio/internal/config"
	"github.com/jackzampolin/folio/internal/ocr"
	"github.com/jackzampolin/folio/internal/pdf"
)

var (
	watchSave       string
	watchNoProgress bool
)

var watchCmd = &cobra.Command{
	Use:   "watch <file.pdf>",
	Short: "Upload a PDF and follow the OCR job to completion",
	Long: `Upload a PDF to the OCR service, follow the per-page progress
stream until the job resolves, and print the aggregated document text.

Progress goes to stderr; the final document goes to stdout, so output
can be piped or redirected:

  folio watch scan.pdf > scan.txt
  folio watch scan.pdf --save scan.txt`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		logger := newLogger()
		path := args[0]

		cm, err := config.NewManager(cfgFile)
		if err != nil {
			return err
		}
		cfg := cm.Get()

		job := ocr.NewJob(ocr.JobConfig{Logger: logger})

		// An invalid selection never leaves idle; report and stop
		// before anything is sent.
		if err := pdf.ValidateFile(path); err != nil {
			return err
		}

		client := api.NewClient(cfg.ServerURL, time.Duration(cfg.UploadTimeoutSeconds)*time.Second)

		if err := job.BeginUpload(); err != nil {
			return err
		}
		up, err := client.Upload(ctx, path)
		if err != nil {
			job.UploadFailed(err)
			return fmt.Errorf("upload failed: %w", err)
		}
		logger.Info("uploaded", "filename", up.Filename)

		info, err := client.PdfInfo(ctx, up.Filename)
		if err != nil {
			job.UploadFailed(err)
			return fmt.Errorf("failed to fetch page metadata: %w", err)
		}

		if cfg.ValidateLocal {
			if local, err := pdf.PageCount(path); err == nil && local != info.TotalPages {
				logger.Warn("server page count disagrees with local count",
					"server", info.TotalPages, "local", local)
			}
		}

		if err := job.UploadSucceeded(up.Filename, info.TotalPages); err != nil {
			return err
		}

		if !watchNoProgress {
			job.OnChange(func() {
				fmt.Fprintf(os.Stderr, "\rpages %d/%d  state=%s  %ds",
					job.PagesDone(), job.TotalPages(), job.State(), job.Elapsed())
			})
		}

		if err := job.Start(); err != nil {
			return err
		}

		body, err := client.StartOCRStream(ctx, up.Filename)
		if err != nil {
			job.TransportFailed(err)
			return fmt.Errorf("failed to start OCR stream: %w", err)
		}

		runErr := job.Run(ctx, body)
		if !watchNoProgress {
			fmt.Fprintln(os.Stderr)
		}
		if runErr != nil {
			return runErr
		}

		doc := job.Document()
		if watchSave != "" && doc != "" {
			if err := os.WriteFile(watchSave, []byte(doc), 0o644); err != nil {
				return fmt.Errorf("failed to save document: %w", err)
			}
			logger.Info("document saved", "path", watchSave)
		}

		switch job.State() {
		case ocr.StateCompletedSuccess:
			fmt.Fprintf(os.Stderr, "OCR took %d seconds\n", job.Elapsed())
			fmt.Println(doc)
			return nil
		default:
			// Partial text stays available even when the job failed.
			if doc != "" {
				fmt.Println(doc)
			}
			return fmt.Errorf("job failed: %s", job.Err())
		}
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchSave, "save", "", "write the aggregated text to this file")
	watchCmd.Flags().BoolVar(&watchNoProgress, "no-progress", false, "disable the progress line on stderr")

	rootCmd.AddCommand(watchCmd)
}
