package pdf

import (
	"os"
	"path/filepath"
	"testing"
)

func TestValidateFile(t *testing.T) {
	dir := t.TempDir()

	pdfPath := filepath.Join(dir, "scan.PDF")
	if err := os.WriteFile(pdfPath, []byte("%PDF-1.4"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Run("accepts_pdf_extension_case_insensitive", func(t *testing.T) {
		if err := ValidateFile(pdfPath); err != nil {
			t.Errorf("ValidateFile() = %v", err)
		}
	})

	t.Run("rejects_other_extensions", func(t *testing.T) {
		txtPath := filepath.Join(dir, "notes.txt")
		if err := os.WriteFile(txtPath, []byte("hi"), 0o644); err != nil {
			t.Fatal(err)
		}
		if err := ValidateFile(txtPath); err == nil {
			t.Error("expected error for .txt file")
		}
	})

	t.Run("rejects_missing_file", func(t *testing.T) {
		if err := ValidateFile(filepath.Join(dir, "missing.pdf")); err == nil {
			t.Error("expected error for missing file")
		}
	})

	t.Run("rejects_directory", func(t *testing.T) {
		sub := filepath.Join(dir, "folder.pdf")
		if err := os.Mkdir(sub, 0o755); err != nil {
			t.Fatal(err)
		}
		if err := ValidateFile(sub); err == nil {
			t.Error("expected error for directory")
		}
	})
}
