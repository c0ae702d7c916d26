package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTempPDF(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4 test content"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestClient_Upload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/upload" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("missing file field: %v", err)
		}
		defer f.Close()
		if hdr.Filename != "doc.pdf" {
			t.Errorf("filename = %q", hdr.Filename)
		}
		// Server deduplicates names; the client must adopt the
		// returned one.
		w.Write([]byte(`{"message":"File uploaded successfully","filename":"doc_1.pdf"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	resp, err := client.Upload(context.Background(), writeTempPDF(t))
	if err != nil {
		t.Fatal(err)
	}
	if resp.Filename != "doc_1.pdf" {
		t.Errorf("Filename = %q, want doc_1.pdf", resp.Filename)
	}
}

func TestClient_UploadRetriesTransientFailure(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte(`{"error":"upstream busy"}`))
			return
		}
		w.Write([]byte(`{"message":"ok","filename":"doc.pdf"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	resp, err := client.Upload(context.Background(), writeTempPDF(t))
	if err != nil {
		t.Fatal(err)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
	if resp.Filename != "doc.pdf" {
		t.Errorf("Filename = %q", resp.Filename)
	}
}

func TestClient_UploadClientErrorFailsFast(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"File type not allowed"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	_, err := client.Upload(context.Background(), writeTempPDF(t))
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "File type not allowed") {
		t.Errorf("error = %v", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (no retry on 4xx)", attempts)
	}
}

func TestClient_PdfInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/pdfinfo" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("filename"); got != "my doc.pdf" {
			t.Errorf("filename = %q", got)
		}
		w.Write([]byte(`{"filename":"my doc.pdf","total_pages":42}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	info, err := client.PdfInfo(context.Background(), "my doc.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if info.TotalPages != 42 {
		t.Errorf("TotalPages = %d, want 42", info.TotalPages)
	}
}

func TestClient_StartOCRStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/ocr" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte("data: {\"type\":\"info\",\"total_pages\":1}\n\n"))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	body, err := client.StartOCRStream(context.Background(), "doc.pdf")
	if err != nil {
		t.Fatal(err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "total_pages") {
		t.Errorf("stream body = %q", data)
	}
}

func TestClient_StartOCRStreamServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"PDF file not found","details":"doc.pdf"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	_, err := client.StartOCRStream(context.Background(), "doc.pdf")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "PDF file not found") {
		t.Errorf("error = %v", err)
	}
}
