// Package ocr tracks a single OCR job from upload through completion:
// the per-page status table, the aggregated document text derived from
// it, the job state machine, and the elapsed timer.
package ocr

import (
	"fmt"
	"strings"
	"sync"
)

// PageStatus is the processing state of a single page.
type PageStatus string

const (
	PagePending         PageStatus = "pending"
	PageProcessing      PageStatus = "processing"
	PageSuccess         PageStatus = "success"
	PageSuccessFallback PageStatus = "success_fallback"
	PageError           PageStatus = "error"
	PageSkipped         PageStatus = "skipped"
)

// hasText reports whether this status may carry extracted text.
func (s PageStatus) hasText() bool {
	return s == PageSuccess || s == PageSuccessFallback
}

// PageState is one row of the page status table.
type PageState struct {
	PageNum int
	Status  PageStatus
	Text    string
}

// PageTable is the system of record for per-page progress. Pages are
// numbered 1..total and never reordered once sized. Events arrive in
// stream order but carry no page ordering guarantee - page 5 may
// resolve before page 2.
type PageTable struct {
	mu    sync.RWMutex
	pages []PageState
}

// NewPageTable creates an empty table. Call Init once the page count is
// known.
func NewPageTable() *PageTable {
	return &PageTable{}
}

// Init (re)creates entries 1..total, all pending with empty text.
// Re-initialization to the same size is a no-op, so the authoritative
// count arriving twice (upload response, then info event) never wipes
// progress already recorded.
func (t *PageTable) Init(total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.pages) == total {
		return
	}
	t.reset(total)
}

// Reset clears every entry back to pending with empty text, keeping the
// current size. Used on re-run so no text from a previous run survives.
func (t *PageTable) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reset(len(t.pages))
}

// Clear drops all entries.
func (t *PageTable) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pages = nil
}

func (t *PageTable) reset(total int) {
	t.pages = make([]PageState, total)
	for i := range t.pages {
		t.pages[i] = PageState{PageNum: i + 1, Status: PagePending}
	}
}

// Len returns the current table size.
func (t *PageTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.pages)
}

// SetStatus records a status change for a page. Updates outside the
// current table size are ignored; the stream may briefly disagree with
// the table about the page count and that must not fault.
func (t *PageTable) SetStatus(pageNum int, status PageStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if pageNum < 1 || pageNum > len(t.pages) {
		return
	}
	t.pages[pageNum-1].Status = status
}

// SetResult records the final status and text for a page. This is the
// only path that may populate text, and only success statuses keep it.
func (t *PageTable) SetResult(pageNum int, status PageStatus, text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if pageNum < 1 || pageNum > len(t.pages) {
		return
	}
	p := &t.pages[pageNum-1]
	p.Status = status
	if status.hasText() {
		p.Text = text
	} else {
		p.Text = ""
	}
}

// Snapshot returns a copy of the table for display.
func (t *PageTable) Snapshot() []PageState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]PageState, len(t.pages))
	copy(out, t.pages)
	return out
}

// Done counts pages that have reached a terminal status.
func (t *PageTable) Done() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for i := range t.pages {
		switch t.pages[i].Status {
		case PageSuccess, PageSuccessFallback, PageError, PageSkipped:
			n++
		}
	}
	return n
}

// Document derives the aggregated text: pages with a success status and
// non-empty text, in ascending page order regardless of arrival order,
// each rendered as a labeled block. It is recomputed from the table on
// every call so the two can never diverge.
func (t *PageTable) Document() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var blocks []string
	for i := range t.pages {
		p := &t.pages[i]
		if p.Status.hasText() && p.Text != "" {
			blocks = append(blocks, fmt.Sprintf("--- Page %d ---\n%s", p.PageNum, p.Text))
		}
	}
	return strings.Join(blocks, "\n\n")
}
