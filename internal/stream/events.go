package stream

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/events.json
var schemaFS embed.FS

// Event type discriminants as they appear on the wire.
const (
	TypeInfo       = "info"
	TypePageEvent  = "page_event"
	TypePageResult = "page_result"
	TypeSummary    = "summary"
	TypeError      = "error"
)

// Event is a decoded stream message. Events are transient: they are
// applied once and discarded, only their effects persist.
type Event interface {
	EventType() string
}

// Info announces job startup. TotalPages is authoritative and may
// differ from the count reported at upload time. A non-empty Error
// means the pipeline failed to initialize.
type Info struct {
	TotalPages int    `json:"total_pages"`
	Error      string `json:"error,omitempty"`
}

// PageEvent reports a page status change without a result (typically
// pending -> processing).
type PageEvent struct {
	Page   int    `json:"page"`
	Status string `json:"status"`
}

// PageResult carries the final status and extracted text for one page.
type PageResult struct {
	Page   int    `json:"page"`
	Status string `json:"status"`
	Text   string `json:"text,omitempty"`
}

// Summary closes a job, reporting overall status and the number of
// pages that errored.
type Summary struct {
	Status      string `json:"status"`
	TotalErrors int    `json:"total_errors"`
}

// ErrorEvent reports a fatal pipeline error. The job fails immediately
// and the stream is cancelled.
type ErrorEvent struct {
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (Info) EventType() string       { return TypeInfo }
func (PageEvent) EventType() string  { return TypePageEvent }
func (PageResult) EventType() string { return TypePageResult }
func (Summary) EventType() string    { return TypeSummary }
func (ErrorEvent) EventType() string { return TypeError }

// envelope is the minimal wrapper used to pick the variant.
type envelope struct {
	Type string `json:"type"`
}

// schemas holds the compiled per-type validation schemas, loaded once
// at init. The schema file is embedded, so a load failure is a
// programming error.
var schemas = mustCompileSchemas()

func mustCompileSchemas() map[string]*jsonschema.Schema {
	raw, err := schemaFS.ReadFile("schemas/events.json")
	if err != nil {
		panic(fmt.Sprintf("failed to read embedded event schemas: %v", err))
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("events.json", bytes.NewReader(raw)); err != nil {
		panic(fmt.Sprintf("failed to load event schemas: %v", err))
	}

	compiled := make(map[string]*jsonschema.Schema)
	for _, typ := range []string{TypeInfo, TypePageEvent, TypePageResult, TypeSummary, TypeError} {
		s, err := compiler.Compile("events.json#/$defs/" + typ)
		if err != nil {
			panic(fmt.Sprintf("failed to compile schema for %q: %v", typ, err))
		}
		compiled[typ] = s
	}
	return compiled
}

// ParseEvent decodes a frame payload into a typed event. The payload is
// validated against the schema for its type before decoding; a payload
// that fails validation is malformed and the caller should skip the
// frame, never abort the stream.
func ParseEvent(payload []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("failed to parse event frame: %w", err)
	}

	schema, ok := schemas[env.Type]
	if !ok {
		return nil, fmt.Errorf("unknown event type: %q", env.Type)
	}

	var doc any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse event frame: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("event does not match %s schema: %w", env.Type, err)
	}

	var ev Event
	var err error
	switch env.Type {
	case TypeInfo:
		var e Info
		err = json.Unmarshal(payload, &e)
		ev = e
	case TypePageEvent:
		var e PageEvent
		err = json.Unmarshal(payload, &e)
		ev = e
	case TypePageResult:
		var e PageResult
		err = json.Unmarshal(payload, &e)
		ev = e
	case TypeSummary:
		var e Summary
		err = json.Unmarshal(payload, &e)
		ev = e
	case TypeError:
		var e ErrorEvent
		err = json.Unmarshal(payload, &e)
		ev = e
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s event: %w", env.Type, err)
	}
	return ev, nil
}
