package domain

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Payload decoding errors.
var (
	// ErrUnknownJobType indicates a job row whose job_type column names
	// no known type.
	ErrUnknownJobType = errors.New("unknown job type")
	// ErrInvalidPayload indicates a payload that decoded but fails
	// validation for its job type.
	ErrInvalidPayload = errors.New("invalid job payload")
)

// Payload bounds and defaults.
const (
	DefaultSourceLimit = 100
	DefaultBatchSize   = 50
	MaxMultiSources    = 50
)

// ArticlePayload is the payload of an ARTICLE job. Content and
// Classification are set when a source pipeline enqueued the job with
// pre-extracted data; direct enqueues carry only the URL.
type ArticlePayload struct {
	URL            string            `mapstructure:"url"            json:"url"`
	SourceID       string            `mapstructure:"source_id"      json:"source_id,omitempty"`
	Content        *ExtractedContent `mapstructure:"content"        json:"content,omitempty"`
	Classification *Classification   `mapstructure:"classification" json:"classification,omitempty"`
}

// Validate reports whether the payload can drive an article job.
func (p *ArticlePayload) Validate() error {
	if p.URL == "" {
		return fmt.Errorf("%w: missing url", ErrInvalidPayload)
	}
	return nil
}

// SourcePayload is the payload of a SOURCE job. Either URL or SourceID
// must be set; SourceTable is required alongside SourceID.
type SourcePayload struct {
	URL         string `mapstructure:"url"          json:"url,omitempty"`
	SourceID    string `mapstructure:"source_id"    json:"source_id,omitempty"`
	SourceTable string `mapstructure:"source_table" json:"source_table,omitempty"`
	Limit       int    `mapstructure:"limit"        json:"limit"`
}

// Validate checks the payload and applies the default link limit.
func (p *SourcePayload) Validate() error {
	if p.URL == "" && p.SourceID == "" {
		return fmt.Errorf("%w: source job needs url or source_id", ErrInvalidPayload)
	}
	if p.SourceID != "" && p.SourceTable == "" {
		return fmt.Errorf("%w: source_table is required with source_id", ErrInvalidPayload)
	}
	if p.SourceTable != "" && !ValidSourceTable(p.SourceTable) {
		return fmt.Errorf("%w: unknown source_table %q", ErrInvalidPayload, p.SourceTable)
	}
	if p.Limit <= 0 {
		p.Limit = DefaultSourceLimit
	}
	return nil
}

// BatchPayload is the payload of a BATCH job.
type BatchPayload struct {
	BatchSize int    `mapstructure:"batch_size" json:"batch_size"`
	Query     string `mapstructure:"query"      json:"query,omitempty"`
	DryRun    bool   `mapstructure:"dry_run"    json:"dry_run"`
}

// Validate applies the default batch size.
func (p *BatchPayload) Validate() error {
	if p.BatchSize <= 0 {
		p.BatchSize = DefaultBatchSize
	}
	return nil
}

// SourceRef names one source inside a MULTI_SOURCE payload.
type SourceRef struct {
	SourceID    string `mapstructure:"source_id"    json:"source_id"`
	SourceTable string `mapstructure:"source_table" json:"source_table"`
	Limit       int    `mapstructure:"limit"        json:"limit"`
}

// MultiSourcePayload is the payload of a MULTI_SOURCE job.
type MultiSourcePayload struct {
	Sources []SourceRef `mapstructure:"sources" json:"sources"`
	DryRun  bool        `mapstructure:"dry_run" json:"dry_run"`
}

// Validate enforces the 1..MaxMultiSources bound and rejects duplicate
// (source_id, source_table) pairs.
func (p *MultiSourcePayload) Validate() error {
	if len(p.Sources) == 0 {
		return fmt.Errorf("%w: sources list is empty", ErrInvalidPayload)
	}
	if len(p.Sources) > MaxMultiSources {
		return fmt.Errorf("%w: sources list exceeds %d entries", ErrInvalidPayload, MaxMultiSources)
	}

	seen := make(map[SourceRef]struct{}, len(p.Sources))
	for i := range p.Sources {
		ref := &p.Sources[i]
		if ref.SourceID == "" {
			return fmt.Errorf("%w: sources[%d] missing source_id", ErrInvalidPayload, i)
		}
		if !ValidSourceTable(ref.SourceTable) {
			return fmt.Errorf("%w: sources[%d] has unknown source_table %q", ErrInvalidPayload, i, ref.SourceTable)
		}
		if ref.Limit <= 0 {
			ref.Limit = DefaultSourceLimit
		}
		key := SourceRef{SourceID: ref.SourceID, SourceTable: ref.SourceTable}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: duplicate source %s in %s", ErrInvalidPayload, ref.SourceID, ref.SourceTable)
		}
		seen[key] = struct{}{}
	}
	return nil
}

// DecodeArticlePayload decodes and validates an ARTICLE payload.
func DecodeArticlePayload(raw JSONBMap) (*ArticlePayload, error) {
	var p ArticlePayload
	if err := decodePayload(raw, &p); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// DecodeSourcePayload decodes and validates a SOURCE payload.
func DecodeSourcePayload(raw JSONBMap) (*SourcePayload, error) {
	var p SourcePayload
	if err := decodePayload(raw, &p); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// DecodeBatchPayload decodes and validates a BATCH payload.
func DecodeBatchPayload(raw JSONBMap) (*BatchPayload, error) {
	var p BatchPayload
	if err := decodePayload(raw, &p); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// DecodeMultiSourcePayload decodes and validates a MULTI_SOURCE payload.
func DecodeMultiSourcePayload(raw JSONBMap) (*MultiSourcePayload, error) {
	var p MultiSourcePayload
	if err := decodePayload(raw, &p); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// EncodePayload renders a typed payload as the JSONB map stored in
// scrape_jobs.payload. It round-trips through JSON so nested structs
// land as plain maps.
func EncodePayload(p any) (JSONBMap, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	var m JSONBMap
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	return m, nil
}

// decodePayload maps a JSONB payload onto a typed struct. Weak typing
// absorbs the float64 numbers JSON unmarshalling produces.
func decodePayload(raw JSONBMap, dst any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           dst,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return fmt.Errorf("failed to create payload decoder: %w", err)
	}
	if err := decoder.Decode(map[string]any(raw)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}
