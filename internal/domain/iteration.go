package domain

import (
	"encoding/json"
	"time"
)

// DefaultRecentLimit is the number of iterations returned by Recent when no
// positive limit is given.
const DefaultRecentLimit = 3

// Iteration keys
const (
	keyIterationNumber = "iteration_number"
	keyCreatedAt       = "created_at"
	keyMetadata        = "metadata"
	keyUserFeedback    = "user_feedback"
	keyAnalysis        = "analysis"
	keyStep            = "step"
	keyStep1Data       = "step1_data"
	keyStep2Data       = "step2_data"
)

// Iteration is one versioned analysis snapshot of a record. A simple iteration
// carries Analysis; a two-step iteration has a non-zero Step and carries the
// step results instead.
type Iteration struct {
	Number       int
	CreatedAt    Timestamp
	Metadata     Metadata
	UserFeedback *string
	Analysis     Document

	Step      int
	Step1Data Document
	Step2Data Document

	// keys written by other producers, preserved on rewrite
	extra Document
}

func (it Iteration) IsTwoStep() bool {
	return it.Step != 0
}

// Result returns the most complete analysis the iteration holds.
func (it Iteration) Result() Document {
	if !it.IsTwoStep() {
		return it.Analysis
	}
	if it.Step2Data != nil {
		return it.Step2Data
	}
	return it.Step1Data
}

func (it Iteration) toMap() map[string]any {
	out := make(map[string]any, len(it.extra)+8)
	for k, v := range it.extra {
		out[k] = v
	}
	md := it.Metadata
	if md == nil {
		md = Metadata{}
	}
	out[keyIterationNumber] = it.Number
	out[keyCreatedAt] = it.CreatedAt.value()
	out[keyMetadata] = md
	if it.UserFeedback != nil {
		out[keyUserFeedback] = *it.UserFeedback
	} else {
		out[keyUserFeedback] = nil
	}
	if !it.IsTwoStep() || it.Analysis != nil {
		out[keyAnalysis] = nullable(it.Analysis)
	}
	if it.IsTwoStep() {
		out[keyStep] = it.Step
		out[keyStep1Data] = nullable(it.Step1Data)
		out[keyStep2Data] = nullable(it.Step2Data)
	}
	return out
}

func (it Iteration) MarshalJSON() ([]byte, error) {
	return json.Marshal(it.toMap())
}

func iterationFromDocument(doc Document) Iteration {
	it := Iteration{extra: Document{}}
	for k, v := range doc {
		switch k {
		case keyIterationNumber:
			it.Number, _ = toInt(v)
		case keyCreatedAt:
			it.CreatedAt = parseTimestamp(v)
		case keyMetadata:
			if md := asDocument(v); md != nil {
				it.Metadata = Metadata(md)
			}
		case keyUserFeedback:
			if s, ok := v.(string); ok {
				it.UserFeedback = &s
			}
		case keyAnalysis:
			it.Analysis = asDocument(v)
		case keyStep:
			it.Step, _ = toInt(v)
		case keyStep1Data:
			it.Step1Data = asDocument(v)
		case keyStep2Data:
			it.Step2Data = asDocument(v)
		default:
			it.extra[k] = v
		}
	}
	return it
}

// nullable keeps a nil Document from being written as an empty object.
func nullable(d Document) any {
	if d == nil {
		return nil
	}
	return d
}

// Initialize wraps a first analysis result into a payload with one iteration.
// When md is nil the metadata is derived from the result.
func Initialize(result Document, md Metadata, now time.Time) *Payload {
	if md == nil {
		md = DefaultMetadata(result)
	}
	return &Payload{
		Format: FormatVersioned,
		Iterations: []Iteration{{
			Number:    1,
			CreatedAt: NewTimestamp(now),
			Metadata:  md,
			Analysis:  result,
		}},
		CurrentIteration: 1,
	}
}

// Current returns the iteration the pointer names, or nil when the payload
// has no iterations or the pointer is out of range.
func (p *Payload) Current() *Iteration {
	if p == nil {
		return nil
	}
	idx := p.CurrentIteration - 1
	if idx < 0 || idx >= len(p.Iterations) {
		return nil
	}
	return &p.Iterations[idx]
}

// Upgrade turns a legacy payload into the iteration format before its first
// write. The synthesized iteration is stamped now, as Initialize would; reads
// of a legacy payload keep showing the record's created_at.
func (p *Payload) Upgrade(now time.Time) {
	if p == nil || p.Format != FormatLegacy {
		return
	}
	if len(p.Iterations) > 0 {
		p.Iterations[0].CreatedAt = NewTimestamp(now)
	}
	p.Format = FormatVersioned
}

// Append adds a re-analysis iteration and makes it current. The metadata is
// always flagged as user modified.
func (p *Payload) Append(result Document, md Metadata, now time.Time) *Iteration {
	p.Upgrade(now)
	meta := md.Clone()
	if meta == nil {
		meta = Metadata{}
	}
	meta[keyMetadataModified] = true

	number := len(p.Iterations) + 1
	p.Iterations = append(p.Iterations, Iteration{
		Number:    number,
		CreatedAt: NewTimestamp(now),
		Metadata:  meta,
		Analysis:  result,
	})
	p.CurrentIteration = number
	return &p.Iterations[number-1]
}

// UpdateMetadata applies a correction to the current iteration in place. It
// reports false when there is no current iteration.
func (p *Payload) UpdateMetadata(u MetadataUpdate) bool {
	it := p.Current()
	if it == nil {
		return false
	}
	if it.Metadata == nil {
		it.Metadata = Metadata{}
	}
	it.Metadata[keySelectedDish] = u.SelectedDish
	it.Metadata[keySelectedServingSize] = u.SelectedServingSize
	it.Metadata[keyNumberOfServings] = u.NumberOfServings
	it.Metadata[keyMetadataModified] = true
	if p.Format == FormatLegacy {
		p.Format = FormatVersioned
	}
	return true
}

// Recent returns up to limit iterations, newest first.
func (p *Payload) Recent(limit int) []Iteration {
	if p == nil {
		return nil
	}
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	start := len(p.Iterations) - limit
	if start < 0 {
		start = 0
	}
	out := make([]Iteration, 0, len(p.Iterations)-start)
	for i := len(p.Iterations) - 1; i >= start; i-- {
		out = append(out, p.Iterations[i])
	}
	return out
}
