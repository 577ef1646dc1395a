package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Format is the storage shape a payload was read from. It is detected by key
// presence only; payloads carry no version number.
type Format int

const (
	FormatEmpty Format = iota
	FormatLegacy
	FormatVersioned
	FormatTwoStep
)

func (f Format) String() string {
	switch f {
	case FormatLegacy:
		return "legacy"
	case FormatVersioned:
		return "versioned"
	case FormatTwoStep:
		return "two_step"
	default:
		return "empty"
	}
}

// Payload keys
const (
	keyIterations       = "iterations"
	keyCurrentIteration = "current_iteration"
	keyStep1Confirmed   = "step1_confirmed"
)

// Payload is the normalized iteration structure of a record's analysis. Legacy
// payloads are presented as a structure with one synthesized iteration.
type Payload struct {
	Format           Format
	Iterations       []Iteration
	CurrentIteration int
	TwoStep          *TwoStepState

	extra Document
}

// TwoStepState is the flat mirror of the two-step flow kept beside the
// iterations.
type TwoStepState struct {
	Step                int
	Step1Data           Document
	Step2Data           Document
	Step1Confirmed      bool
	ConfirmedDishName   string
	ConfirmedComponents []ConfirmedComponent
}

// ParsePayload decodes a stored payload. It returns nil for an absent or
// empty payload. createdAt is the owning record's creation time, used for the
// iteration synthesized from a legacy payload.
func ParsePayload(raw []byte, createdAt time.Time) (*Payload, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode analysis payload: %w", err)
	}
	return FromDocument(doc, createdAt)
}

// FromDocument normalizes an already decoded payload.
func FromDocument(doc Document, createdAt time.Time) (*Payload, error) {
	if len(doc) == 0 {
		return nil, nil
	}

	rawIterations, versioned := doc[keyIterations]
	if !versioned {
		return legacyPayload(doc, createdAt), nil
	}

	list, ok := rawIterations.([]any)
	if !ok && rawIterations != nil {
		return nil, fmt.Errorf("analysis payload: iterations is %T, want array", rawIterations)
	}

	p := &Payload{
		Format:           FormatVersioned,
		Iterations:       make([]Iteration, 0, len(list)),
		CurrentIteration: 1,
		extra:            Document{},
	}
	for i, e := range list {
		itDoc := asDocument(e)
		if itDoc == nil {
			return nil, fmt.Errorf("analysis payload: iterations[%d] is %T, want object", i, e)
		}
		p.Iterations = append(p.Iterations, iterationFromDocument(itDoc))
	}

	_, twoStep := doc[keyStep]
	if twoStep {
		p.Format = FormatTwoStep
		p.TwoStep = &TwoStepState{}
	}

	for k, v := range doc {
		switch k {
		case keyIterations:
		case keyCurrentIteration:
			if n, ok := toInt(v); ok {
				p.CurrentIteration = n
			}
		case keyStep:
			p.TwoStep.Step, _ = toInt(v)
		case keyStep1Data:
			if twoStep {
				p.TwoStep.Step1Data = asDocument(v)
			} else {
				p.extra[k] = v
			}
		case keyStep2Data:
			if twoStep {
				p.TwoStep.Step2Data = asDocument(v)
			} else {
				p.extra[k] = v
			}
		case keyStep1Confirmed:
			if twoStep {
				p.TwoStep.Step1Confirmed, _ = v.(bool)
			} else {
				p.extra[k] = v
			}
		case keyConfirmedDishName:
			if twoStep {
				p.TwoStep.ConfirmedDishName, _ = v.(string)
			} else {
				p.extra[k] = v
			}
		case keyConfirmedComponents:
			if twoStep {
				p.TwoStep.ConfirmedComponents = parseComponents(v)
			} else {
				p.extra[k] = v
			}
		default:
			p.extra[k] = v
		}
	}
	return p, nil
}

func legacyPayload(doc Document, createdAt time.Time) *Payload {
	return &Payload{
		Format: FormatLegacy,
		Iterations: []Iteration{{
			Number:    1,
			CreatedAt: NewTimestamp(createdAt),
			Metadata:  DefaultMetadata(doc),
			Analysis:  doc,
		}},
		CurrentIteration: 1,
	}
}

// Document renders the payload in its persisted iteration shape.
func (p *Payload) Document() Document {
	out := make(Document, len(p.extra)+8)
	for k, v := range p.extra {
		out[k] = v
	}
	iterations := make([]any, len(p.Iterations))
	for i, it := range p.Iterations {
		iterations[i] = it.toMap()
	}
	out[keyIterations] = iterations
	out[keyCurrentIteration] = p.CurrentIteration

	if p.TwoStep != nil {
		out[keyStep] = p.TwoStep.Step
		out[keyStep1Data] = nullable(p.TwoStep.Step1Data)
		out[keyStep2Data] = nullable(p.TwoStep.Step2Data)
		out[keyStep1Confirmed] = p.TwoStep.Step1Confirmed
		if p.TwoStep.ConfirmedDishName != "" {
			out[keyConfirmedDishName] = p.TwoStep.ConfirmedDishName
		}
		if p.TwoStep.ConfirmedComponents != nil {
			out[keyConfirmedComponents] = componentsValue(p.TwoStep.ConfirmedComponents)
		}
	}
	return out
}

func (p *Payload) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Document())
}

// Summary is a short human readable description used in logs.
func (p *Payload) Summary() string {
	if p == nil {
		return "empty"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s iterations=%d current=%d", p.Format, len(p.Iterations), p.CurrentIteration)
	if p.TwoStep != nil {
		fmt.Fprintf(&b, " step=%d confirmed=%t", p.TwoStep.Step, p.TwoStep.Step1Confirmed)
	}
	return b.String()
}
