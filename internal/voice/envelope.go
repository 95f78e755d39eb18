// Package voice bridges the hosted voice engine to the booking core.
// It decodes webhook envelopes, folds call lifecycle events, and
// answers live tool calls while the caller is still on the line.
package voice

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Envelope event types. The set is closed: anything else is rejected
// at decode time rather than silently ignored.
const (
	EventCallStarted  = "call.started"
	EventCallEnded    = "call.ended"
	EventToolCall     = "tool.call"
	EventStatusUpdate = "status-update"
)

// Tool names the voice assistant may invoke mid-call.
const (
	ToolCheckAvailability = "check_availability"
	ToolBookAppointment   = "book_appointment"
)

// Envelope is the decoded webhook body.
type Envelope struct {
	Type     string       `json:"type"`
	Call     CallPayload  `json:"call"`
	ToolCall *ToolPayload `json:"tool_call,omitempty"`
}

// CallPayload mirrors the engine's call object. Org identity rides in
// assistant metadata; older engine versions put it at the top level.
type CallPayload struct {
	ID                 string             `json:"id"`
	OrgID              string             `json:"orgId"`
	AssistantOverrides assistantOverrides `json:"assistantOverrides"`
	Customer           customerPayload    `json:"customer"`
	From               string             `json:"from"`
	Status             string             `json:"status"`
	EndedReason        string             `json:"endedReason"`
	Duration           float64            `json:"duration"`
	Transcript         string             `json:"transcript"`
	Analysis           analysisPayload    `json:"analysis"`
	Artifact           artifactPayload    `json:"artifact"`
	RecordingURL       string             `json:"recordingUrl"`
}

type assistantOverrides struct {
	Metadata struct {
		OrgID string `json:"orgId"`
	} `json:"metadata"`
}

type customerPayload struct {
	Number string `json:"number"`
	Name   string `json:"name"`
}

type analysisPayload struct {
	Summary string `json:"summary"`
}

type artifactPayload struct {
	Transcript   string `json:"transcript"`
	Summary      string `json:"summary"`
	RecordingURL string `json:"recordingUrl"`
}

// ToolPayload carries one tool invocation.
type ToolPayload struct {
	Name       string         `json:"name"`
	Parameters ToolParameters `json:"parameters"`
}

// ToolParameters is the union of both tools' parameter sets.
type ToolParameters struct {
	Date        string `json:"date"`
	Time        string `json:"time"`
	Service     string `json:"service"`
	ClientName  string `json:"clientName"`
	ClientPhone string `json:"clientPhone"`
}

// ResolveOrgID prefers assistant metadata, falling back to the legacy
// top-level field.
func (p CallPayload) ResolveOrgID() string {
	if id := strings.TrimSpace(p.AssistantOverrides.Metadata.OrgID); id != "" {
		return id
	}
	return strings.TrimSpace(p.OrgID)
}

// CallerPhone prefers the customer object over the legacy from field.
func (p CallPayload) CallerPhone() string {
	if n := strings.TrimSpace(p.Customer.Number); n != "" {
		return n
	}
	return strings.TrimSpace(p.From)
}

// ResolvedTranscript and ResolvedSummary merge the flat and artifact
// layouts the engine has shipped over time.
func (p CallPayload) ResolvedTranscript() string {
	if p.Transcript != "" {
		return p.Transcript
	}
	return p.Artifact.Transcript
}

func (p CallPayload) ResolvedSummary() string {
	if p.Analysis.Summary != "" {
		return p.Analysis.Summary
	}
	return p.Artifact.Summary
}

func (p CallPayload) ResolvedRecordingURL() string {
	if p.RecordingURL != "" {
		return p.RecordingURL
	}
	return p.Artifact.RecordingURL
}

// DecodeEnvelope parses and validates the webhook body. Unrecognized
// event types are an error so that new engine events surface in logs
// instead of vanishing.
func DecodeEnvelope(body []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Envelope{}, fmt.Errorf("voice: decode envelope: %w", err)
	}
	switch env.Type {
	case EventCallStarted, EventCallEnded, EventStatusUpdate:
		return env, nil
	case EventToolCall:
		if env.ToolCall == nil {
			return Envelope{}, fmt.Errorf("voice: tool.call event without tool_call body")
		}
		switch env.ToolCall.Name {
		case ToolCheckAvailability, ToolBookAppointment:
			return env, nil
		default:
			return Envelope{}, fmt.Errorf("voice: unknown tool %q", env.ToolCall.Name)
		}
	default:
		return Envelope{}, fmt.Errorf("voice: unknown event type %q", env.Type)
	}
}
