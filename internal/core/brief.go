package core

import (
	"context"
	"strings"
	"time"

	"waitroom-intake/internal/llm"
)

// BriefWriter condenses a reviewer report into a short note for the
// therapist.  It is optional; the delivered report never depends on it.
type BriefWriter interface {
	Brief(ctx context.Context, report string) (string, error)
}

// Summarizer writes reviewer briefs with an LLM.
type Summarizer struct {
	LLM     llm.Client
	Timeout time.Duration
}

// NewSummarizer constructs a summariser.
func NewSummarizer(client llm.Client, timeout time.Duration) *Summarizer {
	return &Summarizer{LLM: client, Timeout: timeout}
}

// Brief asks the LLM for a brief of the report.
func (s *Summarizer) Brief(ctx context.Context, report string) (string, error) {
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	resp, err := s.LLM.Summarize(ctx, BriefInstruction, report)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp), nil
}
