package verification

import (
	"context"
	"fmt"
	"strings"
)

// knownPlatforms are the generation services whose URLs we accept as a
// plausible content source.
var knownPlatforms = []string{
	"suno.com",
	"udio.com",
	"soundraw.io",
	"mubert.com",
	"aiva.ai",
}

// HeuristicVerifier is the local rule-based verifier used in development and
// as a fallback when the remote analysis service is unavailable. It checks
// the presence and shape of the submitted proofs without inspecting their
// contents.
type HeuristicVerifier struct{}

func NewHeuristicVerifier() *HeuristicVerifier {
	return &HeuristicVerifier{}
}

func (v *HeuristicVerifier) Verify(_ context.Context, sub Submission) (*Result, error) {
	var checks []Check

	hasSource := len(sub.SourceURL) > 10
	platformMatch := false
	for _, p := range knownPlatforms {
		if strings.Contains(sub.SourceURL, p) {
			platformMatch = true
			break
		}
	}
	checks = append(checks, Check{
		Label:  "source platform URL",
		Passed: hasSource && platformMatch,
		Detail: truncate(sub.SourceURL, 50),
	})

	checks = append(checks, Check{
		Label:  "account profile URL",
		Passed: sub.ProfileURL != "",
		Detail: "optional",
	})

	checks = append(checks, Check{
		Label:  "generation screen capture",
		Passed: sub.CaptureRef != "",
		Detail: requiredDetail(sub.CaptureRef != ""),
	})

	checks = append(checks, Check{
		Label:  "payment proof",
		Passed: sub.PaymentProofRef != "",
		Detail: requiredDetail(sub.PaymentProofRef != ""),
	})

	periodOK := sub.CreationMonth != "" && sub.PlanType != ""
	checks = append(checks, Check{
		Label:  "subscription period match",
		Passed: periodOK,
		Detail: fmt.Sprintf("month=%s plan=%s", orDash(sub.CreationMonth), orDash(sub.PlanType)),
	})

	// Required: source URL, capture, payment proof. Profile and period are
	// advisory.
	passed := checks[0].Passed && checks[2].Passed && checks[3].Passed

	note := "submission meets verification requirements"
	if !passed {
		note = "missing required proofs: check capture and payment evidence"
	}
	return &Result{Passed: passed, Checks: checks, Note: note}, nil
}

// truncate cuts on rune boundaries so multi-byte input stays valid UTF-8
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func requiredDetail(attached bool) string {
	if attached {
		return "attached"
	}
	return "missing, required"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
