// Package summary renders the daily summary content sent to trainers: the
// day's appointment schedule plus any studio notes. Rendering prefers the
// text-generation collaborator for a natural-language write-up and falls back
// to a deterministic template whenever generation is unavailable, so summary
// delivery never depends on the generator being up.
package summary

import (
	"context"
	"fmt"
	"strings"
	"time"

	"studiopulse/internal/types"
)

// maxPromptAppointments caps how many appointments are spelled out in the
// generation prompt. Beyond this, the fallback template is more readable
// anyway.
const maxPromptAppointments = 20

// TextGenerator is the optional natural-language collaborator. Satisfied by
// external.TextGenClient. A nil generator means template-only rendering.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Builder produces SummaryContent from a day's schedule.
type Builder struct {
	gen    TextGenerator
	logger types.Logger
}

// NewBuilder creates a summary builder. gen may be nil.
func NewBuilder(gen TextGenerator, logger types.Logger) *Builder {
	return &Builder{gen: gen, logger: logger}
}

// Build renders the summary for one user's day. It always returns usable
// content: generation failures are logged and the templated fallback is
// used.
func (b *Builder) Build(ctx context.Context, input types.SummaryInput) types.SummaryContent {
	subject := fmt.Sprintf("Your day at the studio, %s", input.Date.Format("Monday Jan 2"))

	if b.gen != nil {
		body, err := b.gen.Generate(ctx, buildPrompt(input))
		if err == nil && strings.TrimSpace(body) != "" {
			return types.SummaryContent{Subject: subject, Body: body}
		}
		if err != nil {
			b.logger.Warn("summary generation unavailable, using template",
				"user", input.UserName,
				"error", err.Error(),
			)
		}
	}

	return types.SummaryContent{Subject: subject, Body: renderTemplate(input)}
}

// buildPrompt assembles the generation prompt from the structured input.
func buildPrompt(input types.SummaryInput) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Write a short, friendly daily schedule summary for %s, a fitness trainer, for %s.\n",
		input.UserName, input.Date.Format("Monday, January 2"))

	if len(input.Appointments) == 0 {
		sb.WriteString("They have no sessions booked today.\n")
	} else {
		fmt.Fprintf(&sb, "They have %d sessions:\n", len(input.Appointments))
		for i, apt := range input.Appointments {
			if i == maxPromptAppointments {
				fmt.Fprintf(&sb, "... and %d more.\n", len(input.Appointments)-maxPromptAppointments)
				break
			}
			fmt.Fprintf(&sb, "- %s to %s: %s", apt.StartsAt.Format("15:04"), apt.EndsAt.Format("15:04"), apt.Title)
			if apt.Location != "" {
				fmt.Fprintf(&sb, " at %s", apt.Location)
			}
			sb.WriteString("\n")
		}
	}

	for _, note := range input.Notes {
		fmt.Fprintf(&sb, "Studio note: %s\n", note)
	}

	sb.WriteString("Keep it under 120 words. Do not invent details.")
	return sb.String()
}

// renderTemplate is the deterministic fallback rendering.
func renderTemplate(input types.SummaryInput) string {
	var sb strings.Builder

	name := input.UserName
	if name == "" {
		name = "there"
	}
	fmt.Fprintf(&sb, "Good morning %s!\n\n", name)

	switch len(input.Appointments) {
	case 0:
		sb.WriteString("You have no sessions booked today.\n")
	case 1:
		sb.WriteString("You have 1 session today:\n\n")
	default:
		fmt.Fprintf(&sb, "You have %d sessions today:\n\n", len(input.Appointments))
	}

	for _, apt := range input.Appointments {
		fmt.Fprintf(&sb, "  %s - %s  %s", apt.StartsAt.Format("15:04"), apt.EndsAt.Format("15:04"), apt.Title)
		if apt.Location != "" {
			fmt.Fprintf(&sb, " (%s)", apt.Location)
		}
		sb.WriteString("\n")
	}

	if len(input.Notes) > 0 {
		sb.WriteString("\nNotes:\n")
		for _, note := range input.Notes {
			fmt.Fprintf(&sb, "  - %s\n", note)
		}
	}

	sb.WriteString("\nHave a great day!\n")
	return sb.String()
}

// Window returns the [start, end) span of the user's local calendar day the
// summary covers.
func Window(date time.Time, loc *time.Location) (time.Time, time.Time) {
	y, m, d := date.In(loc).Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}
