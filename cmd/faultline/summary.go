// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/bureau-foundation/faultline/client"
	"github.com/bureau-foundation/faultline/supervisor"
)

// summaryStyles holds the styles for one renderer.
type summaryStyles struct {
	title   lipgloss.Style
	label   lipgloss.Style
	passed  lipgloss.Style
	failed  lipgloss.Style
	dim     lipgloss.Style
	problem lipgloss.Style
}

func newSummaryStyles(w io.Writer, color bool) summaryStyles {
	profile := termenv.Ascii
	if color {
		profile = termenv.ANSI256
	}
	// The renderer would otherwise detect its own profile from w and
	// ignore --no-color.
	renderer := lipgloss.NewRenderer(w, termenv.WithProfile(profile))
	renderer.SetColorProfile(profile)

	return summaryStyles{
		title:   renderer.NewStyle().Bold(true),
		label:   renderer.NewStyle().Width(10).Foreground(lipgloss.Color("245")),
		passed:  renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("2")),
		failed:  renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("1")),
		dim:     renderer.NewStyle().Foreground(lipgloss.Color("245")),
		problem: renderer.NewStyle().Foreground(lipgloss.Color("1")),
	}
}

// renderVerdict formats a verdict as a short table.
func renderVerdict(w io.Writer, verdict *supervisor.Verdict, color bool) string {
	styles := newSummaryStyles(w, color)

	status := styles.passed.Render("PASSED")
	if !verdict.Passed {
		status = styles.failed.Render("FAILED")
	}
	var lines []string
	lines = append(lines, fmt.Sprintf("%s %s",
		styles.title.Render(fmt.Sprintf("faultline %s over %s", verdict.Scenario, verdict.Binding)),
		status))

	row := func(label, value string) {
		lines = append(lines, styles.label.Render(label)+value)
	}

	for _, role := range verdict.Roles {
		value := string(role.Outcome)
		if role.Detail != "" {
			value += " " + styles.dim.Render("("+role.Detail+")")
		}
		row(string(role.Role), value)
	}

	result := verdict.Client
	row("exchanges", fmt.Sprintf("%d of %d  gaps %d  mismatches %d",
		result.Stats.Count, 2*verdict.Iterations, result.Gaps, result.Mismatches))
	row("latency", formatLatency(result.Stats))
	row("log", fmt.Sprintf("count %d  %s", verdict.Logger.Count, strings.Join(verdict.Logger.Entries, " ")))

	if verdict.Scenario == supervisor.FaultTolerance {
		digest := hex.EncodeToString(verdict.RegionAfter[:6])
		if verdict.RegionIntact() {
			row("region", "intact "+styles.dim.Render(digest))
		} else {
			row("region", styles.problem.Render("changed "+
				hex.EncodeToString(verdict.RegionBefore[:6])+" -> "+digest))
		}
	}

	for _, problem := range verdict.Problems {
		lines = append(lines, styles.problem.Render("  - "+problem))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...) + "\n"
}

func formatLatency(stats client.Stats) string {
	average, ok := stats.Average()
	if !ok {
		return "no samples"
	}
	return fmt.Sprintf("avg %.2fµs  min %.2fµs  max %.2fµs",
		client.Micros(average), client.Micros(stats.Min), client.Micros(stats.Max))
}
