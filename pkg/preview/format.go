// Package preview provides an interactive browser for cached link previews using Bubble Tea TUI.
package preview

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/lepinkainen/registry-preview/pkg/linkpreview"
)

const ruleLine = "═══════════════════════════════════════════════════════════════════════\n"

// wrapText wraps text to the specified width, breaking at word boundaries when possible
func wrapText(text string, width int) string {
	if width <= 0 {
		width = 70
	}

	var result strings.Builder
	var line strings.Builder
	lineLen := 0

	words := strings.Fields(text)
	for i, word := range words {
		wordLen := utf8.RuneCountInString(word)

		// If adding this word would exceed width, start a new line
		if lineLen > 0 && lineLen+1+wordLen > width {
			result.WriteString(line.String())
			result.WriteString("\n")
			line.Reset()
			lineLen = 0
		}

		if lineLen > 0 {
			line.WriteString(" ")
			lineLen++
		}

		line.WriteString(word)
		lineLen += wordLen

		if i == len(words)-1 {
			result.WriteString(line.String())
		}
	}

	return result.String()
}

// FormatCompactListItem formats a single cached preview in compact list format
// Example: " 1. [primary    ] 6d left  Amazon       Graco Pack 'n Play"
func FormatCompactListItem(index int, rec *linkpreview.Record, now time.Time) string {
	title := rec.Title
	const maxTitleLength = 60
	if utf8.RuneCountInString(title) > maxTitleLength {
		title = string([]rune(title)[:maxTitleLength-3]) + "..."
	}

	site := rec.SiteName
	if site == "" {
		site = "-"
	}

	return fmt.Sprintf("%2d. [%-11s] %-8s %-12s %s", index+1, rec.Strategy, formatRemaining(rec.ExpiresAt, now), site, title)
}

// FormatDetailedItem formats a single cached preview with all fields
func FormatDetailedItem(rec *linkpreview.Record, now time.Time) string {
	var b strings.Builder

	b.WriteString(ruleLine)
	fmt.Fprintf(&b, "Title: %s\n", rec.Title)
	fmt.Fprintf(&b, "URL: %s\n", rec.URL)

	if rec.SiteName != "" {
		fmt.Fprintf(&b, "Site: %s\n", rec.SiteName)
	}
	if rec.Price != nil {
		fmt.Fprintf(&b, "Price: $%.2f\n", *rec.Price)
	}
	if rec.Availability != "" {
		fmt.Fprintf(&b, "Availability: %s\n", rec.Availability)
	}
	if rec.ImageURL != "" {
		fmt.Fprintf(&b, "Image: %s\n", rec.ImageURL)
	}
	if rec.Strategy != "" {
		fmt.Fprintf(&b, "Strategy: %s\n", rec.Strategy)
	}

	fmt.Fprintf(&b, "Cached: %s\n", formatTimeAgo(rec.UpdatedAt, now))
	fmt.Fprintf(&b, "Expires: %s (%s)\n", rec.ExpiresAt.UTC().Format(time.RFC3339), formatRemaining(rec.ExpiresAt, now))

	if rec.Description != "" {
		fmt.Fprintf(&b, "\nDescription:\n%s\n", wrapText(rec.Description, 70))
	}

	b.WriteString(ruleLine)
	return b.String()
}

// FormatJSONItem renders the preview exactly as the API returns it.
func FormatJSONItem(rec *linkpreview.Record) string {
	data, err := json.MarshalIndent(rec.Result(), "", "  ")
	if err != nil {
		return fmt.Sprintf("Error encoding preview: %s", err)
	}
	return string(data)
}

// formatRemaining formats the time left until expiry, or "expired".
func formatRemaining(expiresAt, now time.Time) string {
	left := expiresAt.Sub(now)
	switch {
	case left <= 0:
		return "expired"
	case left < time.Hour:
		return fmt.Sprintf("%dm left", int(left.Minutes()))
	case left < 24*time.Hour:
		return fmt.Sprintf("%dh left", int(left.Hours()))
	default:
		return fmt.Sprintf("%dd left", int(left.Hours()/24))
	}
}

// formatTimeAgo formats a time.Time as a human-readable "X ago" string
func formatTimeAgo(t, now time.Time) string {
	duration := now.Sub(t)

	switch {
	case duration < time.Minute:
		return "just now"
	case duration < time.Hour:
		mins := int(duration.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	case duration < 24*time.Hour:
		hours := int(duration.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	case duration < 7*24*time.Hour:
		days := int(duration.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	default:
		return t.Format("2006-01-02")
	}
}
