package jira

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/capacity-planner/planning"
)

// HoursPerStoryPoint converts story points into estimated hours.
const HoursPerStoryPoint = 8

// Local project statuses produced by MapStatus.
const (
	StatusPlanned    = 0
	StatusInProgress = 1
	StatusDone       = 3
)

// MapIssueType maps an issue type name onto a project type.
func MapIssueType(name string) string {
	t := strings.ToLower(name)
	if strings.Contains(t, "epic") || strings.Contains(t, "project") {
		return planning.ProjectTypeProject
	}
	return planning.ProjectTypeEvolutive
}

// MapPriority maps a Jira priority name onto the local priority scale.
// "lowest" is matched before "low".
func MapPriority(name string) string {
	p := strings.ToLower(name)
	switch {
	case strings.Contains(p, "highest"), strings.Contains(p, "critical"):
		return "muy-alta"
	case strings.Contains(p, "high"):
		return "alta"
	case strings.Contains(p, "lowest"):
		return "muy-baja"
	case strings.Contains(p, "low"):
		return "baja"
	}
	return "media"
}

// MapStatus maps a Jira status name onto a local status id.
func MapStatus(name string) int {
	s := strings.ToLower(name)
	switch {
	case strings.Contains(s, "done"), strings.Contains(s, "closed"), strings.Contains(s, "resolved"):
		return StatusDone
	case strings.Contains(s, "progress"), strings.Contains(s, "development"), strings.Contains(s, "blocked"):
		return StatusInProgress
	}
	return StatusPlanned
}

// EstimatedHours returns story points * 8, or 8 without story points.
func EstimatedHours(f IssueFields) decimal.Decimal {
	if f.StoryPoints == nil || *f.StoryPoints <= 0 {
		return decimal.NewFromInt(HoursPerStoryPoint)
	}
	return decimal.NewFromFloat(*f.StoryPoints).Mul(decimal.NewFromInt(HoursPerStoryPoint))
}

// priorityName tolerates a missing priority field.
func priorityName(f IssueFields) string {
	if f.Priority == nil {
		return ""
	}
	return f.Priority.Name
}

// jiraTimeLayouts are the timestamp formats Jira emits.
var jiraTimeLayouts = []string{
	"2006-01-02T15:04:05.000-0700",
	time.RFC3339,
	"2006-01-02",
}

// ParseTime parses a Jira timestamp or date into UTC.
func ParseTime(s string) (time.Time, bool) {
	for _, layout := range jiraTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// =============================================================================
// DESCRIPTION - plain string or Atlassian Document Format
// =============================================================================

type adfNode struct {
	Type    string    `json:"type"`
	Text    string    `json:"text"`
	Content []adfNode `json:"content"`
}

// PlainText extracts the text of an issue description. Strings are
// returned as is; ADF documents are flattened with a newline after each
// paragraph and heading. Anything else is returned as raw JSON.
func PlainText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var doc adfNode
	if err := json.Unmarshal(raw, &doc); err == nil && doc.Type == "doc" && doc.Content != nil {
		return adfText(doc.Content)
	}
	return string(raw)
}

func adfText(nodes []adfNode) string {
	var b strings.Builder
	for _, n := range nodes {
		switch {
		case n.Type == "text":
			b.WriteString(n.Text)
		case n.Type == "paragraph" || n.Type == "heading":
			if n.Content != nil {
				b.WriteString(adfText(n.Content))
				b.WriteString("\n")
			}
		case n.Content != nil:
			b.WriteString(adfText(n.Content))
		}
	}
	return strings.TrimSpace(b.String())
}
