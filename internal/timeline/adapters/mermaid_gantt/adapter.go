// Package mermaidgantt renders timeline records as a Mermaid Gantt chart
// inside a Markdown code fence.
package mermaidgantt

import (
	"fmt"
	"strings"
	"time"

	"github.com/nathantilsley/repo-timeline/internal/timeline/domain"
)

const (
	DefaultDateTitle     = "Repository Versions and Last Commit Times"
	DefaultDateTimeTitle = "Repository Activity (Last 7 Days)"

	openFence  = "```mermaid\n"
	closeFence = "\n```\n"
)

// layout describes how one granularity is declared and formatted.
type layout struct {
	dateFormat string // Mermaid dateFormat directive
	axisFormat string // optional Mermaid axisFormat directive
	goLayout   string // Go time layout matching dateFormat
	duration   string // nominal milestone duration
}

var layouts = map[domain.Granularity]layout{
	domain.GranularityDate: {
		dateFormat: "YYYY-MM-DD",
		goLayout:   "2006-01-02",
		duration:   "1d",
	},
	domain.GranularityDateTime: {
		dateFormat: "YYYY-MM-DD HH:mm:ss",
		axisFormat: "%m-%d %H:%M",
		goLayout:   "2006-01-02 15:04:05",
		duration:   "1s",
	},
}

// inputLayouts are tried in order when parsing stored timestamps.
// time.RFC3339 also accepts fractional seconds.
var inputLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
}

// Adapter implements ports.ChartRendererPort.
type Adapter struct {
	granularity domain.Granularity
	title       string
}

// New creates a renderer for the given granularity. An empty title selects
// the default title for that granularity. Unknown granularities fall back to
// date granularity.
func New(granularity domain.Granularity, title string) *Adapter {
	if _, ok := layouts[granularity]; !ok {
		granularity = domain.GranularityDate
	}
	if title == "" {
		title = DefaultDateTitle
		if granularity == domain.GranularityDateTime {
			title = DefaultDateTimeTitle
		}
	}
	return &Adapter{granularity: granularity, title: title}
}

// Render produces the chart document: header, one milestone line per record
// in input order, closing fence. Output depends only on the input.
func (a *Adapter) Render(records []domain.ChartRecord) string {
	l := layouts[a.granularity]

	var sb strings.Builder
	sb.WriteString(a.header(l))

	for i, r := range records {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(MilestoneLine(r, a.granularity))
	}

	sb.WriteString(closeFence)
	return sb.String()
}

func (a *Adapter) header(l layout) string {
	var sb strings.Builder
	sb.WriteString(openFence)
	sb.WriteString("gantt\n")
	fmt.Fprintf(&sb, "  dateFormat  %s\n", l.dateFormat)
	if l.axisFormat != "" {
		fmt.Fprintf(&sb, "  axisFormat  %s\n", l.axisFormat)
	}
	fmt.Fprintf(&sb, "  title %s\n\n", a.title)
	return sb.String()
}

// MilestoneLine renders a single record.
// E.g. "  octo/demo v1.2.3 : milestone, 2024-03-05, 1d"
func MilestoneLine(r domain.ChartRecord, g domain.Granularity) string {
	l, ok := layouts[g]
	if !ok {
		l = layouts[domain.GranularityDate]
	}
	return fmt.Sprintf("  %s v%s : milestone, %s, %s", r.Label, r.Version, FormatTimestamp(r.Timestamp, g), l.duration)
}

// FormatTimestamp reformats a stored timestamp for the given granularity in
// UTC. Values that cannot be parsed (such as domain.UnknownTimestamp) are
// returned unchanged so no record loses its line.
func FormatTimestamp(raw string, g domain.Granularity) string {
	t, err := ParseTimestamp(raw)
	if err != nil {
		return raw
	}
	l, ok := layouts[g]
	if !ok {
		l = layouts[domain.GranularityDate]
	}
	return t.UTC().Format(l.goLayout)
}

// ParseTimestamp parses the timestamp forms produced by the metadata fetcher
// and by the renderer itself.
func ParseTimestamp(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	for _, layout := range inputLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}
