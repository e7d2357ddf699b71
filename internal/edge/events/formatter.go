package events

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TemplateFormatter formats RequestEvent using a template string
type TemplateFormatter struct {
	template     string
	placeholders []placeholder
}

type placeholder struct {
	field string
	start int
	end   int
}

// fieldFormatters renders each known placeholder
var fieldFormatters = map[string]func(*RequestEvent) string{
	"timestamp":       func(e *RequestEvent) string { return formatTime(e.CreatedAt) },
	"request_id":      func(e *RequestEvent) string { return formatString(e.RequestID) },
	"host":            func(e *RequestEvent) string { return formatString(e.Host) },
	"path":            func(e *RequestEvent) string { return formatString(e.Path) },
	"method":          func(e *RequestEvent) string { return formatString(e.Method) },
	"app":             func(e *RequestEvent) string { return formatString(e.App) },
	"handler":         func(e *RequestEvent) string { return formatString(e.Handler) },
	"origin":          func(e *RequestEvent) string { return formatString(e.Origin) },
	"client_ip":       func(e *RequestEvent) string { return formatString(e.ClientIP) },
	"user_agent":      func(e *RequestEvent) string { return formatString(e.UserAgent) },
	"target_url":      func(e *RequestEvent) string { return formatString(e.TargetURL) },
	"target_hash":     func(e *RequestEvent) string { return formatString(e.TargetHash) },
	"status_code":     func(e *RequestEvent) string { return strconv.Itoa(e.StatusCode) },
	"serve_time":      func(e *RequestEvent) string { return formatFloat(e.ServeTime) },
	"policy_rejected": func(e *RequestEvent) string { return strconv.FormatBool(e.PolicyRejected) },
	"upstream_failed": func(e *RequestEvent) string { return strconv.FormatBool(e.UpstreamFailed) },
	"worker_id":       func(e *RequestEvent) string { return formatString(e.WorkerID) },
}

// NewTemplateFormatter parses and validates the template.
// Returns error if any placeholder is unknown or template is empty.
func NewTemplateFormatter(template string) (*TemplateFormatter, error) {
	if template == "" {
		return nil, fmt.Errorf("template cannot be empty")
	}

	placeholders, err := parsePlaceholders(template)
	if err != nil {
		return nil, err
	}

	return &TemplateFormatter{
		template:     template,
		placeholders: placeholders,
	}, nil
}

func parsePlaceholders(template string) ([]placeholder, error) {
	var placeholders []placeholder
	i := 0

	for i < len(template) {
		start := strings.Index(template[i:], "{")
		if start == -1 {
			break
		}
		start += i

		end := strings.Index(template[start:], "}")
		if end == -1 {
			return nil, fmt.Errorf("unclosed placeholder at position %d", start)
		}
		end += start

		field := template[start+1 : end]
		if field == "" {
			return nil, fmt.Errorf("empty placeholder at position %d", start)
		}
		if _, ok := fieldFormatters[field]; !ok {
			return nil, fmt.Errorf("unknown placeholder {%s}", field)
		}

		placeholders = append(placeholders, placeholder{field: field, start: start, end: end + 1})
		i = end + 1
	}

	return placeholders, nil
}

// Template returns the original template string
func (f *TemplateFormatter) Template() string {
	return f.template
}

// Format renders the event using the template
func (f *TemplateFormatter) Format(event *RequestEvent) string {
	var b strings.Builder
	last := 0
	for _, p := range f.placeholders {
		b.WriteString(f.template[last:p.start])
		b.WriteString(fieldFormatters[p.field](event))
		last = p.end
	}
	b.WriteString(f.template[last:])
	return b.String()
}

func escapeString(s string) string {
	escaped := strings.ReplaceAll(s, "\\", "\\\\")
	escaped = strings.ReplaceAll(escaped, "\"", "\\\"")
	escaped = strings.ReplaceAll(escaped, "\n", "\\n")
	escaped = strings.ReplaceAll(escaped, "\t", "\\t")
	escaped = strings.ReplaceAll(escaped, "\r", "\\r")
	return escaped
}

// formatString quotes and escapes s, "-" when empty
func formatString(s string) string {
	if s == "" {
		return "-"
	}
	return "\"" + escapeString(s) + "\""
}

// formatFloat formats a float64 with 3 decimal places
func formatFloat(f float64) string {
	return fmt.Sprintf("%.3f", f)
}

// formatTime formats a time in ISO 8601 format
func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}
