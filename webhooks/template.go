package webhooks

import (
	"strings"
)

// Template is a parsed sequence of literal segments and named variable slots.
// Parsing happens once; rendering substitutes variables and leaves unknown
// ones empty instead of failing.
type Template struct {
	segments []segment
}

type segment struct {
	literal  string
	variable string
}

// ParseTemplate parses ${name} slots out of a raw template string. Malformed
// slots (unterminated braces, empty names) are kept as literals so a bad
// template degrades to static text rather than an error.
func ParseTemplate(raw string) *Template {
	var segments []segment
	var literal strings.Builder

	for i := 0; i < len(raw); {
		if raw[i] == '$' && i+1 < len(raw) && raw[i+1] == '{' {
			end := strings.IndexByte(raw[i+2:], '}')
			if end > 0 {
				name := raw[i+2 : i+2+end]
				if isVariableName(name) {
					if literal.Len() > 0 {
						segments = append(segments, segment{literal: literal.String()})
						literal.Reset()
					}
					segments = append(segments, segment{variable: name})
					i += end + 3
					continue
				}
			}
		}
		literal.WriteByte(raw[i])
		i++
	}

	if literal.Len() > 0 {
		segments = append(segments, segment{literal: literal.String()})
	}

	return &Template{segments: segments}
}

func isVariableName(name string) bool {
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
		default:
			return false
		}
	}
	return name != ""
}

// Render substitutes variables into the template. Unknown variables render
// as the empty string.
func (t *Template) Render(vars map[string]string) string {
	var out strings.Builder
	for _, seg := range t.segments {
		if seg.variable != "" {
			out.WriteString(vars[seg.variable])
		} else {
			out.WriteString(seg.literal)
		}
	}
	return out.String()
}

// Variables returns the slot names in order of first appearance.
func (t *Template) Variables() []string {
	seen := make(map[string]bool)
	var names []string
	for _, seg := range t.segments {
		if seg.variable != "" && !seen[seg.variable] {
			seen[seg.variable] = true
			names = append(names, seg.variable)
		}
	}
	return names
}

// embedTemplate describes how one event kind renders into an embed.
type embedTemplate struct {
	Title       *Template
	Description *Template
	Footer      string
}

// textTemplate describes the plain-content rendering for one event kind.
type textTemplate struct {
	Body *Template
}

var defaultEmbedTemplates = map[EventKind]embedTemplate{
	KindLog: {
		Title:       ParseTemplate("${emoji} ${level}"),
		Description: ParseTemplate("${message}"),
		Footer:      "StatsBot Logger",
	},
	KindError: {
		Title:       ParseTemplate("${emoji} Error: ${error_type}"),
		Description: ParseTemplate("${message}"),
		Footer:      "StatsBot Error Monitor",
	},
	KindPerformance: {
		Title:       ParseTemplate("${emoji} Performance Alert: ${metric_name}"),
		Description: ParseTemplate("Performance metric **${metric_name}** has exceeded threshold."),
		Footer:      "StatsBot Performance Monitor",
	},
	KindMemberEvent: {
		Title:       ParseTemplate("${emoji} ${title}"),
		Description: ParseTemplate("**${username}** (${member_id})"),
		Footer:      "StatsBot Member Events",
	},
}

var defaultTextTemplates = map[EventKind]textTemplate{
	KindLog: {
		Body: ParseTemplate("**[${timestamp}] ${emoji} ${level}**: ${message}"),
	},
	KindError: {
		Body: ParseTemplate("**[${timestamp}] ${emoji} ERROR**: ${message}\n**Type**: ${error_type}"),
	},
	KindPerformance: {
		Body: ParseTemplate("**${emoji} Performance Alert: ${metric_name}**\n- **Current Value**: ${value}\n- **Threshold**: ${threshold}\n- **Ratio**: ${ratio}x"),
	},
	KindMemberEvent: {
		Body: ParseTemplate("**${emoji} ${title}**\n**${username}** (${member_id})"),
	},
}
