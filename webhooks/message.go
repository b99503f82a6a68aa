package webhooks

// Discord webhook payload limits.
const (
	ContentLimit          = 2000
	EmbedsPerMessageLimit = 10
	EmbedTitleLimit       = 256
	EmbedDescriptionLimit = 4096
	EmbedFieldsLimit      = 25
	EmbedFieldNameLimit   = 256
	EmbedFieldValueLimit  = 1024
	EmbedFooterLimit      = 2048
)

type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type EmbedFooter struct {
	Text string `json:"text"`
}

type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
}

// Message is a rendered, destination-agnostic webhook payload.
type Message struct {
	Content   string  `json:"content,omitempty"`
	Embeds    []Embed `json:"embeds,omitempty"`
	Username  string  `json:"username,omitempty"`
	AvatarURL string  `json:"avatar_url,omitempty"`
}

func (m Message) Empty() bool {
	return m.Content == "" && len(m.Embeds) == 0
}

// Task binds a rendered message to one destination. Priority tasks bypass
// batching delay and are never dropped ahead of non-priority ones.
type Task struct {
	Message  Message
	URL      string
	Priority bool
}

// CombineMessages merges queued messages bound for the same webhook into as
// few Discord-compatible payloads as possible. Plain content is joined with
// newlines and embeds are stacked, splitting into further payloads whenever a
// limit would be exceeded; nothing is dropped.
func CombineMessages(messages []Message) []Message {
	var combined []Message
	var current Message

	flush := func() {
		if !current.Empty() {
			combined = append(combined, current)
		}
		current = Message{}
	}

	for _, msg := range messages {
		contentLen := len(current.Content)
		if contentLen > 0 && msg.Content != "" {
			contentLen++ // joining newline
		}
		overflows := contentLen+len(msg.Content) > ContentLimit ||
			len(current.Embeds)+len(msg.Embeds) > EmbedsPerMessageLimit
		if overflows {
			flush()
		}

		if msg.Content != "" {
			if current.Content != "" {
				current.Content += "\n" + msg.Content
			} else {
				current.Content = msg.Content
			}
		}
		current.Embeds = append(current.Embeds, msg.Embeds...)
		if current.Username == "" {
			current.Username = msg.Username
		}
		if current.AvatarURL == "" {
			current.AvatarURL = msg.AvatarURL
		}
	}
	flush()

	return combined
}
