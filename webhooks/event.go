package webhooks

import (
	"time"

	"github.com/google/uuid"
)

type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarning
	LevelError
	LevelCritical
)

func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarning:
		return "WARNING"
	case LevelError:
		return "ERROR"
	case LevelCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

func ParseLevel(s string) LogLevel {
	switch s {
	case "debug", "DEBUG":
		return LevelDebug
	case "info", "INFO":
		return LevelInfo
	case "warning", "warn", "WARNING", "WARN":
		return LevelWarning
	case "error", "ERROR":
		return LevelError
	case "critical", "CRITICAL":
		return LevelCritical
	default:
		return LevelInfo
	}
}

type EventKind string

const (
	KindLog         EventKind = "log"
	KindError       EventKind = "error"
	KindPerformance EventKind = "performance"
	KindMemberEvent EventKind = "member_event"
)

// PipelineComponent tags events produced by the webhook pipeline itself.
// The router refuses to route them, so pipeline failures can never feed back
// into the pipeline.
const PipelineComponent = "webhook"

// Event is one structured occurrence handed to the manager. Immutable after
// construction.
type Event struct {
	ID         string
	Kind       EventKind
	Level      LogLevel
	Message    string
	Context    map[string]interface{}
	ErrorType  string
	StackTrace string
	Component  string
	Timestamp  time.Time
}

func NewEvent(kind EventKind, level LogLevel, message string, context map[string]interface{}) Event {
	component := ""
	if context != nil {
		if c, ok := context["component"].(string); ok {
			component = c
		}
	}

	return Event{
		ID:        uuid.NewString(),
		Kind:      kind,
		Level:     level,
		Message:   message,
		Context:   context,
		Component: component,
		Timestamp: time.Now().UTC(),
	}
}
