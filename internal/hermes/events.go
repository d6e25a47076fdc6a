package hermes

import (
	"encoding/json"
	"time"
)

// NATS subjects used by scribe.
const (
	SubjectIngestRequested      = "swarm.scribe.ingest.requested"
	SubjectConversationIngested = "swarm.scribe.conversation.ingested"
	SubjectIngestFailed         = "swarm.scribe.ingest.failed"
	SubjectAgentRegistered      = "swarm.agent.scribe.registered"
)

// IngestRequest asks scribe to parse and persist a conversation. Data holds
// the raw input (object, array or text). When Data is empty, URL names a
// location to fetch the input from.
type IngestRequest struct {
	Data      json.RawMessage `json:"data,omitempty"`
	URL       string          `json:"url,omitempty"`
	Format    string          `json:"format,omitempty"`
	Title     string          `json:"title,omitempty"`
	SourceRef string          `json:"source_ref,omitempty"`
}

// ConversationIngested is published after a conversation has been committed.
type ConversationIngested struct {
	ConversationID string    `json:"conversation_id"`
	Title          string    `json:"title"`
	Source         string    `json:"source"`
	TurnCount      int       `json:"turn_count"`
	SourceRef      string    `json:"source_ref,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// IngestFailed is published when an ingest request could not be committed.
type IngestFailed struct {
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	Format    string    `json:"format,omitempty"`
	SourceRef string    `json:"source_ref,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// AgentRegistered announces the service on startup.
type AgentRegistered struct {
	Agent     string    `json:"agent"`
	Formats   []string  `json:"formats"`
	Subjects  []string  `json:"subjects"`
	Timestamp time.Time `json:"timestamp"`
}
