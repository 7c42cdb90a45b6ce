package shared

import (
	"sync"
	"time"
)

// Issue is an immutable snapshot of a GitLab issue, created on fetch and
// discarded after rendering.
type Issue struct {
	ProjectID   string    `json:"project_id"`
	ProjectName string    `json:"project_name"`
	IID         int       `json:"iid"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	State       string    `json:"state"`
	Author      string    `json:"author"`
	Assignee    string    `json:"assignee,omitempty"`
	Labels      []string  `json:"labels,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	WebURL      string    `json:"web_url"`
}

// MergeRequest is an immutable snapshot of a GitLab merge request.
type MergeRequest struct {
	ProjectID    string    `json:"project_id"`
	ProjectName  string    `json:"project_name"`
	IID          int       `json:"iid"`
	Title        string    `json:"title"`
	State        string    `json:"state"`
	Author       string    `json:"author"`
	SourceBranch string    `json:"source_branch"`
	TargetBranch string    `json:"target_branch"`
	CreatedAt    time.Time `json:"created_at"`
	WebURL       string    `json:"web_url"`
}

// FormEntry is an item from a SharePoint list ("form"), fetched per request
// and never persisted.
type FormEntry struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	ListName  string            `json:"list_name"`
	Author    string            `json:"author"`
	Editor    string            `json:"editor,omitempty"`
	Status    string            `json:"status,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	WebURL    string            `json:"web_url"`
}

// ListInfo describes a SharePoint list on the configured site.
type ListInfo struct {
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	ItemCount   int       `json:"item_count"`
	Template    int       `json:"template"`
	CreatedAt   time.Time `json:"created_at"`
}

// ToolCall is a tool invocation proposed by an agent and consumed exactly
// once by the dispatcher. Arguments is the raw JSON argument object.
type ToolCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ConversationTurn is one user/assistant exchange in a chat session.
type ConversationTurn struct {
	User      string    `json:"user"`
	Assistant string    `json:"assistant"`
	Timestamp time.Time `json:"timestamp"`
}

// Conversation is the per-session chat history. It lives in process memory
// only and is owned by the UI session; agents receive its turns as
// read-only grounding context and never mutate it.
type Conversation struct {
	mu    sync.Mutex
	turns []ConversationTurn
}

func NewConversation() *Conversation {
	return &Conversation{}
}

// Append records a completed exchange.
func (c *Conversation) Append(user, assistant string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = append(c.turns, ConversationTurn{
		User:      user,
		Assistant: assistant,
		Timestamp: time.Now(),
	})
}

// Turns returns a copy of the history so callers cannot alias the
// underlying slice.
func (c *Conversation) Turns() []ConversationTurn {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ConversationTurn, len(c.turns))
	copy(out, c.turns)
	return out
}

func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.turns)
}
