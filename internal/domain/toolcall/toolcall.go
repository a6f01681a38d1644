// Package toolcall defines the tool-call request entity: the audit record of
// one privileged operation an agent wants to perform, gated by policy.
package toolcall

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/openworkhq/agentgate/internal/domain"
)

// Kind is the closed enumeration of tools an agent may invoke.
type Kind string

const (
	KindReadFile       Kind = "read_file"
	KindWriteFile      Kind = "write_file"
	KindListDirectory  Kind = "list_directory"
	KindExecuteCommand Kind = "execute_command"
	KindSearchWeb      Kind = "search_web"
)

// Category groups tool kinds for capability and approval checks.
type Category string

const (
	CategoryFilesystem Category = "filesystem"
	CategoryShell      Category = "shell"
	CategoryWeb        Category = "web"
)

// Category returns the capability category a tool kind belongs to.
func (k Kind) Category() Category {
	switch k {
	case KindReadFile, KindWriteFile, KindListDirectory:
		return CategoryFilesystem
	case KindExecuteCommand:
		return CategoryShell
	default:
		return CategoryWeb
	}
}

// Valid reports whether k is a known tool kind.
func (k Kind) Valid() bool {
	switch k {
	case KindReadFile, KindWriteFile, KindListDirectory, KindExecuteCommand, KindSearchWeb:
		return true
	}
	return false
}

// Risk is the static low/medium/high classification assigned at request
// creation and never recomputed.
type Risk string

const (
	RiskLow    Risk = "low"
	RiskMedium Risk = "medium"
	RiskHigh   Risk = "high"
)

// Status is the lifecycle state of a tool-call request.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusExecuted Status = "executed"
	StatusFailed   Status = "failed"
)

// Terminal reports whether a status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusExecuted || s == StatusFailed
}

// Args is the closed set of typed tool arguments. Adding a tool kind forces
// the compiler to surface every switch that must handle it.
type Args interface {
	Kind() Kind
}

// ReadFileArgs are the arguments for read_file.
type ReadFileArgs struct {
	Path string `json:"path"`
}

// WriteFileArgs are the arguments for write_file.
type WriteFileArgs struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// ListDirectoryArgs are the arguments for list_directory.
type ListDirectoryArgs struct {
	Path string `json:"path"`
}

// ExecuteCommandArgs are the arguments for execute_command.
type ExecuteCommandArgs struct {
	Command string `json:"command"`
}

// SearchWebArgs are the arguments for search_web.
type SearchWebArgs struct {
	Query string `json:"query"`
}

func (ReadFileArgs) Kind() Kind       { return KindReadFile }
func (WriteFileArgs) Kind() Kind      { return KindWriteFile }
func (ListDirectoryArgs) Kind() Kind  { return KindListDirectory }
func (ExecuteCommandArgs) Kind() Kind { return KindExecuteCommand }
func (SearchWebArgs) Kind() Kind      { return KindSearchWeb }

// ParseArgs decodes a raw argument payload into the typed variant for kind.
func ParseArgs(kind Kind, raw json.RawMessage) (Args, error) {
	decode := func(v Args) (Args, error) {
		if err := json.Unmarshal(raw, v); err != nil {
			return nil, fmt.Errorf("%w: decode %s arguments: %v", domain.ErrValidation, kind, err)
		}
		return v, nil
	}
	switch kind {
	case KindReadFile:
		return decode(&ReadFileArgs{})
	case KindWriteFile:
		return decode(&WriteFileArgs{})
	case KindListDirectory:
		return decode(&ListDirectoryArgs{})
	case KindExecuteCommand:
		return decode(&ExecuteCommandArgs{})
	case KindSearchWeb:
		return decode(&SearchWebArgs{})
	default:
		return nil, fmt.Errorf("%w: unknown tool %q", domain.ErrValidation, kind)
	}
}

// DirEntry is one child returned by list_directory.
type DirEntry struct {
	Name string `json:"name"`
	Type string `json:"type"` // "file" or "directory"
	Path string `json:"path"`
}

// SearchResult is one hit returned by search_web.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Result is the structured outcome of a tool execution. Every tool reports
// through this type; for execute_command a non-zero exit is data
// (Success=false with captured output), not an error, because the agent may
// need to see a command's failure output.
type Result struct {
	Success bool   `json:"success"`
	Path    string `json:"path,omitempty"`
	Content string `json:"content,omitempty"`
	Size    int    `json:"size,omitempty"`

	Command  string `json:"command,omitempty"`
	Stdout   string `json:"stdout,omitempty"`
	Stderr   string `json:"stderr,omitempty"`
	ExitCode int    `json:"exit_code,omitempty"`

	Entries []DirEntry     `json:"entries,omitempty"`
	Query   string         `json:"query,omitempty"`
	Results []SearchResult `json:"results,omitempty"`
}

// Request is the audit record of one tool invocation. Created only by the
// lifecycle service, mutated only through approve/reject/execute
// transitions, never deleted. Risk and RequiresApproval are frozen at
// creation from the agent policy as it existed then.
type Request struct {
	ID             string          `json:"id"`
	ConversationID string          `json:"conversation_id"`
	WorkspaceID    string          `json:"workspace_id"`
	AgentID        string          `json:"agent_id"`
	UserID         string          `json:"user_id"`
	Tool           Kind            `json:"tool"`
	Arguments      json.RawMessage `json:"arguments"`
	Status         Status          `json:"status"`
	Risk           Risk            `json:"risk_level"`

	RequiresApproval bool       `json:"requires_approval"`
	ApprovedBy       string     `json:"approved_by,omitempty"`
	ApprovedAt       *time.Time `json:"approved_at,omitempty"`
	RejectedBy       string     `json:"rejected_by,omitempty"`
	RejectedAt       *time.Time `json:"rejected_at,omitempty"`
	RejectionReason  string     `json:"rejection_reason,omitempty"`

	Result     *Result       `json:"result,omitempty"`
	Error      string        `json:"error,omitempty"`
	ExecutedAt *time.Time    `json:"executed_at,omitempty"`
	Duration   time.Duration `json:"duration,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Job is the execution-queue payload for an approved, not-yet-executed call.
type Job struct {
	ToolCallID string          `json:"tool_call_id"`
	Tool       Kind            `json:"tool"`
	Arguments  json.RawMessage `json:"arguments"`
	AgentID    string          `json:"agent_id"`
}
