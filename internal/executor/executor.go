// Package executor performs the five privileged tool operations. Every
// operation consults the security validator first and aborts before any
// observable effect when validation fails.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/openworkhq/agentgate/internal/config"
	"github.com/openworkhq/agentgate/internal/domain/agent"
	"github.com/openworkhq/agentgate/internal/domain/security"
	"github.com/openworkhq/agentgate/internal/domain/toolcall"
	"github.com/openworkhq/agentgate/internal/port/search"
)

// Executor runs tool calls under an agent's restriction policy.
type Executor struct {
	commandTimeout time.Duration
	maxOutputBytes int64
	searcher       search.Searcher
}

// New creates an Executor with the given limits and search collaborator.
func New(cfg config.Executor, searcher search.Searcher) *Executor {
	return &Executor{
		commandTimeout: cfg.CommandTimeout,
		maxOutputBytes: cfg.MaxOutputBytes,
		searcher:       searcher,
	}
}

// Execute dispatches a typed tool call. Policy violations and I/O failures
// are returned as errors; for execute_command a process failure (non-zero
// exit, timeout) is reported as a Result with Success=false, because the
// agent may legitimately need the failure output.
func (e *Executor) Execute(ctx context.Context, args toolcall.Args, r agent.Restrictions) (*toolcall.Result, error) {
	switch a := args.(type) {
	case *toolcall.ReadFileArgs:
		return e.readFile(a, r)
	case *toolcall.WriteFileArgs:
		return e.writeFile(a, r)
	case *toolcall.ListDirectoryArgs:
		return e.listDirectory(a, r)
	case *toolcall.ExecuteCommandArgs:
		return e.executeCommand(ctx, a, r)
	case *toolcall.SearchWebArgs:
		return e.searchWeb(ctx, a)
	default:
		return nil, fmt.Errorf("unknown tool arguments %T", args)
	}
}

func (e *Executor) readFile(a *toolcall.ReadFileArgs, r agent.Restrictions) (*toolcall.Result, error) {
	path, err := security.ValidatePath(a.Path, r)
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(path) //nolint:gosec // G304: path validated against policy above
	if err != nil {
		return nil, fmt.Errorf("read file %s: %w", path, err)
	}

	return &toolcall.Result{
		Success: true,
		Path:    path,
		Content: string(content),
		Size:    len(content),
	}, nil
}

func (e *Executor) writeFile(a *toolcall.WriteFileArgs, r agent.Restrictions) (*toolcall.Result, error) {
	path, err := security.ValidatePath(a.Path, r)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create parent directories for %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(a.Content), 0o644); err != nil { //nolint:gosec // G306: agent-visible file
		return nil, fmt.Errorf("write file %s: %w", path, err)
	}

	return &toolcall.Result{
		Success: true,
		Path:    path,
		Size:    len(a.Content),
	}, nil
}

func (e *Executor) listDirectory(a *toolcall.ListDirectoryArgs, r agent.Restrictions) (*toolcall.Result, error) {
	path, err := security.ValidatePath(a.Path, r)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("list directory %s: %w", path, err)
	}

	dirEntries := make([]toolcall.DirEntry, 0, len(entries))
	for _, entry := range entries {
		t := "file"
		if entry.IsDir() {
			t = "directory"
		}
		dirEntries = append(dirEntries, toolcall.DirEntry{
			Name: entry.Name(),
			Type: t,
			Path: filepath.Join(path, entry.Name()),
		})
	}

	return &toolcall.Result{
		Success: true,
		Path:    path,
		Entries: dirEntries,
	}, nil
}

func (e *Executor) executeCommand(ctx context.Context, a *toolcall.ExecuteCommandArgs, r agent.Restrictions) (*toolcall.Result, error) {
	if err := security.ValidateCommand(a.Command, r); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, e.commandTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", a.Command) //nolint:gosec // G204: command validated against policy above
	stdout := newCappedBuffer(e.maxOutputBytes, cancel)
	stderr := newCappedBuffer(e.maxOutputBytes, cancel)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	runErr := cmd.Run()

	result := &toolcall.Result{
		Command: a.Command,
		Stdout:  stdout.String(),
		Stderr:  stderr.String(),
	}

	switch {
	case runErr == nil:
		result.Success = true
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		result.ExitCode = -1
		result.Stderr = appendLine(result.Stderr, fmt.Sprintf("command timed out after %s", e.commandTimeout))
	case stdout.exceeded() || stderr.exceeded():
		result.ExitCode = -1
		result.Stderr = appendLine(result.Stderr, fmt.Sprintf("output exceeded %d bytes", e.maxOutputBytes))
	default:
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		} else {
			result.ExitCode = 1
			result.Stderr = appendLine(result.Stderr, runErr.Error())
		}
	}

	return result, nil
}

func (e *Executor) searchWeb(ctx context.Context, a *toolcall.SearchWebArgs) (*toolcall.Result, error) {
	results, err := e.searcher.Search(ctx, a.Query)
	if err != nil {
		return nil, fmt.Errorf("web search %q: %w", a.Query, err)
	}

	return &toolcall.Result{
		Success: true,
		Query:   a.Query,
		Results: results,
	}, nil
}

func appendLine(s, line string) string {
	if s == "" {
		return line
	}
	return s + "\n" + line
}

// cappedBuffer bounds captured process output. Writing past the cap cancels
// the command's context so a chatty process cannot hang the worker or
// exhaust memory.
type cappedBuffer struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	max    int64
	over   bool
	cancel context.CancelFunc
}

func newCappedBuffer(max int64, cancel context.CancelFunc) *cappedBuffer {
	return &cappedBuffer{max: max, cancel: cancel}
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	remaining := b.max - int64(b.buf.Len())
	if remaining <= 0 {
		if !b.over {
			b.over = true
			b.cancel()
		}
		return len(p), nil
	}
	if int64(len(p)) > remaining {
		b.buf.Write(p[:remaining])
		b.over = true
		b.cancel()
		return len(p), nil
	}
	b.buf.Write(p)
	return len(p), nil
}

func (b *cappedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *cappedBuffer) exceeded() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.over
}
