// Package security implements the pure policy evaluator for tool calls:
// path checks, command checks, and risk classification. It performs no I/O
// and is fail-closed: any violation aborts before execution.
package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/openworkhq/agentgate/internal/domain"
	"github.com/openworkhq/agentgate/internal/domain/agent"
	"github.com/openworkhq/agentgate/internal/domain/toolcall"
)

// systemBlockedPaths are always blocked, even if explicitly allow-listed.
// Not configurable.
var systemBlockedPaths = []string{"/etc", "/sys", "/proc", "/root", "/boot"}

// dangerousCommands is a fixed blacklist of destructive command fragments,
// matched as lower-cased substrings. Always enforced, not configurable.
var dangerousCommands = []string{
	"rm -rf /",
	"mkfs",
	"dd if=/dev/zero",
	"fork bomb",
	":(){ :|:& };:",
	"chmod 777",
	"chown",
	"passwd",
	"sudo",
	"su ",
	"shutdown",
	"reboot",
	"halt",
	"init 0",
	"kill -9",
	"pkill",
}

// ValidatePath resolves path to an absolute, symlink-normalized form and
// checks it against the agent's restriction policy. Precedence:
// system-block > explicit-block > explicit-allow > default-deny (the last
// only when an allow list is declared and the path matches none of it).
func ValidatePath(path string, r agent.Restrictions) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("%w: cannot resolve path %q: %v", domain.ErrPolicyViolation, path, err)
	}
	abs = resolveSymlinks(abs)

	for _, blocked := range systemBlockedPaths {
		if isWithin(abs, blocked) {
			return "", fmt.Errorf("%w: system path is blocked: %s", domain.ErrPolicyViolation, abs)
		}
	}

	// The block list is independent of, and cannot be overridden by, the
	// allow list.
	for _, blocked := range r.BlockedPaths {
		if b, err := filepath.Abs(blocked); err == nil && isWithin(abs, resolveSymlinks(b)) {
			return "", fmt.Errorf("%w: path is blocked: %s", domain.ErrPolicyViolation, abs)
		}
	}

	if len(r.AllowedPaths) > 0 {
		allowed := false
		for _, a := range r.AllowedPaths {
			if root, err := filepath.Abs(a); err == nil && isWithin(abs, resolveSymlinks(root)) {
				allowed = true
				break
			}
		}
		if !allowed {
			return "", fmt.Errorf("%w: path not in allowed directories: %s", domain.ErrPolicyViolation, abs)
		}
	}

	return abs, nil
}

// resolveSymlinks normalizes symlinks on the longest existing ancestor of
// abs, so a link into a blocked directory cannot evade the prefix checks.
// Paths that do not exist yet (write targets) keep their unresolved suffix.
func resolveSymlinks(abs string) string {
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	dir, rest := filepath.Dir(abs), filepath.Base(abs)
	for dir != string(filepath.Separator) {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			return filepath.Join(resolved, rest)
		}
		if !os.IsNotExist(statErr(dir)) {
			break
		}
		rest = filepath.Join(filepath.Base(dir), rest)
		dir = filepath.Dir(dir)
	}
	return abs
}

func statErr(path string) error {
	_, err := os.Lstat(path)
	return err
}

// isWithin reports whether path equals root or is a descendant of it.
func isWithin(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// ValidateCommand checks a shell command against the fixed destructive
// blacklist and the agent's command allow/block lists. The blacklist match
// is a lower-cased substring check and cannot be overridden by an allow
// list.
func ValidateCommand(command string, r agent.Restrictions) error {
	lower := strings.ToLower(command)
	for _, dangerous := range dangerousCommands {
		if strings.Contains(lower, dangerous) {
			return fmt.Errorf("%w: dangerous command blocked: %s", domain.ErrPolicyViolation, command)
		}
	}

	base := baseCommand(command)
	if base == "" {
		return fmt.Errorf("%w: empty command", domain.ErrPolicyViolation)
	}

	if len(r.AllowedCommands) > 0 && !contains(r.AllowedCommands, base) {
		return fmt.Errorf("%w: command not in whitelist: %s", domain.ErrPolicyViolation, base)
	}
	if contains(r.BlockedCommands, base) {
		return fmt.Errorf("%w: command is blocked: %s", domain.ErrPolicyViolation, base)
	}

	return nil
}

// baseCommand returns the first whitespace-delimited token of a command.
func baseCommand(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// destructiveVerbs escalate a shell command from medium to high risk.
var destructiveVerbs = []string{"rm", "delete", "chmod", "chown"}

// AssessRisk returns the static risk classification for a tool call.
// Deterministic: reads and searches are low, writes are medium, and shell
// execution is medium unless the command carries a destructive verb.
func AssessRisk(args toolcall.Args) toolcall.Risk {
	switch a := args.(type) {
	case *toolcall.ReadFileArgs, *toolcall.ListDirectoryArgs, *toolcall.SearchWebArgs:
		return toolcall.RiskLow
	case *toolcall.WriteFileArgs:
		return toolcall.RiskMedium
	case *toolcall.ExecuteCommandArgs:
		cmd := strings.ToLower(a.Command)
		for _, verb := range destructiveVerbs {
			if strings.Contains(cmd, verb) {
				return toolcall.RiskHigh
			}
		}
		return toolcall.RiskMedium
	default:
		return toolcall.RiskMedium
	}
}
