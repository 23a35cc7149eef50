package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os/exec"
	"strings"
	"time"
	"unicode"
)

var ErrCommandRefused = errors.New("refusing to run a dangerous command")

var dangerousWords = map[string]bool{
	"rm": true, "del": true, "format": true, "shutdown": true, "reboot": true,
	"mkfs": true, "dd": true, "kill": true, "killall": true, "pkill": true,
	"halt": true, "poweroff": true, "rmdir": true, "unlink": true, "shred": true,
	"truncate": true,
}

// CommandTool runs a shell command on the host.
type CommandTool struct {
	timeout time.Duration
}

func NewCommandTool(timeout time.Duration) *CommandTool {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &CommandTool{timeout: timeout}
}

func (t *CommandTool) Name() string { return ToolNameCommand }

func (t *CommandTool) Description() string {
	return "Execute a system command (use with care)"
}

func (t *CommandTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"command": map[string]any{"type": "string", "description": "Command to execute"},
		},
		"required": []any{"command"},
	}
}

// shellQuoting is removed before splitting so quoted or escaped names
// such as r''m and r\m are checked as the shell will run them.
var shellQuoting = strings.NewReplacer("'", "", "\"", "", "\\", "", "`", "")

// IsDangerous reports whether any word of command is on the deny list.
// Words are split on anything outside letters, digits and "-._", so
// "rm", "/bin/rm" and "x;rm" are caught but "format_date" is not.
// ANSI-C quoting ($'\x72m') can spell any name and is refused outright.
func IsDangerous(command string) bool {
	if strings.Contains(command, "$'") {
		return true
	}
	unquoted := shellQuoting.Replace(strings.ToLower(command))
	words := strings.FieldsFunc(unquoted, func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '.' || r == '_')
	})
	for _, w := range words {
		if dangerousWords[w] {
			return true
		}
	}
	return false
}

func (t *CommandTool) Execute(ctx context.Context, params map[string]any) (*ToolResult, error) {
	command := strings.TrimSpace(stringParam(params, "command"))
	if command == "" {
		return nil, fmt.Errorf("missing 'command' parameter")
	}
	if IsDangerous(command) {
		log.Printf("[Tools] Refused command: %s", command)
		return nil, ErrCommandRefused
	}

	runCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, "sh", "-c", command)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	err := cmd.Run()
	if runCtx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("command timed out after %s", t.timeout)
	}
	code := 0
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("command failed: %w", err)
		}
		code = exitErr.ExitCode()
	}

	return dataResult(map[string]any{
		"stdout":      stdout.String(),
		"stderr":      stderr.String(),
		"return_code": code,
	}), nil
}
