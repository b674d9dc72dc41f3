package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

// ClaudeCLI completes prompts by running the claude CLI in print mode.
type ClaudeCLI struct {
	Binary string
	Model  string

	// run executes the command and returns stdout; replaced in tests.
	run func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewClaudeCLI returns a completer that shells out to binary (default "claude").
func NewClaudeCLI(binary, model string) *ClaudeCLI {
	if binary == "" {
		binary = "claude"
	}
	return &ClaudeCLI{Binary: binary, Model: model, run: runCommand}
}

// claudeResult is the final JSON object printed by --output-format json.
type claudeResult struct {
	Type    string `json:"type"`
	Subtype string `json:"subtype"`
	IsError bool   `json:"is_error"`
	Result  string `json:"result"`
	Usage   struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

var _ Completer = (*ClaudeCLI)(nil)

// Complete runs one non-interactive claude invocation.
func (c *ClaudeCLI) Complete(ctx context.Context, p Prompt) (Completion, error) {
	args := []string{
		"-p", p.User,
		"--output-format", "json",
		"--system-prompt", p.System,
	}
	if c.Model != "" {
		args = append(args, "--model", c.Model)
	}

	run := c.run
	if run == nil {
		run = runCommand
	}
	out, err := run(ctx, c.Binary, args...)
	if err != nil {
		return Completion{}, fmt.Errorf("agent: run %s: %w", c.Binary, err)
	}

	var res claudeResult
	if err := json.Unmarshal(bytes.TrimSpace(out), &res); err != nil {
		return Completion{}, fmt.Errorf("agent: decode claude output: %w", err)
	}
	if res.IsError {
		return Completion{}, fmt.Errorf("agent: claude returned %s: %s", res.Subtype, res.Result)
	}
	if strings.TrimSpace(res.Result) == "" {
		return Completion{}, errors.New("agent: claude returned an empty result")
	}
	return Completion{
		Text:         strings.TrimSpace(res.Result),
		Model:        c.Model,
		InputTokens:  res.Usage.InputTokens,
		OutputTokens: res.Usage.OutputTokens,
	}, nil
}

// runCommand runs name with args, sending SIGTERM when ctx ends.
func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = 5 * time.Second

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}
