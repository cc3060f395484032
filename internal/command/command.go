// Package command parses slash commands typed into the console and executes
// them against the skill service.
package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/skillfleet/fleet/internal/api"
)

var (
	// ErrNotCommand is returned for lines that do not start with "/".
	ErrNotCommand = errors.New("not a command")
	// ErrUnknownCommand is returned for unrecognized command names.
	ErrUnknownCommand = errors.New("unknown command")
)

// Known maps recognized command names to their help text.
var Known = map[string]string{
	"optimize": "/optimize <skill>   start an optimization job for a skill",
	"list":     "/list               list skills",
	"validate": "/validate <skill>   validate a skill's structure",
	"promote":  "/promote <skill>    promote a draft to the skill library",
	"status":   "/status [job-id]    show job status",
	"help":     "/help               show this help",
}

// Command is a parsed slash command.
type Command struct {
	Name string
	Args []string
	Raw  string
}

// Result is the outcome of executing a command. A non-empty JobID means the
// command started a job that should be polled.
type Result struct {
	Success bool
	Message string
	Data    json.RawMessage
	JobID   string
}

// IsCommand reports whether line should be parsed as a command.
func IsCommand(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "/")
}

// Parse splits a slash line into a command name and arguments. Names are
// case-insensitive.
func Parse(line string) (Command, error) {
	raw := strings.TrimSpace(line)
	if !strings.HasPrefix(raw, "/") {
		return Command{}, ErrNotCommand
	}

	fields := strings.Fields(strings.TrimPrefix(raw, "/"))
	if len(fields) == 0 {
		return Command{}, fmt.Errorf("%w: empty command", ErrUnknownCommand)
	}

	cmd := Command{
		Name: strings.ToLower(fields[0]),
		Args: fields[1:],
		Raw:  raw,
	}
	if _, ok := Known[cmd.Name]; !ok {
		return cmd, fmt.Errorf("%w: /%s", ErrUnknownCommand, cmd.Name)
	}
	return cmd, nil
}

// Help returns the help text for every known command, sorted by name.
func Help() string {
	names := make([]string, 0, len(Known))
	for name := range Known {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("Commands:")
	for _, name := range names {
		b.WriteString("\n  " + Known[name])
	}
	return b.String()
}

// Executor runs parsed commands.
type Executor interface {
	Execute(ctx context.Context, cmd Command) (Result, error)
}

// Runner is the part of the API client that executes commands.
type Runner interface {
	RunCommand(ctx context.Context, name string, args []string) (*api.CommandResult, error)
}

// APIExecutor executes commands on the skill service. help is answered locally.
type APIExecutor struct {
	runner Runner
}

// NewAPIExecutor creates an executor backed by r.
func NewAPIExecutor(r Runner) *APIExecutor {
	return &APIExecutor{runner: r}
}

// Execute runs cmd.
func (e *APIExecutor) Execute(ctx context.Context, cmd Command) (Result, error) {
	if cmd.Name == "help" {
		return Result{Success: true, Message: Help()}, nil
	}

	res, err := e.runner.RunCommand(ctx, cmd.Name, cmd.Args)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Success: res.Success,
		Message: res.Message,
		Data:    res.Data,
		JobID:   res.JobID,
	}, nil
}
