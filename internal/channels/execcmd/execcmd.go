package execcmd

import (
	"context"
	"fmt"
	"os/exec"
)

// Command runs a local program for every fired alert, with the notification
// title and body appended as the final two arguments. Useful for wiring
// notify-send, dunstify, or custom hooks.
type Command struct {
	Path string
	Args []string
}

func (c Command) Send(ctx context.Context, title, body string) error {
	if c.Path == "" {
		return fmt.Errorf("command is required")
	}
	args := append(append([]string{}, c.Args...), title, body)
	cmd := exec.CommandContext(ctx, c.Path, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("notify command: %v; out=%s", err, string(out))
	}
	return nil
}
