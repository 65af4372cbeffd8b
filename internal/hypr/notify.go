// Package hypr drives Hyprland's built-in notification overlay through hyprctl.
package hypr

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Icon selects the overlay glyph.
type Icon int

// Icons understood by `hyprctl notify`.
const (
	IconWarning Icon = 0
	IconInfo    Icon = 1
	IconHint    Icon = 2
	IconError   Icon = 3
	IconOK      Icon = 5
)

const defaultColor = "rgb(a78bfa)"

// Notify shows text in the overlay for timeoutMS. An empty color uses the accent.
func Notify(ctx context.Context, icon Icon, timeoutMS int, color string, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return errors.New("notification text must not be empty")
	}
	if strings.TrimSpace(color) == "" {
		color = defaultColor
	}
	return run(ctx, "--quiet", "notify", strconv.Itoa(int(icon)), strconv.Itoa(timeoutMS), color, text)
}

// Dismiss clears every overlay notification.
func Dismiss(ctx context.Context) error {
	return run(ctx, "--quiet", "dismissnotify")
}

func run(ctx context.Context, args ...string) error {
	out, err := exec.CommandContext(ctx, "hyprctl", args...).CombinedOutput()
	if err != nil {
		trimmed := strings.TrimSpace(string(out))
		if trimmed == "" {
			return fmt.Errorf("hyprctl %v failed: %w", args, err)
		}
		return fmt.Errorf("hyprctl %v failed: %w (%s)", args, err, trimmed)
	}
	return nil
}
