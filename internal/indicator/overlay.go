package indicator

import (
	"context"

	"github.com/rbright/suzerain/internal/hypr"
)

// hyprlandNotify shows the notification in Hyprland's overlay. The overlay has no
// per-notification IDs, so a replacement dismisses whatever is showing first.
func hyprlandNotify(ctx context.Context, appName string, replaceID uint32, summary, body string, timeoutMS int) (uint32, error) {
	if replaceID != 0 {
		if err := hypr.Dismiss(ctx); err != nil {
			return 0, err
		}
	}
	text := "[" + appName + "] " + summary
	if body != "" {
		text += ": " + body
	}
	if err := hypr.Notify(ctx, hypr.IconInfo, timeoutMS, "", text); err != nil {
		return 0, err
	}
	return 1, nil
}
