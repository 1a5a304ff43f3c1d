package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gen2brain/beeep"

	"github.com/valet-agent/valet/tools/schemas"
)

// Notifier sends a desktop notification. Indirection over beeep so tests can
// capture notifications instead of popping dialogs.
type Notifier func(title, message string) error

// DesktopNotifier sends a real desktop notification.
func DesktopNotifier(title, message string) error {
	return beeep.Notify(title, message, "")
}

// RegisterNotificationTool registers the notify tool. A nil notifier uses
// the desktop one.
func RegisterNotificationTool(r *Registry, notify Notifier) error {
	if notify == nil {
		notify = DesktopNotifier
	}
	return r.Register("notify", schemas.NotificationSchemas()["notify"],
		func(ctx context.Context, args json.RawMessage) (any, error) {
			var payload struct {
				Title   string `json:"title"`
				Message string `json:"message"`
			}
			if err := json.Unmarshal(args, &payload); err != nil {
				return nil, fmt.Errorf("failed to unmarshal arguments: %w", err)
			}
			if payload.Message == "" {
				return nil, fmt.Errorf("message cannot be empty")
			}
			if err := notify(payload.Title, payload.Message); err != nil {
				return nil, fmt.Errorf("failed to send notification: %w", err)
			}
			return map[string]any{
				"title":     payload.Title,
				"delivered": true,
			}, nil
		})
}
