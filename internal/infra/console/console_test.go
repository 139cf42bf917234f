package console

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"hirenotify/internal/domain/notification"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannel_Send(t *testing.T) {
	var buf bytes.Buffer
	ch := New(slog.New(slog.NewJSONHandler(&buf, nil)))

	require.True(t, ch.CanHandle(notification.ChannelConsole))
	require.False(t, ch.CanHandle(notification.ChannelEmail))

	err := ch.Send(context.Background(), &notification.Payload{
		NotificationID: "n-1",
		RecipientID:    "c-1",
		Subject:        "Hello",
		Content:        "Body",
	})
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "console", entry["channel"])
	assert.Equal(t, "n-1", entry["notification_id"])
	assert.Equal(t, "Hello", entry["subject"])
}

func TestChannel_SendCancelled(t *testing.T) {
	ch := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, ch.Send(ctx, &notification.Payload{}), context.Canceled)
}
