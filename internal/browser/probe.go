package browser

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lance13c/stateshot/internal/logging"
)

const probeTimeout = 10 * time.Second

// cdpMessage is a DevTools protocol response or event
type cdpMessage struct {
	ID     int            `json:"id"`
	Method string         `json:"method,omitempty"`
	Result map[string]any `json:"result,omitempty"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// ProbeRemote connects to a DevTools websocket endpoint and asks the
// browser for its version, so a misconfigured remote fails before any
// suite starts. It returns the browser's product string.
func ProbeRemote(ctx context.Context, wsURL string) (string, error) {
	logging.Debug("Probing DevTools endpoint %s", wsURL)

	dialer := websocket.Dialer{
		HandshakeTimeout: probeTimeout,
	}
	conn, httpResp, err := dialer.DialContext(ctx, wsURL, http.Header{})
	if err != nil {
		if httpResp != nil {
			return "", fmt.Errorf("failed to connect to %s (status %d): %w", wsURL, httpResp.StatusCode, err)
		}
		return "", fmt.Errorf("failed to connect to %s: %w", wsURL, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(probeTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	conn.SetReadDeadline(deadline)
	conn.SetWriteDeadline(deadline)

	const id = 1
	if err := conn.WriteJSON(map[string]any{
		"id":     id,
		"method": "Browser.getVersion",
		"params": map[string]any{},
	}); err != nil {
		return "", fmt.Errorf("failed to send Browser.getVersion: %w", err)
	}

	// skip events until our response arrives
	for {
		var msg cdpMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return "", fmt.Errorf("failed to read Browser.getVersion response: %w", err)
		}
		if msg.ID != id {
			logging.Debug("Skipping DevTools message: %s", msg.Method)
			continue
		}
		if msg.Error != nil {
			return "", fmt.Errorf("Browser.getVersion failed: %s", msg.Error.Message)
		}
		product, _ := msg.Result["product"].(string)
		if product == "" {
			return "", fmt.Errorf("Browser.getVersion returned no product")
		}
		return product, nil
	}
}
