package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	applog "opsdesk/internal/log"
)

// RecurringTrigger asks the opsdesk server to materialize due recurring
// expenses. The server owns the stores, so generation always runs there.
type RecurringTrigger struct {
	endpoint string
	client   *http.Client
}

func NewRecurringTrigger(baseURL string, client *http.Client) *RecurringTrigger {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &RecurringTrigger{endpoint: strings.TrimRight(baseURL, "/") + "/api/recurring/run", client: client}
}

// Run triggers one processing pass and returns how many records were created.
func (t *RecurringTrigger) Run(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("trigger recurring run: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("trigger recurring run: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var out struct {
		Data struct {
			Generated int `json:"generated"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decode recurring run response: %w", err)
	}
	return out.Data.Generated, nil
}

// Loop runs immediately and then on every tick until ctx is done. Failed
// passes are logged and retried on the next tick.
func (t *RecurringTrigger) Loop(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		count, err := t.Run(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.ErrorContext(ctx, "Recurring processing failed", applog.FieldError, err)
		} else {
			logger.InfoContext(ctx, "Recurring processing complete",
				"expenses_created", count,
				"next_check", time.Now().Add(interval).Format("15:04:05"))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
