package session

import (
	"context"
	"log/slog"
)

// LogTransport is the default submission sink: it records that a submission
// was built without delivering it anywhere. Deployments replace it with a
// real transport.
type LogTransport struct {
	logger *slog.Logger
}

func NewLogTransport(logger *slog.Logger) *LogTransport {
	return &LogTransport{logger: logger}
}

func (t *LogTransport) Submit(ctx context.Context, code string, payload []byte) (map[string]string, error) {
	t.logger.InfoContext(ctx, "submission built, no transport configured",
		"code", code, "payload_bytes", len(payload))
	return nil, nil
}
