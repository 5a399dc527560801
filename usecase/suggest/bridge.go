package suggest

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// Flow is the external text-generation flow that proposes a task title.
type Flow interface {
	SuggestTitle(ctx context.Context, description string) (string, error)
}

// Bridge turns a task description into a title suggestion. It never fails:
// an empty result means no suggestion is available.
type Bridge struct {
	flow   Flow
	logger *zap.Logger
}

func NewBridge(flow Flow, logger *zap.Logger) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{flow: flow, logger: logger}
}

// Suggest returns a proposed title for description, or "" when the input is
// empty, no flow is configured or the flow fails.
func (b *Bridge) Suggest(ctx context.Context, description string) string {
	if description == "" || b.flow == nil {
		return ""
	}
	title, err := b.flow.SuggestTitle(ctx, description)
	if err != nil {
		b.logger.Warn("title suggestion failed", zap.Int("description_len", len(description)), zap.Error(err))
		return ""
	}
	return strings.TrimSpace(title)
}
