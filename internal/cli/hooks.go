package cli

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/defectset/pkg/observability"
)

// logHooks reports pipeline and cache events at debug level.
type logHooks struct {
	logger *log.Logger
}

func (h logHooks) OnStageStart(_ context.Context, stage string, total int) {
	h.logger.Debug("stage started", "stage", stage, "units", total)
}

func (h logHooks) OnStageComplete(_ context.Context, stage string, o observability.StageOutcome) {
	h.logger.Debug("stage outcome", "stage", stage,
		"written", o.Written, "skipped", o.Skipped, "warnings", o.Warnings,
		"duration", o.Duration.Round(time.Millisecond))
}

func (h logHooks) OnCacheHit(_ context.Context, keyType string) {
	h.logger.Debug("cache hit", "type", keyType)
}

func (h logHooks) OnCacheMiss(_ context.Context, keyType string) {
	h.logger.Debug("cache miss", "type", keyType)
}

func (h logHooks) OnCacheSet(_ context.Context, keyType string, size int) {
	h.logger.Debug("cache set", "type", keyType, "bytes", size)
}

// registerHooks routes observability events to the CLI logger.
func (c *CLI) registerHooks() {
	h := logHooks{logger: c.Logger}
	observability.SetPipelineHooks(h)
	observability.SetCacheHooks(h)
}
