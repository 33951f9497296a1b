package metrics

import (
	"context"
	"time"

	"pairflow/internal/channel"
	"pairflow/logger"
)

// StartChannelSizeMetrics samples the depth of each feed every interval
// until ctx is cancelled. When interval <= 0, a one-second cadence is used.
func StartChannelSizeMetrics(ctx context.Context, channels *channel.Channels, interval time.Duration) {
	if channels == nil {
		return
	}
	if interval <= 0 {
		interval = time.Second
	}

	log := logger.GetLogger()
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sampleFeedDepth(log, channels)
			}
		}
	}()
}

func sampleFeedDepth(log *logger.Log, channels *channel.Channels) {
	for _, f := range []struct {
		name     string
		len, cap int
	}{
		{channels.Quotes.Name(), channels.Quotes.Len(), channels.Quotes.Cap()},
		{channels.Trades.Name(), channels.Trades.Len(), channels.Trades.Cap()},
		{channels.Pairs.Name(), channels.Pairs.Len(), channels.Pairs.Cap()},
	} {
		SetFeedDepth(f.name, f.len)
		log.WithComponent("channel_buffers").WithFields(logger.Fields{
			"feed":     f.name,
			"length":   f.len,
			"capacity": f.cap,
		}).Debug("feed depth")
	}
}
