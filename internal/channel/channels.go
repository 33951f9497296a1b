package channel

import (
	"context"
	"time"

	"pairflow/internal/channel/feed"
	"pairflow/logger"
	"pairflow/models"
)

// Channels holds the hand-offs between the readers, the dispatcher and the
// batcher.
type Channels struct {
	Quotes *feed.Feed[models.QuoteEvent]
	Trades *feed.Feed[models.TradeEvent]
	Pairs  *feed.Feed[models.ClosedPair]

	log *logger.Log
}

func NewChannels(eventBufferSize, pairBufferSize int) *Channels {
	return &Channels{
		Quotes: feed.New[models.QuoteEvent]("quotes", eventBufferSize),
		Trades: feed.New[models.TradeEvent]("trades", eventBufferSize),
		Pairs:  feed.New[models.ClosedPair]("pairs", pairBufferSize),
		log:    logger.GetLogger(),
	}
}

// StartMetricsReporting logs feed depth and counters every interval until
// ctx is done.
func (c *Channels) StartMetricsReporting(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.logChannelStats()
			}
		}
	}()
}

func (c *Channels) logChannelStats() {
	qs, ts, ps := c.Quotes.GetStats(), c.Trades.GetStats(), c.Pairs.GetStats()

	c.log.WithComponent("channels").WithFields(logger.Fields{
		"quotes_sent":    qs.Sent,
		"quotes_blocked": qs.Blocked,
		"quotes_len":     c.Quotes.Len(),
		"trades_sent":    ts.Sent,
		"trades_blocked": ts.Blocked,
		"trades_len":     c.Trades.Len(),
		"pairs_sent":     ps.Sent,
		"pairs_blocked":  ps.Blocked,
		"pairs_len":      c.Pairs.Len(),
	}).Info("channel statistics")
}

// Close closes every feed. Producers normally close their own feed first.
func (c *Channels) Close() {
	c.Quotes.Close()
	c.Trades.Close()
	c.Pairs.Close()
}
