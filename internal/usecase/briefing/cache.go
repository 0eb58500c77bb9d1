package briefing

import (
	"context"

	"github.com/rs/zerolog"

	"reg-briefing/internal/domain"
)

const defaultCacheScanLimit = 50

// cacheLookup ищет готовый брифинг по хэшу выборки: сначала по индексу,
// затем перебором последних сохранённых брифингов. Без блокировок.
type cacheLookup struct {
	store     domain.BriefingStore
	index     domain.HashIndex
	scanLimit int
	log       zerolog.Logger
}

func (c *cacheLookup) find(ctx context.Context, hash string) *domain.Briefing {
	if c.index != nil {
		id, ok, err := c.index.Lookup(ctx, hash)
		if err != nil {
			c.log.Warn().Err(err).Msg("briefing: индекс хэшей недоступен")
		}
		if ok {
			b, err := c.store.GetBriefing(ctx, id)
			if err != nil {
				c.log.Warn().Err(err).Str("briefing_id", id).Msg("briefing: не удалось загрузить брифинг из индекса")
			}
			if b != nil && b.Metadata.DatasetHash == hash {
				return b
			}
		}
	}

	limit := c.scanLimit
	if limit <= 0 {
		limit = defaultCacheScanLimit
	}
	summaries, err := c.store.ListBriefings(ctx, limit)
	if err != nil {
		c.log.Warn().Err(err).Msg("briefing: не удалось получить список брифингов для кэша")
		return nil
	}
	for _, s := range summaries {
		if s.Metadata.DatasetHash != hash {
			continue
		}
		b, err := c.store.GetBriefing(ctx, s.ID)
		if err != nil {
			c.log.Warn().Err(err).Str("briefing_id", s.ID).Msg("briefing: не удалось загрузить брифинг из кэша")
			continue
		}
		if b != nil {
			c.remember(ctx, hash, b.ID)
			return b
		}
	}
	return nil
}

func (c *cacheLookup) remember(ctx context.Context, hash, briefingID string) {
	if c.index == nil {
		return
	}
	if err := c.index.Remember(ctx, hash, briefingID); err != nil {
		c.log.Warn().Err(err).Msg("briefing: не удалось обновить индекс хэшей")
	}
}
