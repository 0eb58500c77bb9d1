package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"reg-briefing/internal/domain"
)

// DualWrite сохраняет брифинги в основное хранилище и резервную копию.
// Основное хранилище необязательно; сбой резервного только логируется.
type DualWrite struct {
	primary domain.BriefingStore
	backup  domain.BriefingStore
	log     zerolog.Logger
}

var _ domain.BriefingStore = (*DualWrite)(nil)

// NewDualWrite создаёт декоратор; primary может быть nil.
func NewDualWrite(primary, backup domain.BriefingStore, log zerolog.Logger) *DualWrite {
	return &DualWrite{primary: primary, backup: backup, log: log}
}

// SaveBriefing возвращает ошибку, только если брифинг не сохранился нигде.
func (d *DualWrite) SaveBriefing(ctx context.Context, b domain.Briefing) error {
	if d.primary == nil {
		if err := d.backup.SaveBriefing(ctx, b); err != nil {
			return fmt.Errorf("резервное хранилище: %w", err)
		}
		return nil
	}

	primaryErr := d.primary.SaveBriefing(ctx, b)
	backupErr := d.backup.SaveBriefing(ctx, b)
	switch {
	case primaryErr == nil && backupErr != nil:
		d.log.Warn().Err(backupErr).Str("briefing_id", b.ID).Msg("storage: резервная копия не сохранена")
		return nil
	case primaryErr != nil && backupErr == nil:
		d.log.Warn().Err(primaryErr).Str("briefing_id", b.ID).Msg("storage: основное хранилище недоступно, брифинг сохранён только в резервной копии")
		return nil
	case primaryErr != nil:
		return errors.Join(fmt.Errorf("основное хранилище: %w", primaryErr), fmt.Errorf("резервное хранилище: %w", backupErr))
	}
	return nil
}

// GetBriefing читает из основного хранилища, при промахе или сбое из резервного.
func (d *DualWrite) GetBriefing(ctx context.Context, id string) (*domain.Briefing, error) {
	if d.primary != nil {
		b, err := d.primary.GetBriefing(ctx, id)
		if err == nil && b != nil {
			return b, nil
		}
		if err != nil {
			d.log.Warn().Err(err).Str("briefing_id", id).Msg("storage: чтение из основного хранилища не удалось")
		}
	}
	return d.backup.GetBriefing(ctx, id)
}

// ListBriefings использует основное хранилище, пока оно отвечает.
func (d *DualWrite) ListBriefings(ctx context.Context, limit int) ([]domain.BriefingSummary, error) {
	if d.primary != nil {
		list, err := d.primary.ListBriefings(ctx, limit)
		if err == nil {
			return list, nil
		}
		d.log.Warn().Err(err).Msg("storage: список из основного хранилища недоступен")
	}
	return d.backup.ListBriefings(ctx, limit)
}

// GetLatestBriefing реализует domain.BriefingStore.
func (d *DualWrite) GetLatestBriefing(ctx context.Context) (*domain.Briefing, error) {
	list, err := d.ListBriefings(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return d.GetBriefing(ctx, list[0].ID)
}
