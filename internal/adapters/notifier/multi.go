package notifier

import (
	"context"
	"errors"

	"reg-briefing/internal/domain"
)

// Multi рассылает событие всем уведомителям; сбой одного не мешает остальным.
type Multi []domain.RunNotifier

// NotifyRunFinished реализует domain.RunNotifier.
func (m Multi) NotifyRunFinished(ctx context.Context, e domain.RunEvent) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.NotifyRunFinished(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
