package storage

import (
	"context"
	"errors"

	"swapScope/internal/model"
)

// Archive persists emitted alerts.
type Archive interface {
	PutAlerts(ctx context.Context, alerts []model.Alert) error
}

// Multi writes to every archive and joins their errors.
type Multi []Archive

func (m Multi) PutAlerts(ctx context.Context, alerts []model.Alert) error {
	var errs []error
	for _, archive := range m {
		if err := archive.PutAlerts(ctx, alerts); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
