package store

import (
	"context"

	"sisko/internal/models"
)

// Store persists the whole queue as one blob. Save overwrites prior
// contents; queue sizes are small enough that full overwrite keeps crash
// recovery trivial.
type Store interface {
	Load(ctx context.Context) ([]models.ActionRecord, error)
	Save(ctx context.Context, queue []models.ActionRecord) error
}
