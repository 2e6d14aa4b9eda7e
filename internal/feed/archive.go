package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/FinnSolly2/TradeQuest1/internal/model"
	"github.com/FinnSolly2/TradeQuest1/internal/store"
)

// LatestKey is the alias always pointing at the most recent batch.
const LatestKey = "simulated/latest.json"

// Archive persists published batches to an object store.
type Archive struct {
	objects store.Objects
}

// NewArchive creates an archive on top of objects.
func NewArchive(objects store.Objects) *Archive {
	return &Archive{objects: objects}
}

// BatchKey is the dated key of a batch: simulated/<date>/<time>.json.
func BatchKey(b *model.Batch) string {
	t := b.AnchorTime.UTC()
	return fmt.Sprintf("simulated/%s/%s.json", t.Format("2006-01-02"), t.Format("15-04-05"))
}

// Save writes b under its dated key and then the latest alias. Only a
// failed dated write is returned; a failed alias write is logged.
func (a *Archive) Save(ctx context.Context, b *model.Batch) (string, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return "", fmt.Errorf("encode batch: %w", err)
	}

	key := BatchKey(b)
	if err := a.objects.Put(ctx, key, data); err != nil {
		return "", fmt.Errorf("archive batch: %w", err)
	}
	if err := a.objects.Put(ctx, LatestKey, data); err != nil {
		slog.Warn("latest batch alias not updated", "key", key, "err", err)
	}
	return key, nil
}

// Latest loads the batch behind the latest alias. A missing alias is
// model.ErrNotFound.
func (a *Archive) Latest(ctx context.Context) (*model.Batch, error) {
	return a.load(ctx, LatestKey)
}

// Load reads the batch stored under key.
func (a *Archive) Load(ctx context.Context, key string) (*model.Batch, error) {
	return a.load(ctx, key)
}

func (a *Archive) load(ctx context.Context, key string) (*model.Batch, error) {
	data, err := a.objects.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	var b model.Batch
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("%w: decode batch %s: %w", model.ErrPersistence, key, err)
	}
	return &b, nil
}
