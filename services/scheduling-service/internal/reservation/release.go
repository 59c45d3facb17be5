package reservation

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/model"
)

// Releaser hands a slot back when its appointment is cancelled or
// completed. It runs in the caller's transaction so the status change and
// the release commit together.
type Releaser struct {
	slots SlotStore
}

func NewReleaser(slots SlotStore) *Releaser {
	return &Releaser{slots: slots}
}

// ReleaseSlot clears the reserved flag under the slot row lock. A slot that
// no longer exists has nothing to release.
func (r *Releaser) ReleaseSlot(ctx context.Context, tx pgx.Tx, slotID string) error {
	if slotID == "" {
		return nil
	}
	slot, err := r.slots.LockSlot(ctx, tx, slotID)
	if errors.Is(err, model.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !slot.Reserved {
		return nil
	}
	return r.slots.SetReserved(ctx, tx, slotID, false)
}
