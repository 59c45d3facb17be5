package storage

import (
	"context"

	"github.com/slotbook/slotbook/libs/db"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/model"
)

// PractitionerRepository reads the practitioner mirror owned by the
// identity service.
type PractitionerRepository struct {
	pool *db.Pool
}

func NewPractitionerRepository(pool *db.Pool) *PractitionerRepository {
	return &PractitionerRepository{pool: pool}
}

func (r *PractitionerRepository) ByUserID(ctx context.Context, userID string) (model.Practitioner, error) {
	var p model.Practitioner
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, display_name, active
		FROM practitioners
		WHERE user_id = $1
	`, userID).Scan(&p.ID, &p.UserID, &p.DisplayName, &p.Active)
	if err != nil {
		return model.Practitioner{}, translate(err)
	}
	return p, nil
}
