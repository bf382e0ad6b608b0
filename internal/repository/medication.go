package repository

import (
	"context"

	"github.com/arogachev/pillbot/internal/database"
	"github.com/arogachev/pillbot/internal/models"
)

type MedicationRepository struct {
	db *database.DB
}

func NewMedicationRepository(db *database.DB) *MedicationRepository {
	return &MedicationRepository{db: db}
}

func (r *MedicationRepository) Create(ctx context.Context, med *models.Medication) error {
	return r.db.Pool.QueryRow(ctx,
		`INSERT INTO medications (user_id, name, dosage, photo_id, notes)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		med.UserID, med.Name, med.Dosage, med.PhotoID, med.Notes,
	).Scan(&med.ID)
}

func (r *MedicationRepository) GetByID(ctx context.Context, id int64) (*models.Medication, error) {
	med := &models.Medication{}
	err := r.db.Pool.QueryRow(ctx,
		`SELECT id, user_id, name, dosage, photo_id, notes FROM medications WHERE id = $1`,
		id,
	).Scan(&med.ID, &med.UserID, &med.Name, &med.Dosage, &med.PhotoID, &med.Notes)
	if err != nil {
		return nil, err
	}
	return med, nil
}

func (r *MedicationRepository) GetByUserID(ctx context.Context, userID int64) ([]*models.Medication, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT id, user_id, name, dosage, photo_id, notes FROM medications
		 WHERE user_id = $1 ORDER BY name`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var meds []*models.Medication
	for rows.Next() {
		med := &models.Medication{}
		if err := rows.Scan(&med.ID, &med.UserID, &med.Name, &med.Dosage, &med.PhotoID, &med.Notes); err != nil {
			return nil, err
		}
		meds = append(meds, med)
	}
	return meds, rows.Err()
}

func (r *MedicationRepository) Update(ctx context.Context, med *models.Medication) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE medications SET name = $1, dosage = $2, photo_id = $3, notes = $4
		 WHERE id = $5 AND user_id = $6`,
		med.Name, med.Dosage, med.PhotoID, med.Notes, med.ID, med.UserID,
	)
	return err
}

// Delete removes the medication; schedules and intake logs cascade.
func (r *MedicationRepository) Delete(ctx context.Context, id, userID int64) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx,
		`DELETE FROM medications WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
