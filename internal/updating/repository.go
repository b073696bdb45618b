package updating

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ErrNotFound indicates no Updating row matched.
var ErrNotFound = errors.New("updating task not found")

// Pending is the state the frontend needs to decide whether to show the
// manual update modal.
type Pending struct {
	Count int64
	First *Updating // oldest pending task, nil when Count is zero
}

// Repository reads and writes Updating rows.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a Repository on the given gorm handle.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// EnsureTable creates or migrates the updatings table.
func (r *Repository) EnsureTable(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&Updating{}); err != nil {
		return fmt.Errorf("migrating updatings table: %w", err)
	}

	return nil
}

// Create inserts a task. Empty status and type default to new and modal.
func (r *Repository) Create(ctx context.Context, u *Updating) error {
	if u.Status == "" {
		u.Status = StatusNew
	}

	if u.Type == "" {
		u.Type = TypeModal
	}

	if err := r.db.WithContext(ctx).Create(u).Error; err != nil {
		return fmt.Errorf("creating updating task: %w", err)
	}

	return nil
}

// PendingModal counts the new modal tasks and loads the oldest one.
func (r *Repository) PendingModal(ctx context.Context) (Pending, error) {
	var pending Pending

	query := r.db.WithContext(ctx).Model(&Updating{}).
		Where("updating_status = ? AND updating_type = ?", StatusNew, TypeModal)

	if err := query.Count(&pending.Count).Error; err != nil {
		return Pending{}, fmt.Errorf("counting pending updating tasks: %w", err)
	}

	if pending.Count == 0 {
		return pending, nil
	}

	var first Updating

	err := r.db.WithContext(ctx).
		Where("updating_status = ? AND updating_type = ?", StatusNew, TypeModal).
		Order("updating_id asc").
		First(&first).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pending, nil
		}

		return Pending{}, fmt.Errorf("loading first pending updating task: %w", err)
	}

	pending.First = &first

	return pending, nil
}

// Complete marks a task as completed so it no longer triggers the modal.
func (r *Repository) Complete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Model(&Updating{}).
		Where("updating_id = ?", id).
		Update("updating_status", StatusCompleted)
	if res.Error != nil {
		return fmt.Errorf("completing updating task %d: %w", id, res.Error)
	}

	if res.RowsAffected == 0 {
		return fmt.Errorf("updating task %d: %w", id, ErrNotFound)
	}

	return nil
}

// List returns every task ordered by id.
func (r *Repository) List(ctx context.Context) ([]Updating, error) {
	var tasks []Updating

	if err := r.db.WithContext(ctx).Order("updating_id asc").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("listing updating tasks: %w", err)
	}

	return tasks, nil
}
