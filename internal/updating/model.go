package updating

import "time"

// Status and type values stored on an Updating row.
const (
	StatusNew       = "new"
	StatusCompleted = "completed"

	TypeModal = "modal"
)

// Updating is a manual update task. Pending modal tasks make the frontend
// show a prompt that sends the administrator to RequestPath; UpdatePath is
// the endpoint that performs the action.
type Updating struct {
	ID          uint      `gorm:"column:updating_id;primaryKey"`
	Status      string    `gorm:"column:updating_status;type:varchar(50);not null;index:idx_updating_pending"`
	Type        string    `gorm:"column:updating_type;type:varchar(50);not null;index:idx_updating_pending"`
	RequestPath string    `gorm:"column:updating_request_path;type:text"`
	UpdatePath  string    `gorm:"column:updating_update_path;type:text"`
	CreatedAt   time.Time `gorm:"column:updating_created"`
	UpdatedAt   time.Time `gorm:"column:updating_updated"`
}

// TableName maps the model onto the updatings table.
func (Updating) TableName() string {
	return "updatings"
}
