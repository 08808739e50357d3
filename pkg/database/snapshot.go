package database

import (
	"strconv"

	"github.com/shiftbreak/restguard-api/pkg/models"
	"gorm.io/gorm"
)

// LoadSnapshot builds the worker-scoped view the validator runs against.
// Only rows belonging to workerID are read; there is no unscoped variant.
func LoadSnapshot(db *gorm.DB, workerID string) (models.WorkerScheduleSnapshot, error) {
	snapshot := models.WorkerScheduleSnapshot{WorkerID: workerID}

	var records []IntervalRecord
	if err := db.Where("worker_id = ?", workerID).Order("start_at").Find(&records).Error; err != nil {
		return snapshot, err
	}

	for _, rec := range records {
		iv := rec.ToInterval()
		switch iv.Category {
		case models.CategoryRest:
			snapshot.Rest = append(snapshot.Rest, iv)
		case models.CategoryWork:
			snapshot.Work = append(snapshot.Work, iv)
		}
	}

	return snapshot, nil
}

// ToInterval converts a stored row to the engine's value type
func (r IntervalRecord) ToInterval() models.Interval {
	return models.Interval{
		ID:       strconv.FormatUint(uint64(r.ID), 10),
		Start:    r.StartAt,
		End:      r.EndAt,
		Category: models.Category(r.Category),
	}
}
