package database

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shiftbreak/restguard-api/pkg/models"
	"github.com/shiftbreak/restguard-api/pkg/rules"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&IntervalRecord{}, &APIKey{}, &APIUsage{}, &MasterUser{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func TestLoadSnapshot_WorkerScoped(t *testing.T) {
	db := openTestDB(t)

	day := time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC)
	records := []IntervalRecord{
		{WorkerID: "w1", Category: "rest", StartAt: day.Add(7 * time.Hour), EndAt: day.Add(8 * time.Hour)},
		{WorkerID: "w1", Category: "work", StartAt: day.Add(9 * time.Hour), EndAt: day.Add(17 * time.Hour)},
		{WorkerID: "w2", Category: "rest", StartAt: day.Add(7 * time.Hour), EndAt: day.Add(8 * time.Hour)},
	}
	for i := range records {
		if err := db.Create(&records[i]).Error; err != nil {
			t.Fatalf("failed to seed record: %v", err)
		}
	}

	snap, err := LoadSnapshot(db, "w1")
	if err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}

	if snap.WorkerID != "w1" {
		t.Errorf("Expected snapshot for w1, got %s", snap.WorkerID)
	}
	if len(snap.Rest) != 1 || len(snap.Work) != 1 {
		t.Errorf("Expected 1 rest and 1 work interval for w1, got %d rest, %d work", len(snap.Rest), len(snap.Work))
	}
	for _, iv := range append(snap.Rest, snap.Work...) {
		if iv.Category != models.CategoryRest && iv.Category != models.CategoryWork {
			t.Errorf("Unexpected category %s", iv.Category)
		}
	}
}

func TestToInterval(t *testing.T) {
	start := time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC)
	rec := IntervalRecord{ID: 42, WorkerID: "w1", Category: "work", StartAt: start, EndAt: start.Add(8 * time.Hour)}

	iv := rec.ToInterval()
	if iv.ID != "42" {
		t.Errorf("Expected ID 42, got %s", iv.ID)
	}
	if iv.Category != models.CategoryWork {
		t.Errorf("Expected work category, got %s", iv.Category)
	}
	if !iv.Valid() {
		t.Error("Expected converted interval to be valid")
	}
}

func TestWorkerLocks_SerializesSameWorker(t *testing.T) {
	// Two racing 1.5h rest submissions that individually pass the 2h budget
	// but jointly exceed it. Under the worker lock, the second submission
	// sees the first's committed row and is rejected; exactly one lands.
	db := openTestDB(t)
	locks := NewWorkerLocks()
	validator := rules.NewValidator(2.0, rules.MidnightIn(time.UTC))

	day := time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC)
	candidates := []models.Interval{
		{Start: day.Add(6 * time.Hour), End: day.Add(6*time.Hour + 90*time.Minute), Category: models.CategoryRest},
		{Start: day.Add(20 * time.Hour), End: day.Add(20*time.Hour + 90*time.Minute), Category: models.CategoryRest},
	}

	accepted := make([]bool, len(candidates))
	var wg sync.WaitGroup
	for i, cand := range candidates {
		wg.Add(1)
		go func(i int, cand models.Interval) {
			defer wg.Done()

			unlock := locks.Lock("w1")
			defer unlock()

			snap, err := LoadSnapshot(db, "w1")
			if err != nil {
				t.Errorf("LoadSnapshot failed: %v", err)
				return
			}
			res := validator.ValidateRest(snap, models.Candidate{Interval: cand})
			if !res.Accepted {
				return
			}
			rec := IntervalRecord{WorkerID: "w1", Category: string(cand.Category), StartAt: cand.Start, EndAt: cand.End}
			if err := db.Create(&rec).Error; err != nil {
				t.Errorf("failed to persist interval: %v", err)
				return
			}
			accepted[i] = true
		}(i, cand)
	}
	wg.Wait()

	acceptedCount := 0
	for _, ok := range accepted {
		if ok {
			acceptedCount++
		}
	}
	if acceptedCount != 1 {
		t.Errorf("Expected exactly 1 of the racing submissions to be accepted, got %d", acceptedCount)
	}

	var stored int64
	db.Model(&IntervalRecord{}).Where("worker_id = ?", "w1").Count(&stored)
	if stored != 1 {
		t.Errorf("Expected exactly 1 stored interval, got %d", stored)
	}
}

func TestWorkerLocks_DistinctWorkersIndependent(t *testing.T) {
	locks := NewWorkerLocks()

	unlockA := locks.Lock("w1")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB := locks.Lock("w2")
		unlockB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Error("Lock for a different worker blocked behind w1's lock")
	}
}
