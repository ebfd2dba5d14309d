package repository

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tdnguyen/bangtin/internal/entity"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// The in-memory database exists per connection.
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&entity.UserReadStatus{}))
	for _, kind := range []entity.Kind{entity.KindNotification, entity.KindRegulation} {
		require.NoError(t, db.Table(kind.Table()).AutoMigrate(&entity.Item{}))
	}

	return db
}

func seedItems(t *testing.T, repo Repository, n int) []uint {
	t.Helper()

	ids := make([]uint, 0, n)
	for i := 1; i <= n; i++ {
		item := entity.Item{
			Title:   fmt.Sprintf("Item %02d", i),
			Brief:   fmt.Sprintf("Brief %02d", i),
			Content: fmt.Sprintf("Content body %02d", i),
			Date:    fmt.Sprintf("2024-03-%02d", (i%28)+1),
			IsNew:   true,
		}
		require.NoError(t, repo.Create(context.Background(), &item))
		ids = append(ids, item.ID)
	}
	return ids
}

func TestFindAllPagination(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db, Notifications)
	seedItems(t, repo, 25)

	rows, total, err := repo.FindAll(context.Background(), ListOptions{Page: 2, Limit: 10, Filter: FilterAll})
	require.NoError(t, err)
	require.EqualValues(t, 25, total)
	require.Len(t, rows, 10)

	rows, total, err = repo.FindAll(context.Background(), ListOptions{Page: 3, Limit: 10, Filter: FilterAll})
	require.NoError(t, err)
	require.EqualValues(t, 25, total)
	require.Len(t, rows, 5)

	// Out-of-range pages return an empty slice, not an error.
	rows, total, err = repo.FindAll(context.Background(), ListOptions{Page: 9, Limit: 10, Filter: FilterAll})
	require.NoError(t, err)
	require.EqualValues(t, 25, total)
	require.Empty(t, rows)
}

func TestFindAllCountMatchesFilters(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db, Notifications)
	ids := seedItems(t, repo, 10)

	viewer := uuid.New()
	for _, id := range ids[:4] {
		require.NoError(t, repo.SetReadStatus(context.Background(), id, viewer, true))
	}

	rows, total, err := repo.FindAll(context.Background(), ListOptions{
		Page: 1, Limit: 100, Filter: FilterUnread, Viewer: &viewer,
	})
	require.NoError(t, err)
	require.EqualValues(t, 6, total)
	require.Len(t, rows, 6)
	for _, row := range rows {
		require.NotNil(t, row.Read)
		require.False(t, *row.Read)
	}

	rows, total, err = repo.FindAll(context.Background(), ListOptions{
		Page: 1, Limit: 100, Filter: FilterRead, Viewer: &viewer,
	})
	require.NoError(t, err)
	require.EqualValues(t, 4, total)
	require.Len(t, rows, 4)
	for _, row := range rows {
		require.NotNil(t, row.Read)
		require.True(t, *row.Read)
	}
}

func TestUnreadFilterCombinesWithSearch(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db, Notifications)
	viewer := uuid.New()

	seed := []entity.Item{
		{Title: "Budget review", Brief: "b", Content: "c", Date: "2024-01-01"},
		{Title: "Budget freeze", Brief: "b", Content: "c", Date: "2024-01-02"},
		{Title: "Parking notice", Brief: "b", Content: "c", Date: "2024-01-03"},
	}
	for i := range seed {
		require.NoError(t, repo.Create(context.Background(), &seed[i]))
	}
	require.NoError(t, repo.SetReadStatus(context.Background(), seed[0].ID, viewer, true))

	rows, total, err := repo.FindAll(context.Background(), ListOptions{
		Page: 1, Limit: 100, Filter: FilterUnread, Search: "budget", Viewer: &viewer,
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Len(t, rows, 1)
	require.Equal(t, "Budget freeze", rows[0].Title)

	// Page size must not change the reported total.
	_, total, err = repo.FindAll(context.Background(), ListOptions{
		Page: 2, Limit: 1, Filter: FilterUnread, Search: "budget", Viewer: &viewer,
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
}

func TestFindAllSearch(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db, Notifications)

	items := []entity.Item{
		{Title: "Planned maintenance window", Brief: "network outage", Content: "routers", Date: "2024-01-10"},
		{Title: "Holiday schedule", Brief: "office closed", Content: "maintenance crew on call", Date: "2024-01-12"},
		{Title: "New canteen menu", Brief: "lunch options", Content: "weekly rotation", Date: "2024-01-15"},
	}
	for i := range items {
		require.NoError(t, repo.Create(context.Background(), &items[i]))
	}

	// Case-insensitive, title and brief by default.
	rows, total, err := repo.FindAll(context.Background(), ListOptions{
		Page: 1, Limit: 10, Filter: FilterAll, Search: "MAINTENANCE",
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, "Planned maintenance window", rows[0].Title)

	// Opting into content search widens the match.
	_, total, err = repo.FindAll(context.Background(), ListOptions{
		Page: 1, Limit: 10, Filter: FilterAll, Search: "maintenance", SearchInContent: true,
	})
	require.NoError(t, err)
	require.EqualValues(t, 2, total)

	// Unknown field names are ignored rather than queried.
	_, total, err = repo.FindAll(context.Background(), ListOptions{
		Page: 1, Limit: 10, Filter: FilterAll, Search: "maintenance",
		SearchFields: []string{"title; DROP TABLE notifications"},
	})
	require.NoError(t, err)
	require.EqualValues(t, 3, total)
}

func TestFindAllDateRange(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db, Notifications)

	for _, date := range []string{"2024-01-05", "2024-02-10", "2024-03-20"} {
		item := entity.Item{Title: "t", Brief: "b", Content: "c", Date: date}
		require.NoError(t, repo.Create(context.Background(), &item))
	}

	_, total, err := repo.FindAll(context.Background(), ListOptions{
		Page: 1, Limit: 10, Filter: FilterAll, FromDate: "2024-02-01", ToDate: "2024-02-28",
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)

	_, total, err = repo.FindAll(context.Background(), ListOptions{
		Page: 1, Limit: 10, Filter: FilterAll, FromDate: "2024-02-01",
	})
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
}

func TestRegulationOrdering(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db, Regulations)

	older := entity.Item{Title: "older important", Brief: "b", Content: "c", Date: "2024-01-01", IsImportant: true}
	newer := entity.Item{Title: "newer plain", Brief: "b", Content: "c", Date: "2024-06-01"}
	require.NoError(t, repo.Create(context.Background(), &older))
	require.NoError(t, repo.Create(context.Background(), &newer))

	rows, _, err := repo.FindAll(context.Background(), ListOptions{Page: 1, Limit: 10, Filter: FilterAll})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "older important", rows[0].Title)
}

func TestFindByID(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db, Notifications)
	ids := seedItems(t, repo, 1)

	// Without a viewer the read flag is absent.
	row, err := repo.FindByID(context.Background(), ids[0], nil)
	require.NoError(t, err)
	require.NotNil(t, row)
	require.Nil(t, row.Read)

	viewer := uuid.New()
	row, err = repo.FindByID(context.Background(), ids[0], &viewer)
	require.NoError(t, err)
	require.NotNil(t, row.Read)
	require.False(t, *row.Read)

	require.NoError(t, repo.SetReadStatus(context.Background(), ids[0], viewer, true))
	row, err = repo.FindByID(context.Background(), ids[0], &viewer)
	require.NoError(t, err)
	require.True(t, *row.Read)

	missing, err := repo.FindByID(context.Background(), 9999, nil)
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestSetReadStatusIdempotent(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db, Notifications)
	ids := seedItems(t, repo, 1)
	viewer := uuid.New()

	require.NoError(t, repo.SetReadStatus(context.Background(), ids[0], viewer, true))
	require.NoError(t, repo.SetReadStatus(context.Background(), ids[0], viewer, true))

	var count int64
	require.NoError(t, db.Model(&entity.UserReadStatus{}).Count(&count).Error)
	require.EqualValues(t, 1, count)

	require.NoError(t, repo.SetReadStatus(context.Background(), ids[0], viewer, false))
	require.NoError(t, db.Model(&entity.UserReadStatus{}).Count(&count).Error)
	require.EqualValues(t, 0, count)

	// Unmarking an already-unread item is a no-op, not an error.
	require.NoError(t, repo.SetReadStatus(context.Background(), ids[0], viewer, false))
}

func TestReadStatusScopedPerKind(t *testing.T) {
	db := newTestDB(t)
	notifications := NewRepository(db, Notifications)
	regulations := NewRepository(db, Regulations)
	viewer := uuid.New()

	n := entity.Item{Title: "n", Brief: "b", Content: "c", Date: "2024-01-01"}
	require.NoError(t, notifications.Create(context.Background(), &n))
	r := entity.Item{Title: "r", Brief: "b", Content: "c", Date: "2024-01-01"}
	require.NoError(t, regulations.Create(context.Background(), &r))

	require.NoError(t, notifications.SetReadStatus(context.Background(), n.ID, viewer, true))

	count, err := notifications.CountUnread(context.Background(), viewer)
	require.NoError(t, err)
	require.EqualValues(t, 0, count)

	count, err = regulations.CountUnread(context.Background(), viewer)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
}

func TestMarkAllAsRead(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db, Notifications)
	ids := seedItems(t, repo, 8)
	viewer := uuid.New()

	require.NoError(t, repo.SetReadStatus(context.Background(), ids[0], viewer, true))

	require.NoError(t, repo.MarkAllAsRead(context.Background(), viewer))
	count, err := repo.CountUnread(context.Background(), viewer)
	require.NoError(t, err)
	require.EqualValues(t, 0, count)

	// Running it again must not fail on existing rows.
	require.NoError(t, repo.MarkAllAsRead(context.Background(), viewer))

	var rows int64
	require.NoError(t, db.Model(&entity.UserReadStatus{}).Where("user_id = ?", viewer).Count(&rows).Error)
	require.EqualValues(t, 8, rows)
}

func TestDeleteCascadesReadStatus(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db, Notifications)
	ids := seedItems(t, repo, 2)
	alice := uuid.New()
	bob := uuid.New()

	require.NoError(t, repo.SetReadStatus(context.Background(), ids[0], alice, true))
	require.NoError(t, repo.SetReadStatus(context.Background(), ids[0], bob, true))
	require.NoError(t, repo.SetReadStatus(context.Background(), ids[1], alice, true))

	require.NoError(t, repo.Delete(context.Background(), ids[0]))

	row, err := repo.FindByID(context.Background(), ids[0], nil)
	require.NoError(t, err)
	require.Nil(t, row)

	var remaining int64
	require.NoError(t, db.Model(&entity.UserReadStatus{}).Count(&remaining).Error)
	require.EqualValues(t, 1, remaining)
}

func TestCreateRespectsColumnAllowlist(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db, Notifications)

	item := entity.Item{
		Title: "t", Brief: "b", Content: "c", Date: "2024-01-01",
		HasAttachment: true,
		IsImportant:   true,
	}
	require.NoError(t, repo.Create(context.Background(), &item))

	row, err := repo.FindByID(context.Background(), item.ID, nil)
	require.NoError(t, err)
	require.False(t, row.HasAttachment)
	require.False(t, row.IsImportant)
}

func TestUpdateRespectsColumnAllowlist(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db, Notifications)
	ids := seedItems(t, repo, 1)

	err := repo.Update(context.Background(), ids[0], map[string]any{
		"title":          "changed",
		"has_attachment": true,
		"id":             999,
	})
	require.NoError(t, err)

	row, err := repo.FindByID(context.Background(), ids[0], nil)
	require.NoError(t, err)
	require.NotNil(t, row)
	require.Equal(t, "changed", row.Title)
	require.False(t, row.HasAttachment)

	// A map with no allowlisted columns is a no-op.
	require.NoError(t, repo.Update(context.Background(), ids[0], map[string]any{"has_attachment": true}))
	row, err = repo.FindByID(context.Background(), ids[0], nil)
	require.NoError(t, err)
	require.False(t, row.HasAttachment)
}
