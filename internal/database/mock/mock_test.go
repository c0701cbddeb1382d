package mock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/jsvoboda/rollcall/internal/database"
)

func TestRecordIfAbsent_Idempotent(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	tenant := uuid.New()
	student := uuid.New()

	now := time.Now()
	outcome, err := store.RecordIfAbsent(ctx, tenant, student, "Alice", "101", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != database.Created {
		t.Errorf("expected Created, got %s", outcome)
	}

	for i := 0; i < 3; i++ {
		outcome, err = store.RecordIfAbsent(ctx, tenant, student, "Alice", "101", now.Add(time.Minute))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if outcome != database.AlreadyExists {
			t.Errorf("call %d: expected AlreadyExists, got %s", i, outcome)
		}
	}
}

func TestRecordIfAbsent_NewDayNewRecord(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	tenant := uuid.New()
	student := uuid.New()

	day1 := time.Date(2025, 5, 1, 9, 0, 0, 0, time.Local)
	day2 := time.Date(2025, 5, 2, 9, 0, 0, 0, time.Local)

	if outcome, _ := store.RecordIfAbsent(ctx, tenant, student, "A", "101", day1); outcome != database.Created {
		t.Errorf("day1: expected Created, got %s", outcome)
	}
	if outcome, _ := store.RecordIfAbsent(ctx, tenant, student, "A", "101", day2); outcome != database.Created {
		t.Errorf("day2: expected Created, got %s", outcome)
	}
}

func TestDeleteToday_ThenRecordAgain(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	tenant := uuid.New()
	student := uuid.New()

	now := time.Now()
	if _, err := store.RecordIfAbsent(ctx, tenant, student, "A", "101", now); err != nil {
		t.Fatalf("record: %v", err)
	}

	removed, err := store.DeleteToday(ctx, tenant, student)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if removed != 1 {
		t.Errorf("expected 1 removed, got %d", removed)
	}

	// Second delete is a no-op.
	removed, err = store.DeleteToday(ctx, tenant, student)
	if err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if removed != 0 {
		t.Errorf("expected 0 removed on second delete, got %d", removed)
	}

	outcome, err := store.RecordIfAbsent(ctx, tenant, student, "A", "101", now)
	if err != nil {
		t.Fatalf("re-record: %v", err)
	}
	if outcome != database.Created {
		t.Errorf("expected Created after delete, got %s", outcome)
	}
}

func TestClearToday_OnlyTenantAndToday(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	tenantA := uuid.New()
	tenantB := uuid.New()

	now := time.Now()
	yesterday := now.Add(-24 * time.Hour)

	store.RecordIfAbsent(ctx, tenantA, uuid.New(), "A1", "101", now)
	store.RecordIfAbsent(ctx, tenantA, uuid.New(), "A2", "102", now)
	store.RecordIfAbsent(ctx, tenantA, uuid.New(), "A3", "103", yesterday)
	store.RecordIfAbsent(ctx, tenantB, uuid.New(), "B1", "201", now)

	count, err := store.ClearToday(ctx, tenantA)
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 cleared for tenant A today, got %d", count)
	}

	// Tenant B untouched.
	records, err := store.QueryRange(ctx, tenantB, now.Add(-time.Hour), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("expected tenant B record untouched, got %d records", len(records))
	}
}

func TestRecordIfAbsent_Concurrent(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	tenant := uuid.New()
	student := uuid.New()

	const n = 50
	outcomes := make([]database.Outcome, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i], _ = store.RecordIfAbsent(ctx, tenant, student, "A", "101", time.Now())
		}(i)
	}
	wg.Wait()

	created := 0
	for _, o := range outcomes {
		if o == database.Created {
			created++
		}
	}
	if created != 1 {
		t.Errorf("expected exactly 1 Created, got %d", created)
	}
}

func TestTenantIsolation_Templates(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	tenantA := uuid.New()
	tenantB := uuid.New()

	if _, err := store.UpsertTemplate(ctx, tenantA, "101", "Alice", []float32{1, 2}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	students, err := store.ListTemplates(ctx, tenantB)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(students) != 0 {
		t.Errorf("tenant B must not see tenant A's roster, got %d", len(students))
	}
}

func TestUpsertTemplate_ReplacesVectorAndName(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	tenant := uuid.New()

	first, err := store.UpsertTemplate(ctx, tenant, "101", "Alice", []float32{1, 0})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	second, err := store.UpsertTemplate(ctx, tenant, "101", "Alicia", []float32{0, 1})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if first.ID != second.ID {
		t.Error("upsert must keep the student identity")
	}

	students, _ := store.ListTemplates(ctx, tenant)
	if len(students) != 1 {
		t.Fatalf("expected 1 student, got %d", len(students))
	}
	if students[0].Name != "Alicia" || students[0].Embedding[1] != 1 {
		t.Errorf("expected replaced template, got %+v", students[0])
	}
}

func TestQueryRange_InclusiveBoundsAscending(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	tenant := uuid.New()

	base := time.Date(2025, 5, 1, 8, 0, 0, 0, time.Local)
	for i := 0; i < 4; i++ {
		store.RecordIfAbsent(ctx, tenant, uuid.New(), "S", "10", base.AddDate(0, 0, i))
	}

	records, err := store.QueryRange(ctx, tenant, base, base.AddDate(0, 0, 2))
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records within inclusive bounds, got %d", len(records))
	}
	for i := 1; i < len(records); i++ {
		if records[i].RecordedAt.Before(records[i-1].RecordedAt) {
			t.Error("records not in ascending order")
		}
	}
}

func TestCreateTeacher_DuplicateEmail(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	if _, err := store.CreateTeacher(ctx, "A", "t@example.com", "hash"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.CreateTeacher(ctx, "B", "t@example.com", "hash"); err != database.ErrDuplicateEmail {
		t.Errorf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestResolveTenant_Stable(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	first, err := store.ResolveTenant(ctx, "t@example.com")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	second, err := store.ResolveTenant(ctx, "t@example.com")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if first != second {
		t.Error("tenant id must be stable across resolutions")
	}
}
