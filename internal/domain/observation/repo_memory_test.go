package observation

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

func seed(t *testing.T, repo Repository, pid uuid.UUID, base time.Time, code string, minutesAgo ...int) {
	t.Helper()
	var obs []*Observation
	for _, m := range minutesAgo {
		v := float64(m)
		obs = append(obs, &Observation{ID: uuid.New(), PatientID: pid, Code: code, ValueNumeric: &v, EffectiveAt: base.Add(-time.Duration(m) * time.Minute)})
	}
	if err := repo.Append(context.Background(), obs); err != nil {
		t.Fatalf("append: %v", err)
	}
}

func TestMemoryRepo_ListByPatientSortedDesc(t *testing.T) {
	repo := NewMemoryRepo()
	pid := uuid.New()
	now := time.Now()
	seed(t, repo, pid, now, "hr", 30, 5, 60)
	seed(t, repo, pid, now, "spo2", 1)
	seed(t, repo, uuid.New(), now, "hr", 0)

	items, total, err := repo.ListByPatient(context.Background(), pid, "hr", 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 3 || len(items) != 3 {
		t.Fatalf("expected 3 hr observations, got %d/%d", len(items), total)
	}
	for i := 1; i < len(items); i++ {
		if items[i].EffectiveAt.After(items[i-1].EffectiveAt) {
			t.Errorf("items not sorted newest first at %d", i)
		}
	}

	all, total, _ := repo.ListByPatient(context.Background(), pid, "", 2, 1)
	if total != 4 || len(all) != 2 {
		t.Errorf("expected page of 2 out of 4, got %d/%d", len(all), total)
	}
	if all[0].Code != "hr" || *all[0].ValueNumeric != 5 {
		t.Errorf("expected second newest observation first on page, got %+v", all[0])
	}
}

func TestMemoryRepo_RecentWithinMinutes(t *testing.T) {
	repo := NewMemoryRepo()
	pid := uuid.New()
	now := time.Now()
	seed(t, repo, pid, now, "heart_rate", 0, 4, 10, 11)
	seed(t, repo, pid, now, "hr", 2)

	items, err := repo.RecentWithinMinutes(context.Background(), pid, "heart_rate", now, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 observations inside the window, got %d", len(items))
	}
	if *items[0].ValueNumeric != 0 || *items[2].ValueNumeric != 10 {
		t.Errorf("unexpected ordering %v, %v", *items[0].ValueNumeric, *items[2].ValueNumeric)
	}
}

func TestMemoryRepo_ReturnsCopies(t *testing.T) {
	repo := NewMemoryRepo()
	pid := uuid.New()
	seed(t, repo, pid, time.Now(), "hr", 1)
	items, _, _ := repo.ListByPatient(context.Background(), pid, "", 0, 0)
	items[0].Code = "mutated"
	again, _, _ := repo.ListByPatient(context.Background(), pid, "", 0, 0)
	if again[0].Code != "hr" {
		t.Error("stored observation was mutated through a returned value")
	}
}
