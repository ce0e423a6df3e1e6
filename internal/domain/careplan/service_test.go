package careplan

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func newTestService() *Service { return NewService(NewRevisionRepoMemory()) }

func TestCreateRevision_Success(t *testing.T) {
	svc := newTestService()
	r := &Revision{PatientID: uuid.New(), FieldPath: "medications[0].dose", Value: "10 mg"}
	if err := svc.CreateRevision(context.Background(), r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Status != "active" {
		t.Errorf("expected default status 'active', got %q", r.Status)
	}
	if r.Version != 1 || r.ID == uuid.Nil {
		t.Errorf("expected version 1 with id, got %d %s", r.Version, r.ID)
	}
}

func TestCreateRevision_VersionsIncrementPerPatient(t *testing.T) {
	svc := newTestService()
	pid := uuid.New()
	for i := 1; i <= 3; i++ {
		r := &Revision{PatientID: pid, FieldPath: "diet"}
		svc.CreateRevision(context.Background(), r)
		if r.Version != i {
			t.Errorf("expected version %d, got %d", i, r.Version)
		}
	}
	other := &Revision{PatientID: uuid.New(), FieldPath: "diet"}
	svc.CreateRevision(context.Background(), other)
	if other.Version != 1 {
		t.Errorf("expected version 1 for another patient, got %d", other.Version)
	}
}

func TestCreateRevision_MissingPatient(t *testing.T) {
	svc := newTestService()
	if err := svc.CreateRevision(context.Background(), &Revision{FieldPath: "diet"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestCreateRevision_MissingFieldPath(t *testing.T) {
	svc := newTestService()
	if err := svc.CreateRevision(context.Background(), &Revision{PatientID: uuid.New(), FieldPath: "  "}); err == nil {
		t.Fatal("expected error")
	}
}

func TestCreateRevision_InvalidStatus(t *testing.T) {
	svc := newTestService()
	if err := svc.CreateRevision(context.Background(), &Revision{PatientID: uuid.New(), FieldPath: "diet", Status: "bogus"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestCreateRevision_ValidStatuses(t *testing.T) {
	for _, s := range []string{"draft", "active", "on-hold", "completed", "revoked"} {
		svc := newTestService()
		r := &Revision{PatientID: uuid.New(), FieldPath: "diet", Status: s}
		if err := svc.CreateRevision(context.Background(), r); err != nil {
			t.Errorf("status %q should be valid: %v", s, err)
		}
	}
}

func TestHasAnyRevision(t *testing.T) {
	svc := newTestService()
	pid := uuid.New()
	has, err := svc.HasAnyRevision(context.Background(), pid)
	if err != nil || has {
		t.Fatalf("expected no revisions, got %v %v", has, err)
	}
	svc.CreateRevision(context.Background(), &Revision{PatientID: pid, FieldPath: "diet"})
	if has, _ = svc.HasAnyRevision(context.Background(), pid); !has {
		t.Error("expected revision to be found")
	}
}

func TestListRevisions_NewestFirst(t *testing.T) {
	svc := newTestService()
	pid := uuid.New()
	for i := 0; i < 3; i++ {
		svc.CreateRevision(context.Background(), &Revision{PatientID: pid, FieldPath: "diet"})
	}
	items, total, err := svc.ListRevisions(context.Background(), pid, 2, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 3 || len(items) != 2 {
		t.Fatalf("expected 2 of 3, got %d of %d", len(items), total)
	}
	if items[0].Version != 3 || items[1].Version != 2 {
		t.Errorf("expected versions 3,2 got %d,%d", items[0].Version, items[1].Version)
	}
	items, _, _ = svc.ListRevisions(context.Background(), pid, 2, 2)
	if len(items) != 1 || items[0].Version != 1 {
		t.Errorf("expected last page with version 1, got %+v", items)
	}
}

func TestPatientsUnderCare(t *testing.T) {
	svc := newTestService()
	a, b := uuid.New(), uuid.New()
	svc.CreateRevision(context.Background(), &Revision{PatientID: a, FieldPath: "diet"})
	svc.CreateRevision(context.Background(), &Revision{PatientID: b, FieldPath: "diet"})
	svc.CreateRevision(context.Background(), &Revision{PatientID: a, FieldPath: "exercise"})
	ids, err := svc.PatientsUnderCare(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("expected 2 patients, got %d", len(ids))
	}
}
