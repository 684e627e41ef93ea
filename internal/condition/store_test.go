package condition

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/yciu/futures-pipeline/internal/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "conditions.json"), nil)
}

func buyParams(trigger int64) Params {
	return Params{
		Action:          types.OperationBuy,
		TriggerPrice:    decimal.NewFromInt(trigger),
		TurningPoint:    50,
		Quantity:        1,
		TakeProfitPoint: 100,
		StopLossPoint:   50,
	}
}

func TestCreateAssignsIDAndDerivesPrices(t *testing.T) {
	s := newTestStore(t)

	cond, err := s.Create(buyParams(18000))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if cond.ID == "" {
		t.Error("expected a generated condition ID")
	}
	if cond.State != types.StateWaiting {
		t.Errorf("state = %v, want WAITING", cond.State)
	}
	if !cond.OrderPrice.Equal(decimal.NewFromInt(18050)) {
		t.Errorf("order price = %s, want 18050", cond.OrderPrice)
	}
}

func TestCreateRejectsInvalidCondition(t *testing.T) {
	s := newTestStore(t)

	p := buyParams(18000)
	p.Quantity = 0
	if _, err := s.Create(p); err == nil {
		t.Fatal("expected validation error")
	}

	conds, _ := s.GetAll()
	if len(conds) != 0 {
		t.Fatal("rejected condition must not be persisted")
	}
}

func TestGetUpdateDelete(t *testing.T) {
	s := newTestStore(t)

	cond, err := s.Create(buyParams(18000))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := s.Get(cond.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != cond.ID {
		t.Errorf("got %s, want %s", got.ID, cond.ID)
	}

	got.State = types.StateTriggered
	if err := s.Update(*got); err != nil {
		t.Fatalf("update: %v", err)
	}
	back, _ := s.Get(cond.ID)
	if back.State != types.StateTriggered {
		t.Errorf("state after update = %v", back.State)
	}

	if err := s.Delete(cond.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(cond.ID); err != types.ErrConditionNotFound {
		t.Errorf("get after delete: %v, want ErrConditionNotFound", err)
	}
}

func TestUpdateUnknownCondition(t *testing.T) {
	s := newTestStore(t)
	err := s.Update(types.Condition{ID: "missing"})
	if err != types.ErrConditionNotFound {
		t.Errorf("err = %v, want ErrConditionNotFound", err)
	}
}

func TestSearchByTriggerPrice(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Create(buyParams(18000)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.Create(buyParams(18000)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.Create(buyParams(17500)); err != nil {
		t.Fatalf("create: %v", err)
	}

	found, err := s.SearchByTriggerPrice(decimal.NewFromInt(18000))
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(found) != 2 {
		t.Errorf("found %d conditions, want 2", len(found))
	}
}

func TestDeleteAll(t *testing.T) {
	s := newTestStore(t)

	_, _ = s.Create(buyParams(18000))
	_, _ = s.Create(buyParams(18100))

	if err := s.DeleteAll(); err != nil {
		t.Fatalf("delete all: %v", err)
	}
	conds, _ := s.GetAll()
	if len(conds) != 0 {
		t.Errorf("conditions left: %d", len(conds))
	}
}

func TestPersistenceAcrossStores(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conditions.json")

	s1 := NewStore(path, nil)
	cond, err := s1.Create(buyParams(18000))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	s2 := NewStore(path, nil)
	got, err := s2.Get(cond.ID)
	if err != nil {
		t.Fatalf("get from second store: %v", err)
	}
	if !got.TriggerPrice.Equal(cond.TriggerPrice) {
		t.Errorf("trigger = %s, want %s", got.TriggerPrice, cond.TriggerPrice)
	}
}

func TestLoadSkipsMalformedRecords(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conditions.json")

	s1 := NewStore(path, nil)
	cond, err := s1.Create(buyParams(18000))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Splice a corrupt record into the array by hand.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	corrupted := append([]byte(`[{"action": 12345},`), data[1:]...)
	if err := os.WriteFile(path, corrupted, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	s2 := NewStore(path, nil)
	conds, err := s2.GetAll()
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	if len(conds) != 1 || conds[0].ID != cond.ID {
		t.Errorf("conditions = %+v, want just the valid record", conds)
	}
}
