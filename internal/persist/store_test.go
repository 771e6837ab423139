package persist

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/stellardominion/engine/internal/component"
	"github.com/stellardominion/engine/internal/config"
	"github.com/stellardominion/engine/internal/core/simerr"
	"github.com/stellardominion/engine/internal/data"
	"github.com/stellardominion/engine/internal/world"
)

func sampleSave(t *testing.T, slot string, tick uint64, at time.Time) *SaveData {
	t.Helper()
	sc, err := data.LoadScenario("")
	if err != nil {
		t.Fatal(err)
	}
	s, err := world.Generate(sc)
	if err != nil {
		t.Fatal(err)
	}
	// Put a ship in flight and a building down so every column is exercised.
	if err := s.Ships.SetTrajectory(0, component.Trajectory{
		Origin: component.Vector2{X: 1}, Destination: component.Vector2{X: 4, Y: 4},
		DepartureTick: tick, ArrivalTick: tick + 3, FuelCost: 0.05,
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.Planets.AddBuilding(0, component.Farm); err != nil {
		t.Fatal(err)
	}
	if err := s.Ships.ConsumeFuel(0, 12.5); err != nil {
		t.Fatal(err)
	}
	hauler, err := s.SpawnShip(component.Transport, component.Vector2{X: 2}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Ships.LoadCargo(hauler, component.ResourceBundle{Minerals: 40, Food: 5}); err != nil {
		t.Fatal(err)
	}
	pending := Pending{
		ProductionCycles: 1,
		GrowthCycles:     2,
		WindowChecks:     1,
		Builds:           []component.BuildOrder{{Planet: 0, Building: component.Mine, Start: tick, Complete: tick + 50}},
		Hulls:            []component.ShipOrder{{Planet: 0, Class: component.Warship, Start: tick, Complete: tick + 80}},
		Battles:          []component.Battle{{Attacker: 1, Defender: 0, Start: tick}},
		Landings:         []component.Landing{{Ship: hauler, Planet: 1, Start: tick}},
		Paused:           true,
		Speed:            2,
	}
	return NewSaveData(slot, tick, s.Snapshot(), pending, at)
}

func assertSameSave(t *testing.T, got, want *SaveData) {
	t.Helper()
	if got.Slot != want.Slot || got.Tick != want.Tick || got.SaveID != want.SaveID || got.Version != want.Version {
		t.Fatalf("metadata = %+v, want %+v", got, want)
	}
	if !got.SavedAt.Equal(want.SavedAt) {
		t.Errorf("saved at = %s, want %s", got.SavedAt, want.SavedAt)
	}
	if !reflect.DeepEqual(got.Pending, want.Pending) {
		t.Errorf("pending = %+v, want %+v", got.Pending, want.Pending)
	}
	if err := got.Validate(); err != nil {
		t.Fatalf("loaded snapshot invalid: %v", err)
	}
	a, b := world.NewState(), world.NewState()
	if err := a.Restore(got.Records); err != nil {
		t.Fatal(err)
	}
	if err := b.Restore(want.Records); err != nil {
		t.Fatal(err)
	}
	if a.Digest(got.Tick) != b.Digest(want.Tick) {
		t.Errorf("records differ after round trip")
	}
}

// exerciseStore runs the shared contract every Store must satisfy.
func exerciseStore(t *testing.T, st Store) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if _, err := st.Load(ctx, "missing"); !errors.Is(err, simerr.ErrNotFound) {
		t.Fatalf("missing slot err = %v", err)
	}

	first := sampleSave(t, "alpha", 10, base)
	second := sampleSave(t, "beta", 20, base.Add(time.Minute))
	for _, d := range []*SaveData{first, second} {
		if err := st.Save(ctx, d); err != nil {
			t.Fatalf("save %s: %v", d.Slot, err)
		}
	}

	got, err := st.Load(ctx, "alpha")
	if err != nil {
		t.Fatal(err)
	}
	assertSameSave(t, got, first)

	list, err := st.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].Slot != "beta" || list[1].Slot != "alpha" {
		t.Fatalf("list = %+v, want beta then alpha", list)
	}

	// Overwrite keeps one row per slot.
	again := sampleSave(t, "alpha", 30, base.Add(2*time.Minute))
	if err := st.Save(ctx, again); err != nil {
		t.Fatal(err)
	}
	got, err = st.Load(ctx, "alpha")
	if err != nil {
		t.Fatal(err)
	}
	assertSameSave(t, got, again)

	if err := st.Delete(ctx, "beta"); err != nil {
		t.Fatal(err)
	}
	if err := st.Delete(ctx, "beta"); !errors.Is(err, simerr.ErrNotFound) {
		t.Errorf("second delete err = %v", err)
	}
	if list, _ := st.List(ctx); len(list) != 1 {
		t.Errorf("after delete list = %+v", list)
	}

	if err := st.Save(ctx, &SaveData{Slot: "../escape"}); !errors.Is(err, simerr.ErrValidation) {
		t.Errorf("bad slot err = %v", err)
	}
}

func TestFileStore(t *testing.T) {
	t.Parallel()
	st, err := NewFileStore(t.TempDir(), zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	exerciseStore(t, st)
}

func TestFileStoreDetectsCorruption(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	st, err := NewFileStore(dir, zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := st.Save(ctx, sampleSave(t, "quicksave", 1, time.Now())); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "quicksave"+fileExt)
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	raw[len(raw)-1] ^= 0xff
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := st.Load(ctx, "quicksave"); !errors.Is(err, simerr.ErrSerialization) {
		t.Fatalf("corrupt file err = %v, want ErrSerialization", err)
	}
	if list, err := st.List(ctx); err != nil || len(list) != 0 {
		t.Errorf("corrupt file must be skipped by List: %v %v", list, err)
	}
}

func TestSQLiteStore(t *testing.T) {
	t.Parallel()
	st, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "saves.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	exerciseStore(t, st)
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("STELLAR_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("STELLAR_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	st, err := OpenPostgres(ctx, config.PostgresConfig{DSN: dsn, MaxOpenConns: 2, MaxIdleConns: 1, ConnMaxLifetime: time.Minute}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	for _, slot := range []string{"alpha", "beta"} {
		_ = st.Delete(ctx, slot)
	}
	exerciseStore(t, st)
}

func TestValidateRejectsUnknownVersion(t *testing.T) {
	t.Parallel()
	d := sampleSave(t, "quicksave", 1, time.Now())
	d.Version = FormatVersion + 1
	if err := d.Validate(); !errors.Is(err, simerr.ErrSerialization) {
		t.Fatalf("err = %v", err)
	}
	d.Version = FormatVersion
	d.Ships[0].Owner = 77
	if err := d.Validate(); !errors.Is(err, simerr.ErrSerialization) {
		t.Fatalf("dangling owner err = %v", err)
	}
}

func TestValidatePendingReferences(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mutate func(*Pending)
	}{
		{"landing ship", func(p *Pending) { p.Landings[0].Ship = 99 }},
		{"landing planet", func(p *Pending) { p.Landings[0].Planet = 99 }},
		{"battle defender", func(p *Pending) { p.Battles[0].Defender = 99 }},
		{"hull planet", func(p *Pending) { p.Hulls[0].Planet = 99 }},
		{"window checks", func(p *Pending) { p.WindowChecks = -1 }},
		{"speed", func(p *Pending) { p.Speed = float32(math.NaN()) }},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d := sampleSave(t, "quicksave", 1, time.Now())
			if err := d.Validate(); err != nil {
				t.Fatalf("sample invalid: %v", err)
			}
			tt.mutate(&d.Pending)
			if err := d.Validate(); !errors.Is(err, simerr.ErrSerialization) {
				t.Fatalf("err = %v, want ErrSerialization", err)
			}
		})
	}
}
