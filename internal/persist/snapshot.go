package persist

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/stellardominion/engine/internal/component"
	"github.com/stellardominion/engine/internal/core/simerr"
	"github.com/stellardominion/engine/internal/world"
)

// FormatVersion is the snapshot layout version written by this build.
// Version 1 snapshots carry no Pending section.
const FormatVersion = 2

// SaveData is one persisted snapshot: metadata plus the full relational
// content of the world.
type SaveData struct {
	Version int       `json:"version"`
	Slot    string    `json:"slot"`
	SaveID  uuid.UUID `json:"save_id"`
	SavedAt time.Time `json:"saved_at"`
	Tick    uint64    `json:"tick"`
	Pending Pending   `json:"pending"`
	world.Records
}

// Pending is the state the systems own outside the world: cycles observed
// but not yet processed, paid-for orders, unresolved engagements and the
// clock settings. Restoring it makes a loaded game step exactly like the
// game that saved it.
type Pending struct {
	ProductionCycles int                    `json:"production_cycles"`
	GrowthCycles     int                    `json:"growth_cycles"`
	WindowChecks     int                    `json:"window_checks"`
	Builds           []component.BuildOrder `json:"builds,omitempty"`
	Hulls            []component.ShipOrder  `json:"hulls,omitempty"`
	Battles          []component.Battle     `json:"battles,omitempty"`
	Landings         []component.Landing    `json:"landings,omitempty"`
	Paused           bool                   `json:"paused"`
	Speed            float32                `json:"speed"`
}

// NewSaveData stamps a fresh snapshot.
func NewSaveData(slot string, tick uint64, rec world.Records, pending Pending, now time.Time) *SaveData {
	return &SaveData{
		Version: FormatVersion,
		Slot:    slot,
		SaveID:  uuid.New(),
		SavedAt: now.UTC(),
		Tick:    tick,
		Pending: pending,
		Records: rec,
	}
}

// Validate rejects snapshots this build cannot restore: unknown versions,
// broken invariants and references that do not resolve.
func (d *SaveData) Validate() error {
	if d.Version < 1 || d.Version > FormatVersion {
		return fmt.Errorf("snapshot version %d unsupported: %w", d.Version, simerr.ErrSerialization)
	}
	if err := ValidateSlot(d.Slot); err != nil {
		return err
	}
	if err := world.ValidateRecords(&d.Records); err != nil {
		return fmt.Errorf("snapshot %q: %w: %w", d.Slot, simerr.ErrSerialization, err)
	}
	if err := d.Pending.validate(&d.Records); err != nil {
		return fmt.Errorf("snapshot %q pending: %w", d.Slot, err)
	}
	return nil
}

func (p *Pending) validate(r *world.Records) error {
	if p.ProductionCycles < 0 || p.GrowthCycles < 0 || p.WindowChecks < 0 {
		return fmt.Errorf("negative cycle count: %w", simerr.ErrSerialization)
	}
	if sp := float64(p.Speed); math.IsNaN(sp) || math.IsInf(sp, 0) || sp < 0 {
		return fmt.Errorf("speed %v: %w", p.Speed, simerr.ErrSerialization)
	}
	planets := make(map[component.PlanetID]struct{}, len(r.Planets))
	for i := range r.Planets {
		planets[r.Planets[i].ID] = struct{}{}
	}
	ships := make(map[component.ShipID]struct{}, len(r.Ships))
	for i := range r.Ships {
		ships[r.Ships[i].ID] = struct{}{}
	}
	planet := func(id component.PlanetID) error {
		if _, ok := planets[id]; !ok {
			return fmt.Errorf("planet %d unresolved: %w", id, simerr.ErrSerialization)
		}
		return nil
	}
	ship := func(id component.ShipID) error {
		if _, ok := ships[id]; !ok {
			return fmt.Errorf("ship %d unresolved: %w", id, simerr.ErrSerialization)
		}
		return nil
	}
	for _, o := range p.Builds {
		if err := planet(o.Planet); err != nil {
			return err
		}
	}
	for _, o := range p.Hulls {
		if err := planet(o.Planet); err != nil {
			return err
		}
	}
	for _, b := range p.Battles {
		if err := ship(b.Attacker); err != nil {
			return err
		}
		if err := ship(b.Defender); err != nil {
			return err
		}
	}
	for _, l := range p.Landings {
		if err := ship(l.Ship); err != nil {
			return err
		}
		if err := planet(l.Planet); err != nil {
			return err
		}
	}
	return nil
}

// SlotInfo describes a stored snapshot without loading it.
type SlotInfo struct {
	Slot    string    `db:"slot"`
	SaveID  string    `db:"save_id"`
	Tick    uint64    `db:"tick"`
	SavedAt time.Time `db:"-"`
}

// Store persists snapshots by slot name. Saving to an existing slot
// replaces it.
type Store interface {
	Save(ctx context.Context, d *SaveData) error
	// Load returns simerr.ErrNotFound for an unknown slot.
	Load(ctx context.Context, slot string) (*SaveData, error)
	// List returns every slot, most recent first.
	List(ctx context.Context) ([]SlotInfo, error)
	Delete(ctx context.Context, slot string) error
	Close() error
}

var slotPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidateSlot accepts 1 to 64 letters, digits, dashes or underscores, which
// keeps slot names safe as file names.
func ValidateSlot(slot string) error {
	if !slotPattern.MatchString(slot) {
		return fmt.Errorf("save slot %q: %w", slot, simerr.ErrValidation)
	}
	return nil
}
