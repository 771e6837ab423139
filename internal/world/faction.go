package world

import (
	"fmt"

	"github.com/stellardominion/engine/internal/component"
	"github.com/stellardominion/engine/internal/core/simerr"
	"github.com/stellardominion/engine/internal/core/store"
)

type FactionManager struct {
	factions *store.Ordered[component.FactionID, component.Faction]
	seq      store.Sequence[component.FactionID]
}

func NewFactionManager() *FactionManager {
	return &FactionManager{factions: store.NewOrdered[component.FactionID, component.Faction]()}
}

func (m *FactionManager) Create(name string, isPlayer bool, p component.Personality) (component.FactionID, error) {
	id, err := m.seq.Next()
	if err != nil {
		return 0, fmt.Errorf("new faction %q: %w", name, err)
	}
	m.factions.Set(id, &component.Faction{ID: id, Name: name, IsPlayer: isPlayer, Personality: p})
	return id, nil
}

func (m *FactionManager) Get(id component.FactionID) (component.Faction, error) {
	f, ok := m.factions.Get(id)
	if !ok {
		return component.Faction{}, fmt.Errorf("faction %d: %w", id, simerr.ErrNotFound)
	}
	return *f, nil
}

func (m *FactionManager) All() []component.Faction {
	out := make([]component.Faction, 0, m.factions.Len())
	m.factions.Each(func(_ component.FactionID, f *component.Faction) {
		out = append(out, *f)
	})
	return out
}

// Player returns the human-controlled faction, if any.
func (m *FactionManager) Player() (component.Faction, bool) {
	for _, id := range m.factions.Keys() {
		f, _ := m.factions.Get(id)
		if f.IsPlayer {
			return *f, true
		}
	}
	return component.Faction{}, false
}

func (m *FactionManager) Has(id component.FactionID) bool { return m.factions.Has(id) }
func (m *FactionManager) Len() int                        { return m.factions.Len() }
func (m *FactionManager) NextID() component.FactionID     { return m.seq.Peek() }

// Load replaces every faction with records, keeping their ids.
func (m *FactionManager) Load(records []component.Faction, next component.FactionID) error {
	if err := validateFactions(records); err != nil {
		return err
	}
	m.replace(records, next)
	return nil
}

func validateFactions(records []component.Faction) error {
	seen := make(map[component.FactionID]struct{}, len(records))
	for _, f := range records {
		if _, dup := seen[f.ID]; dup {
			return fmt.Errorf("duplicate faction id %d: %w", f.ID, simerr.ErrValidation)
		}
		seen[f.ID] = struct{}{}
	}
	return nil
}

func (m *FactionManager) replace(records []component.Faction, next component.FactionID) {
	m.factions.Reset()
	live := make([]component.FactionID, 0, len(records))
	for i := range records {
		f := records[i]
		m.factions.Set(f.ID, &f)
		live = append(live, f.ID)
	}
	m.seq.Reset(next, live)
}
