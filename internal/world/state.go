package world

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"lukechampine.com/blake3"

	"github.com/stellardominion/engine/internal/component"
	"github.com/stellardominion/engine/internal/core/simerr"
)

// State aggregates the three domain managers. It is the context object handed
// to every system call; systems resolve ids through it and keep no pointers
// into it between calls.
// Accessed only from the game loop goroutine, no locks.
type State struct {
	Planets  *PlanetManager
	Ships    *ShipManager
	Factions *FactionManager
}

func NewState() *State {
	return &State{
		Planets:  NewPlanetManager(),
		Ships:    NewShipManager(),
		Factions: NewFactionManager(),
	}
}

// Sequences are the next ids each manager will hand out.
type Sequences struct {
	NextPlanet  component.PlanetID  `json:"next_planet"`
	NextShip    component.ShipID    `json:"next_ship"`
	NextFaction component.FactionID `json:"next_faction"`
}

// Records is the full relational content of a State, each slice in id order.
type Records struct {
	Planets   []component.Planet  `json:"planets"`
	Ships     []component.Ship    `json:"ships"`
	Factions  []component.Faction `json:"factions"`
	Sequences Sequences           `json:"sequences"`
}

// Snapshot copies the state out.
func (s *State) Snapshot() Records {
	return Records{
		Planets:  s.Planets.All(),
		Ships:    s.Ships.All(),
		Factions: s.Factions.All(),
		Sequences: Sequences{
			NextPlanet:  s.Planets.NextID(),
			NextShip:    s.Ships.NextID(),
			NextFaction: s.Factions.NextID(),
		},
	}
}

// ValidateRecords checks every record and that every controller and owner
// resolves to a faction in the same set.
func ValidateRecords(r *Records) error {
	if err := validateFactions(r.Factions); err != nil {
		return err
	}
	if err := validatePlanets(r.Planets); err != nil {
		return err
	}
	if err := validateShips(r.Ships); err != nil {
		return err
	}
	factions := make(map[component.FactionID]struct{}, len(r.Factions))
	for _, f := range r.Factions {
		factions[f.ID] = struct{}{}
	}
	for i := range r.Planets {
		c := r.Planets[i].Controller
		if _, ok := factions[c.ID]; c.Valid && !ok {
			return fmt.Errorf("planet %d controller %d unresolved: %w", r.Planets[i].ID, c.ID, simerr.ErrValidation)
		}
	}
	for i := range r.Ships {
		if _, ok := factions[r.Ships[i].Owner]; !ok {
			return fmt.Errorf("ship %d owner %d unresolved: %w", r.Ships[i].ID, r.Ships[i].Owner, simerr.ErrValidation)
		}
	}
	return nil
}

// Restore replaces all three managers with r. Validation covers every record
// before any manager is touched, so a rejected snapshot leaves the state as
// it was.
func (s *State) Restore(r Records) error {
	if err := ValidateRecords(&r); err != nil {
		return err
	}
	s.Factions.replace(r.Factions, r.Sequences.NextFaction)
	s.Planets.replace(r.Planets, r.Sequences.NextPlanet)
	s.Ships.replace(r.Ships, r.Sequences.NextShip)
	return nil
}

// SpawnShip creates a ship for an existing faction.
func (s *State) SpawnShip(class component.ShipClass, pos component.Vector2, owner component.FactionID) (component.ShipID, error) {
	if !s.Factions.Has(owner) {
		return 0, fmt.Errorf("ship owner faction %d: %w", owner, simerr.ErrNotFound)
	}
	return s.Ships.Create(class, pos, owner)
}

// Digest hashes the canonical encoding of the state together with tick. Two
// runs fed the same commands produce the same digest.
func (s *State) Digest(tick uint64) [32]byte {
	h := blake3.New(32, nil)
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], tick)
	h.Write(buf[:])
	// Encoding plain structs of numbers and strings cannot fail.
	_ = json.NewEncoder(h).Encode(s.Snapshot())
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
