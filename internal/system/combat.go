package system

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/stellardominion/engine/internal/component"
	"github.com/stellardominion/engine/internal/core/event"
	"github.com/stellardominion/engine/internal/core/simerr"
	coresys "github.com/stellardominion/engine/internal/core/system"
	"github.com/stellardominion/engine/internal/data"
	"github.com/stellardominion/engine/internal/world"
)

// StrengthScript lets a script adjust a ship's base combat strength.
type StrengthScript interface {
	ShipStrength(class string, base float64) (float64, bool)
}

// ColonySettlers is the population a colony ship lands.
const ColonySettlers = 100

type (
	Battle  = component.Battle
	Landing = component.Landing
)

// CombatSystem resolves ship-to-ship battles and planetary landings one tick
// after they start. Phase 5 (Combat).
type CombatSystem struct {
	ships  *data.ShipTable
	econ   *data.Economy
	script StrengthScript
	log    *zap.Logger

	tick     uint64
	battles  []Battle
	landings []Landing
}

// NewCombatSystem creates the system. script may be nil, in which case the
// ship table strength is used as is.
func NewCombatSystem(ships *data.ShipTable, econ *data.Economy, script StrengthScript, log *zap.Logger) *CombatSystem {
	return &CombatSystem{ships: ships, econ: econ, script: script, log: log}
}

func (s *CombatSystem) ID() event.SystemID   { return event.SystemCombat }
func (s *CombatSystem) Phase() coresys.Phase { return coresys.PhaseCombat }

func (s *CombatSystem) HandleEvent(w *world.State, ev event.Event) error {
	switch e := ev.(type) {
	case event.TickCompleted:
		s.tick = e.Tick
	case event.AttackTarget:
		return s.Engage(w, e.Attacker, e.Target)
	case event.ColonizePlanet:
		return s.Land(w, e.Ship, e.Planet)
	}
	return nil
}

// Land starts a landing. A colony ship settles a neutral planet; a warship
// takes a hostile planet that has no operational defense platform and no
// ship of its holder docked. The checks run again when the landing resolves.
func (s *CombatSystem) Land(w *world.State, ship component.ShipID, planet component.PlanetID) error {
	for _, l := range s.landings {
		if l.Ship == ship {
			return fmt.Errorf("ship %d is already landing: %w", ship, simerr.ErrValidation)
		}
	}
	if _, err := s.conquest(w, ship, planet); err != nil {
		return err
	}
	s.landings = append(s.landings, Landing{Ship: ship, Planet: planet, Start: s.tick})
	return nil
}

// conquest checks a landing and returns the event it would produce.
func (s *CombatSystem) conquest(w *world.State, ship component.ShipID, planet component.PlanetID) (event.PlanetConquered, error) {
	sh, pl, err := docked(w, ship, planet, s.tick)
	if err != nil {
		return event.PlanetConquered{}, err
	}
	if pl.Controller.Is(sh.Owner) {
		return event.PlanetConquered{}, fmt.Errorf("planet %d already belongs to faction %d: %w", planet, sh.Owner, simerr.ErrValidation)
	}
	ev := event.PlanetConquered{Planet: planet, NewOwner: sh.Owner, Ship: ship}
	switch sh.Class {
	case component.Colony:
		if pl.Controller.Valid {
			return ev, fmt.Errorf("colony ship %d cannot settle planet %d held by %s: %w", ship, planet, pl.Controller, simerr.ErrValidation)
		}
		ev.Settlers = ColonySettlers
	case component.Warship:
		if !pl.Controller.Valid {
			return ev, fmt.Errorf("planet %d is neutral, settle it with a colony ship: %w", planet, simerr.ErrValidation)
		}
		for _, b := range pl.Buildings {
			if b.Type == component.DefensePlatform && b.Operational {
				return ev, fmt.Errorf("planet %d is protected by a defense platform: %w", planet, simerr.ErrValidation)
			}
		}
		pos := OrbitalPosition(pl.Orbit, s.tick)
		for _, d := range w.Ships.ByOwner(pl.Controller.ID) {
			if !d.InFlight() && d.Position.DistanceTo(pos) <= DockingRange {
				return ev, fmt.Errorf("planet %d is guarded by ship %d: %w", planet, d.ID, simerr.ErrValidation)
			}
		}
	default:
		return ev, fmt.Errorf("ship %d (%s) cannot land on planet %d: %w", ship, sh.Class, planet, simerr.ErrValidation)
	}
	return ev, nil
}

// Engage starts a battle between two ships of different factions. A ship
// fights one battle at a time.
func (s *CombatSystem) Engage(w *world.State, attacker, defender component.ShipID) error {
	if attacker == defender {
		return fmt.Errorf("ship %d cannot attack itself: %w", attacker, simerr.ErrValidation)
	}
	a, err := w.Ships.Get(attacker)
	if err != nil {
		return err
	}
	d, err := w.Ships.Get(defender)
	if err != nil {
		return err
	}
	if a.Owner == d.Owner {
		return fmt.Errorf("ships %d and %d share faction %d: %w", attacker, defender, a.Owner, simerr.ErrValidation)
	}
	for _, id := range [2]component.ShipID{attacker, defender} {
		if s.engaged(id) {
			return fmt.Errorf("ship %d is already in combat: %w", id, simerr.ErrValidation)
		}
	}
	s.battles = append(s.battles, Battle{Attacker: attacker, Defender: defender, Start: s.tick})
	return nil
}

func (s *CombatSystem) engaged(id component.ShipID) bool {
	for _, b := range s.battles {
		if b.Attacker == id || b.Defender == id {
			return true
		}
	}
	return false
}

// Update resolves every battle started before the current tick.
func (s *CombatSystem) Update(w *world.State, _ time.Duration, bus *event.Bus) error {
	var first error
	keep := s.battles[:0]
	for _, b := range s.battles {
		if b.Start >= s.tick {
			keep = append(keep, b)
			continue
		}
		res, err := s.resolve(w, b)
		if err != nil {
			first = keepFirst(first, err)
			continue
		}
		s.log.Debug("戰鬥結算",
			zap.Uint32("attacker", uint32(res.Attacker)),
			zap.Uint32("defender", uint32(res.Defender)),
			zap.Uint32("destroyed", uint32(res.Destroyed)))
		bus.Queue(res)
	}
	s.battles = keep

	landings := s.landings[:0]
	for _, l := range s.landings {
		if l.Start >= s.tick {
			landings = append(landings, l)
			continue
		}
		ev, err := s.conquest(w, l.Ship, l.Planet)
		if err != nil {
			s.log.Warn("登陸失敗", zap.Uint32("ship", uint32(l.Ship)), zap.Uint32("planet", uint32(l.Planet)), zap.Error(err))
			first = keepFirst(first, err)
			continue
		}
		s.log.Debug("星球易主",
			zap.Uint32("planet", uint32(ev.Planet)),
			zap.Uint32("owner", uint32(ev.NewOwner)),
			zap.Int32("settlers", ev.Settlers))
		bus.Queue(ev)
	}
	s.landings = landings
	return first
}

func (s *CombatSystem) resolve(w *world.State, b Battle) (event.CombatResolved, error) {
	a, err := w.Ships.Get(b.Attacker)
	if err != nil {
		return event.CombatResolved{}, err
	}
	d, err := w.Ships.Get(b.Defender)
	if err != nil {
		return event.CombatResolved{}, err
	}
	as, err := s.Strength(w, &a)
	if err != nil {
		return event.CombatResolved{}, err
	}
	ds, err := s.Strength(w, &d)
	if err != nil {
		return event.CombatResolved{}, err
	}

	winner, loser := a, d
	if ds > as || (ds == as && d.ID < a.ID) {
		winner, loser = d, a
	}
	return event.CombatResolved{
		Attacker:  b.Attacker,
		Defender:  b.Defender,
		Winner:    winner.Owner,
		Destroyed: loser.ID,
	}, nil
}

// Strength is the class strength, adjusted by the script hook and scaled by
// the owner's personality.
func (s *CombatSystem) Strength(w *world.State, ship *component.Ship) (float64, error) {
	info := s.ships.Get(ship.Class)
	if info == nil {
		return 0, fmt.Errorf("ship %d class %s: %w", ship.ID, ship.Class, simerr.ErrNotFound)
	}
	base := info.Strength
	if s.script != nil {
		base, _ = s.script.ShipStrength(ship.Class.String(), base)
	}
	f, err := w.Factions.Get(ship.Owner)
	if err != nil {
		return 0, err
	}
	return base * s.econ.PersonalityStrength(f.Personality), nil
}

// Battles returns the unresolved battles.
func (s *CombatSystem) Battles() []Battle { return append([]Battle(nil), s.battles...) }

// Landings returns the unresolved landings.
func (s *CombatSystem) Landings() []Landing { return append([]Landing(nil), s.landings...) }

// Restore replaces the unresolved battles and landings and moves to tick
// (after a load).
func (s *CombatSystem) Restore(tick uint64, battles []Battle, landings []Landing) {
	s.tick = tick
	s.battles = append([]Battle(nil), battles...)
	s.landings = append([]Landing(nil), landings...)
}
