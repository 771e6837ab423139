package persist

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/stellardominion/engine/internal/component"
	"github.com/stellardominion/engine/internal/core/simerr"
	"github.com/stellardominion/engine/internal/world"
)

// sqlStore maps snapshots onto relational tables keyed by slot. Planets keep
// their controller as a nullable column and ships their owner as a plain
// column, so the relations survive as relations. It is shared by the SQLite
// and Postgres stores; queries are written with ? and rebound per driver.
type sqlStore struct {
	db *sqlx.DB
}

type saveRow struct {
	Slot        string `db:"slot"`
	SaveID      string `db:"save_id"`
	Version     int    `db:"version"`
	Tick        uint64 `db:"tick"`
	SavedAt     int64  `db:"saved_at"`
	NextPlanet  uint32 `db:"next_planet"`
	NextShip    uint32 `db:"next_ship"`
	NextFaction uint32 `db:"next_faction"`
	Pending     string `db:"pending"`
}

type factionRow struct {
	ID          component.FactionID `db:"id"`
	Name        string              `db:"name"`
	IsPlayer    bool                `db:"is_player"`
	Personality string              `db:"personality"`
}

type planetRow struct {
	ID            component.PlanetID      `db:"id"`
	Controller    component.NullFactionID `db:"controller"`
	SemiMajorAxis float64                 `db:"semi_major_axis"`
	Period        float64                 `db:"period"`
	Phase         float64                 `db:"phase"`
	Population    int32                   `db:"population"`
	Resources     string                  `db:"resources"`
	Capacity      string                  `db:"capacity"`
	Workers       string                  `db:"workers"`
	Buildings     string                  `db:"buildings"`
}

type shipRow struct {
	ID         component.ShipID    `db:"id"`
	Class      string              `db:"class"`
	Owner      component.FactionID `db:"owner"`
	PosX       float64             `db:"pos_x"`
	PosY       float64             `db:"pos_y"`
	Trajectory sql.NullString      `db:"trajectory"`
	Fuel       float64             `db:"fuel"`
	Cargo      string              `db:"cargo"`
}

var childTables = [...]string{"save_ships", "save_planets", "save_factions"}

func (s *sqlStore) Save(ctx context.Context, d *SaveData) error {
	if err := ValidateSlot(d.Slot); err != nil {
		return err
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return ioErr("begin save", err)
	}
	defer tx.Rollback()

	if err := deleteSlot(ctx, tx, d.Slot); err != nil {
		return err
	}

	pending, err := json.Marshal(d.Pending)
	if err != nil {
		return fmt.Errorf("encode pending: %w: %w", simerr.ErrSerialization, err)
	}
	_, err = tx.ExecContext(ctx, tx.Rebind(`INSERT INTO saves
		(slot, save_id, version, tick, saved_at, next_planet, next_ship, next_faction, pending)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		d.Slot, d.SaveID.String(), d.Version, d.Tick, d.SavedAt.UnixNano(),
		uint32(d.Sequences.NextPlanet), uint32(d.Sequences.NextShip), uint32(d.Sequences.NextFaction),
		string(pending))
	if err != nil {
		return ioErr("insert save", err)
	}

	for _, f := range d.Factions {
		_, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO save_factions
			(slot, id, name, is_player, personality) VALUES (?, ?, ?, ?, ?)`),
			d.Slot, uint32(f.ID), f.Name, f.IsPlayer, f.Personality.String())
		if err != nil {
			return ioErr("insert faction", err)
		}
	}

	for i := range d.Planets {
		p := &d.Planets[i]
		res, _ := json.Marshal(p.Resources)
		capa, _ := json.Marshal(p.Capacity)
		workers, _ := json.Marshal(p.Workers)
		buildings, _ := json.Marshal(p.Buildings)
		_, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO save_planets
			(slot, id, controller, semi_major_axis, period, phase, population,
			 resources, capacity, workers, buildings)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			d.Slot, uint32(p.ID), p.Controller, p.Orbit.SemiMajorAxis, p.Orbit.Period, p.Orbit.Phase,
			p.Population, string(res), string(capa), string(workers), string(buildings))
		if err != nil {
			return ioErr("insert planet", err)
		}
	}

	for i := range d.Ships {
		sh := &d.Ships[i]
		var traj sql.NullString
		if sh.Trajectory != nil {
			raw, _ := json.Marshal(sh.Trajectory)
			traj = sql.NullString{String: string(raw), Valid: true}
		}
		cargo, _ := json.Marshal(sh.Cargo)
		_, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO save_ships
			(slot, id, class, owner, pos_x, pos_y, trajectory, fuel, cargo)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			d.Slot, uint32(sh.ID), sh.Class.String(), uint32(sh.Owner), sh.Position.X, sh.Position.Y, traj,
			sh.Fuel, string(cargo))
		if err != nil {
			return ioErr("insert ship", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return ioErr("commit save", err)
	}
	return nil
}

func deleteSlot(ctx context.Context, tx *sqlx.Tx, slot string) error {
	for _, table := range childTables {
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM `+table+` WHERE slot = ?`), slot); err != nil {
			return ioErr("clear "+table, err)
		}
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM saves WHERE slot = ?`), slot); err != nil {
		return ioErr("clear saves", err)
	}
	return nil
}

func (s *sqlStore) Load(ctx context.Context, slot string) (*SaveData, error) {
	if err := ValidateSlot(slot); err != nil {
		return nil, err
	}
	var head saveRow
	err := s.db.GetContext(ctx, &head, s.db.Rebind(`SELECT slot, save_id, version, tick, saved_at,
		next_planet, next_ship, next_faction, pending FROM saves WHERE slot = ?`), slot)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("save %q: %w", slot, simerr.ErrNotFound)
	}
	if err != nil {
		return nil, ioErr("load save", err)
	}

	id, err := uuid.Parse(head.SaveID)
	if err != nil {
		return nil, fmt.Errorf("save %q id: %w: %w", slot, simerr.ErrSerialization, err)
	}
	d := &SaveData{
		Version: head.Version,
		Slot:    head.Slot,
		SaveID:  id,
		SavedAt: time.Unix(0, head.SavedAt).UTC(),
		Tick:    head.Tick,
		Records: world.Records{Sequences: world.Sequences{
			NextPlanet:  component.PlanetID(head.NextPlanet),
			NextShip:    component.ShipID(head.NextShip),
			NextFaction: component.FactionID(head.NextFaction),
		}},
	}
	if err := unmarshalColumns(column{head.Pending, &d.Pending}); err != nil {
		return nil, fmt.Errorf("save %q pending: %w", slot, err)
	}

	var factions []factionRow
	if err := s.db.SelectContext(ctx, &factions, s.db.Rebind(`SELECT id, name, is_player, personality
		FROM save_factions WHERE slot = ? ORDER BY id`), slot); err != nil {
		return nil, ioErr("load factions", err)
	}
	for _, r := range factions {
		p, err := component.ParsePersonality(r.Personality)
		if err != nil {
			return nil, fmt.Errorf("faction %d: %w: %w", r.ID, simerr.ErrSerialization, err)
		}
		d.Factions = append(d.Factions, component.Faction{ID: r.ID, Name: r.Name, IsPlayer: r.IsPlayer, Personality: p})
	}

	var planets []planetRow
	if err := s.db.SelectContext(ctx, &planets, s.db.Rebind(`SELECT id, controller, semi_major_axis,
		period, phase, population, resources, capacity, workers, buildings
		FROM save_planets WHERE slot = ? ORDER BY id`), slot); err != nil {
		return nil, ioErr("load planets", err)
	}
	for _, r := range planets {
		p := component.Planet{
			ID:         r.ID,
			Controller: r.Controller,
			Orbit:      component.OrbitalElements{SemiMajorAxis: r.SemiMajorAxis, Period: r.Period, Phase: r.Phase},
			Population: r.Population,
		}
		if err := unmarshalColumns(
			column{r.Resources, &p.Resources},
			column{r.Capacity, &p.Capacity},
			column{r.Workers, &p.Workers},
			column{r.Buildings, &p.Buildings},
		); err != nil {
			return nil, fmt.Errorf("planet %d: %w", r.ID, err)
		}
		d.Planets = append(d.Planets, p)
	}

	var ships []shipRow
	if err := s.db.SelectContext(ctx, &ships, s.db.Rebind(`SELECT id, class, owner, pos_x, pos_y, trajectory,
		fuel, cargo FROM save_ships WHERE slot = ? ORDER BY id`), slot); err != nil {
		return nil, ioErr("load ships", err)
	}
	for _, r := range ships {
		class, err := component.ParseShipClass(r.Class)
		if err != nil {
			return nil, fmt.Errorf("ship %d: %w: %w", r.ID, simerr.ErrSerialization, err)
		}
		sh := component.Ship{ID: r.ID, Class: class, Owner: r.Owner, Position: component.Vector2{X: r.PosX, Y: r.PosY}, Fuel: r.Fuel}
		if err := unmarshalColumns(column{r.Cargo, &sh.Cargo}); err != nil {
			return nil, fmt.Errorf("ship %d: %w", r.ID, err)
		}
		if r.Trajectory.Valid {
			sh.Trajectory = new(component.Trajectory)
			if err := unmarshalColumns(column{r.Trajectory.String, sh.Trajectory}); err != nil {
				return nil, fmt.Errorf("ship %d: %w", r.ID, err)
			}
		}
		d.Ships = append(d.Ships, sh)
	}
	return d, nil
}

func (s *sqlStore) List(ctx context.Context) ([]SlotInfo, error) {
	var rows []saveRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT slot, save_id, version, tick, saved_at,
		next_planet, next_ship, next_faction FROM saves`); err != nil {
		return nil, ioErr("list saves", err)
	}
	out := make([]SlotInfo, 0, len(rows))
	for _, r := range rows {
		out = append(out, SlotInfo{Slot: r.Slot, SaveID: r.SaveID, Tick: r.Tick, SavedAt: time.Unix(0, r.SavedAt).UTC()})
	}
	sortByRecency(out)
	return out, nil
}

func (s *sqlStore) Delete(ctx context.Context, slot string) error {
	if err := ValidateSlot(slot); err != nil {
		return err
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return ioErr("begin delete", err)
	}
	defer tx.Rollback()
	var n int
	if err := tx.GetContext(ctx, &n, tx.Rebind(`SELECT COUNT(*) FROM saves WHERE slot = ?`), slot); err != nil {
		return ioErr("find save", err)
	}
	if n == 0 {
		return fmt.Errorf("save %q: %w", slot, simerr.ErrNotFound)
	}
	if err := deleteSlot(ctx, tx, slot); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return ioErr("commit delete", err)
	}
	return nil
}

type column struct {
	raw string
	dst any
}

func unmarshalColumns(cols ...column) error {
	for _, c := range cols {
		if err := json.Unmarshal([]byte(c.raw), c.dst); err != nil {
			return fmt.Errorf("%w: %w", simerr.ErrSerialization, err)
		}
	}
	return nil
}

func ioErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, simerr.ErrIO, err)
}
