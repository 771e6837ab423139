package system

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/stellardominion/engine/internal/core/event"
	"github.com/stellardominion/engine/internal/core/simerr"
	"github.com/stellardominion/engine/internal/persist"
	"github.com/stellardominion/engine/internal/world"
)

// SaveConfig tunes the save system.
type SaveConfig struct {
	DefaultSlot      string
	AutosaveSlot     string
	AutosaveInterval uint64 // ticks, 0 disables
}

// SaveSystem validates snapshots and moves them through a persist.Store. It
// also schedules autosaves by queueing SaveGame commands. Applying a loaded
// snapshot needs the whole game, so that part lives with the orchestrator.
type SaveSystem struct {
	store    persist.Store
	cfg      SaveConfig
	autosave cycles
	current  string
	log      *zap.Logger
	now      func() time.Time
}

func NewSaveSystem(store persist.Store, cfg SaveConfig, log *zap.Logger) *SaveSystem {
	if cfg.DefaultSlot == "" {
		cfg.DefaultSlot = "quicksave"
	}
	if cfg.AutosaveSlot == "" {
		cfg.AutosaveSlot = "autosave"
	}
	return &SaveSystem{
		store:    store,
		cfg:      cfg,
		autosave: cycles{interval: cfg.AutosaveInterval},
		log:      log,
		now:      time.Now,
	}
}

func (s *SaveSystem) ID() event.SystemID { return event.SystemSave }

// ObserveTick counts autosaves owed.
func (s *SaveSystem) ObserveTick(tick uint64) {
	s.autosave.observe(tick)
}

// QueueAutosave queues one SaveGame for the autosave slot if any is owed.
func (s *SaveSystem) QueueAutosave(bus *event.Bus) {
	if s.autosave.take() > 0 {
		bus.Queue(event.SaveGame{Slot: s.cfg.AutosaveSlot})
	}
}

// Save validates and writes a snapshot of rec and the systems' pending
// state at tick. An empty slot means the default slot.
func (s *SaveSystem) Save(ctx context.Context, slot string, tick uint64, rec world.Records, pending persist.Pending) (*persist.SaveData, error) {
	if slot == "" {
		slot = s.cfg.DefaultSlot
	}
	if err := persist.ValidateSlot(slot); err != nil {
		return nil, err
	}
	d := persist.NewSaveData(slot, tick, rec, pending, s.now())
	if err := d.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, d); err != nil {
		return nil, err
	}
	s.current = slot
	s.log.Info("存檔完成", zap.String("slot", slot), zap.Uint64("tick", tick), zap.Stringer("save_id", d.SaveID))
	return d, nil
}

// Load reads and validates a snapshot. An empty slot means the most recent
// one. The caller applies it.
func (s *SaveSystem) Load(ctx context.Context, slot string) (*persist.SaveData, error) {
	if slot == "" {
		latest, err := s.Latest(ctx)
		if err != nil {
			return nil, err
		}
		slot = latest.Slot
	}
	if err := persist.ValidateSlot(slot); err != nil {
		return nil, err
	}
	d, err := s.store.Load(ctx, slot)
	if err != nil {
		return nil, err
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	s.current = slot
	s.log.Info("讀檔完成", zap.String("slot", slot), zap.Uint64("tick", d.Tick))
	return d, nil
}

// Latest returns the most recently saved slot.
func (s *SaveSystem) Latest(ctx context.Context) (persist.SlotInfo, error) {
	slots, err := s.store.List(ctx)
	if err != nil {
		return persist.SlotInfo{}, err
	}
	if len(slots) == 0 {
		return persist.SlotInfo{}, fmt.Errorf("no saved games: %w", simerr.ErrNotFound)
	}
	return slots[0], nil
}

func (s *SaveSystem) List(ctx context.Context) ([]persist.SlotInfo, error) {
	return s.store.List(ctx)
}

func (s *SaveSystem) Delete(ctx context.Context, slot string) error {
	if err := persist.ValidateSlot(slot); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, slot); err != nil {
		return err
	}
	if s.current == slot {
		s.current = ""
	}
	return nil
}

// CurrentSlot is the slot last saved to or loaded from.
func (s *SaveSystem) CurrentSlot() string { return s.current }

// IsMissing reports whether err means there was nothing to load.
func IsMissing(err error) bool { return errors.Is(err, simerr.ErrNotFound) }
