package component

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

type (
	PlanetID  uint32
	ShipID    uint32
	FactionID uint32
)

// NullFactionID is an optional faction reference, shaped after sql.NullInt32.
// The zero value means "no faction".
type NullFactionID struct {
	ID    FactionID
	Valid bool
}

// ControlledBy returns a valid reference to id.
func ControlledBy(id FactionID) NullFactionID {
	return NullFactionID{ID: id, Valid: true}
}

// Is reports whether the reference is valid and points at id.
func (n NullFactionID) Is(id FactionID) bool {
	return n.Valid && n.ID == id
}

func (n NullFactionID) String() string {
	if !n.Valid {
		return "none"
	}
	return fmt.Sprintf("%d", n.ID)
}

// Scan implements sql.Scanner.
func (n *NullFactionID) Scan(src any) error {
	if src == nil {
		*n = NullFactionID{}
		return nil
	}
	var v int64
	switch x := src.(type) {
	case int64:
		v = x
	case int32:
		v = int64(x)
	case int:
		v = int64(x)
	default:
		return fmt.Errorf("scan faction id: unsupported type %T", src)
	}
	if v < 0 || v > int64(^uint32(0)) {
		return fmt.Errorf("scan faction id: %d out of range", v)
	}
	*n = ControlledBy(FactionID(v))
	return nil
}

// Value implements driver.Valuer.
func (n NullFactionID) Value() (driver.Value, error) {
	if !n.Valid {
		return nil, nil
	}
	return int64(n.ID), nil
}

func (n NullFactionID) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.ID)
}

func (n *NullFactionID) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*n = NullFactionID{}
		return nil
	}
	var id FactionID
	if err := json.Unmarshal(b, &id); err != nil {
		return err
	}
	*n = ControlledBy(id)
	return nil
}
