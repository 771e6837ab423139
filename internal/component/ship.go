package component

import (
	"fmt"
	"strings"
)

type ShipClass uint8

const (
	Scout ShipClass = iota
	Transport
	Warship
	Colony
)

var shipClassNames = [...]string{"scout", "transport", "warship", "colony"}

func (c ShipClass) String() string {
	if int(c) < len(shipClassNames) {
		return shipClassNames[c]
	}
	return fmt.Sprintf("ship_class(%d)", uint8(c))
}

func ParseShipClass(s string) (ShipClass, error) {
	for i, n := range shipClassNames {
		if strings.EqualFold(n, s) {
			return ShipClass(i), nil
		}
	}
	return 0, fmt.Errorf("unknown ship class %q", s)
}

func (c ShipClass) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *ShipClass) UnmarshalText(b []byte) error {
	v, err := ParseShipClass(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// FuelTank is the fuel a hull carries when full.
const FuelTank = 100.0

// TransportHold is the cargo a transport can carry, summed over every
// resource kind.
const TransportHold = 500

// CargoCapacity is the total cargo the class can carry. Only transports
// have a hold.
func (c ShipClass) CargoCapacity() int64 {
	if c == Transport {
		return TransportHold
	}
	return 0
}

type Ship struct {
	ID         ShipID         `json:"id"`
	Class      ShipClass      `json:"class"`
	Position   Vector2        `json:"position"`
	Owner      FactionID      `json:"owner"`
	Fuel       float64        `json:"fuel"`
	Cargo      ResourceBundle `json:"cargo"`
	Trajectory *Trajectory    `json:"trajectory,omitempty"`
}

// FreeHold is the cargo room left.
func (s *Ship) FreeHold() int64 { return s.Class.CargoCapacity() - s.Cargo.Total() }

// InFlight reports whether the ship carries a trajectory.
func (s *Ship) InFlight() bool { return s.Trajectory != nil }

// Clone returns a copy that shares no trajectory pointer with s.
func (s Ship) Clone() Ship {
	if s.Trajectory != nil {
		t := *s.Trajectory
		s.Trajectory = &t
	}
	return s
}
