package component

// BuildOrder is a paid-for building waiting for its completion tick.
type BuildOrder struct {
	Planet   PlanetID     `json:"planet"`
	Building BuildingType `json:"building"`
	Start    uint64       `json:"start"`
	Complete uint64       `json:"complete"`
}

// ShipOrder is a paid-for hull waiting for its completion tick.
type ShipOrder struct {
	Planet   PlanetID  `json:"planet"`
	Class    ShipClass `json:"class"`
	Start    uint64    `json:"start"`
	Complete uint64    `json:"complete"`
}

// Battle is an engagement waiting to be resolved.
type Battle struct {
	Attacker ShipID `json:"attacker"`
	Defender ShipID `json:"defender"`
	Start    uint64 `json:"start"`
}

// Landing is a colony ship settling, or a warship invading, a planet. It
// resolves one tick after it starts, like a battle.
type Landing struct {
	Ship   ShipID   `json:"ship"`
	Planet PlanetID `json:"planet"`
	Start  uint64   `json:"start"`
}
