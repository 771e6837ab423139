package component

import "math"

// Vector2 is a point in the 2-D system plane.
type Vector2 struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// DistanceTo returns the Euclidean distance between v and o.
func (v Vector2) DistanceTo(o Vector2) float64 {
	return math.Hypot(o.X-v.X, o.Y-v.Y)
}

// IsFinite reports whether both coordinates are finite numbers.
func (v Vector2) IsFinite() bool {
	return !math.IsNaN(v.X) && !math.IsNaN(v.Y) && !math.IsInf(v.X, 0) && !math.IsInf(v.Y, 0)
}

// Lerp returns the point a fraction t of the way from v to o.
func (v Vector2) Lerp(o Vector2, t float64) Vector2 {
	return Vector2{X: v.X + (o.X-v.X)*t, Y: v.Y + (o.Y-v.Y)*t}
}

// OrbitalElements describe a circular orbit. Position is a pure function of
// these elements and the tick; there is no velocity state.
type OrbitalElements struct {
	SemiMajorAxis float64 `json:"semi_major_axis" yaml:"semi_major_axis"` // AU
	Period        float64 `json:"period" yaml:"period"`                   // ticks
	Phase         float64 `json:"phase" yaml:"phase"`                     // radians
}

// DefaultOrbit mirrors the default orbit used by the planet generator.
func DefaultOrbit() OrbitalElements {
	return OrbitalElements{SemiMajorAxis: 5, Period: 365, Phase: 0}
}

// Trajectory is an immutable flight plan. A ship carrying one is in flight.
type Trajectory struct {
	Origin        Vector2 `json:"origin"`
	Destination   Vector2 `json:"destination"`
	DepartureTick uint64  `json:"departure_tick"`
	ArrivalTick   uint64  `json:"arrival_tick"`
	FuelCost      float64 `json:"fuel_cost"`
}

// PositionAt interpolates linearly between origin and destination.
func (t Trajectory) PositionAt(tick uint64) Vector2 {
	if tick <= t.DepartureTick {
		return t.Origin
	}
	if tick >= t.ArrivalTick || t.ArrivalTick == t.DepartureTick {
		return t.Destination
	}
	progress := float64(tick-t.DepartureTick) / float64(t.ArrivalTick-t.DepartureTick)
	return t.Origin.Lerp(t.Destination, progress)
}

// PositionAt returns the orbital position at tick. Degenerate orbits (no
// period or a negative radius) sit at the origin.
func (o OrbitalElements) PositionAt(tick uint64) Vector2 {
	if o.Period <= 0 || o.SemiMajorAxis < 0 {
		return Vector2{}
	}
	angle := o.Phase + 2*math.Pi*float64(tick)/o.Period
	return Vector2{X: o.SemiMajorAxis * math.Cos(angle), Y: o.SemiMajorAxis * math.Sin(angle)}
}
