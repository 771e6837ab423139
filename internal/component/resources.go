package component

import (
	"fmt"
	"strings"

	"github.com/stellardominion/engine/internal/core/simerr"
)

// DefaultStorageCapacity is the per-resource storage cap of a fresh planet.
const DefaultStorageCapacity = 10_000

// ResourceKind enumerates the six ledger entries.
type ResourceKind uint8

const (
	Minerals ResourceKind = iota
	Food
	Energy
	Alloys
	Components
	Fuel
)

// ResourceKinds lists every kind in ledger order.
var ResourceKinds = [...]ResourceKind{Minerals, Food, Energy, Alloys, Components, Fuel}

var resourceNames = [...]string{"minerals", "food", "energy", "alloys", "components", "fuel"}

func (k ResourceKind) String() string {
	if int(k) < len(resourceNames) {
		return resourceNames[k]
	}
	return fmt.Sprintf("resource(%d)", uint8(k))
}

func (k ResourceKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *ResourceKind) UnmarshalText(b []byte) error {
	for i, n := range resourceNames {
		if strings.EqualFold(n, string(b)) {
			*k = ResourceKind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown resource kind %q", b)
}

// ResourceBundle is a quantity of each resource. Fields are signed so that
// production rates can express consumption, but every ledger entry point
// rejects a bundle with a negative component.
type ResourceBundle struct {
	Minerals   int32 `json:"minerals" yaml:"minerals"`
	Food       int32 `json:"food" yaml:"food"`
	Energy     int32 `json:"energy" yaml:"energy"`
	Alloys     int32 `json:"alloys" yaml:"alloys"`
	Components int32 `json:"components" yaml:"components"`
	Fuel       int32 `json:"fuel" yaml:"fuel"`
}

// UniformBundle returns a bundle with every field set to v.
func UniformBundle(v int32) ResourceBundle {
	return ResourceBundle{v, v, v, v, v, v}
}

// Get returns the quantity of kind k.
func (b ResourceBundle) Get(k ResourceKind) int32 {
	switch k {
	case Minerals:
		return b.Minerals
	case Food:
		return b.Food
	case Energy:
		return b.Energy
	case Alloys:
		return b.Alloys
	case Components:
		return b.Components
	case Fuel:
		return b.Fuel
	}
	return 0
}

// Set stores v as the quantity of kind k.
func (b *ResourceBundle) Set(k ResourceKind, v int32) {
	switch k {
	case Minerals:
		b.Minerals = v
	case Food:
		b.Food = v
	case Energy:
		b.Energy = v
	case Alloys:
		b.Alloys = v
	case Components:
		b.Components = v
	case Fuel:
		b.Fuel = v
	}
}

// FirstNegative returns the first negative kind in ledger order.
func (b ResourceBundle) FirstNegative() (ResourceKind, bool) {
	for _, k := range ResourceKinds {
		if b.Get(k) < 0 {
			return k, true
		}
	}
	return 0, false
}

// Covers reports whether b holds at least cost of every resource.
func (b ResourceBundle) Covers(cost ResourceBundle) bool {
	for _, k := range ResourceKinds {
		if b.Get(k) < cost.Get(k) {
			return false
		}
	}
	return true
}

// Plus returns the componentwise sum widened to int64, so callers can check
// bounds before narrowing.
func (b ResourceBundle) Plus(o ResourceBundle) [len(ResourceKinds)]int64 {
	var out [len(ResourceKinds)]int64
	for i, k := range ResourceKinds {
		out[i] = int64(b.Get(k)) + int64(o.Get(k))
	}
	return out
}

// Scale multiplies every field by n.
func (b ResourceBundle) Scale(n int32) ResourceBundle {
	var out ResourceBundle
	for _, k := range ResourceKinds {
		out.Set(k, b.Get(k)*n)
	}
	return out
}

// IsZero reports whether every field is zero.
func (b ResourceBundle) IsZero() bool {
	return b == ResourceBundle{}
}

// Total sums every field.
func (b ResourceBundle) Total() int64 {
	var t int64
	for _, k := range ResourceKinds {
		t += int64(b.Get(k))
	}
	return t
}

// Validate rejects a bundle with any negative component.
func (b ResourceBundle) Validate() error {
	if k, ok := b.FirstNegative(); ok {
		return fmt.Errorf("%w: negative %s quantity %d", simerr.ErrValidation, k, b.Get(k))
	}
	return nil
}
