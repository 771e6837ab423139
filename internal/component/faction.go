package component

import (
	"fmt"
	"strings"
)

// Personality tags an AI faction. The tag is opaque to the simulation apart
// from combat scaling.
type Personality uint8

const (
	Aggressive Personality = iota
	Balanced
	Economic
)

var personalityNames = [...]string{"aggressive", "balanced", "economic"}

func (p Personality) String() string {
	if int(p) < len(personalityNames) {
		return personalityNames[p]
	}
	return fmt.Sprintf("personality(%d)", uint8(p))
}

func ParsePersonality(s string) (Personality, error) {
	for i, n := range personalityNames {
		if strings.EqualFold(n, s) {
			return Personality(i), nil
		}
	}
	return 0, fmt.Errorf("unknown personality %q", s)
}

func (p Personality) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *Personality) UnmarshalText(b []byte) error {
	v, err := ParsePersonality(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

type Faction struct {
	ID          FactionID   `json:"id"`
	Name        string      `json:"name"`
	IsPlayer    bool        `json:"is_player"`
	Personality Personality `json:"personality"`
}
