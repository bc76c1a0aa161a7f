package health

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrWong99/signspeak/internal/resilience"
)

// Sizer is anything that reports how many entries it holds, such as a
// loaded lexicon.
type Sizer interface {
	Len() int
}

// NonEmpty returns a [Checker] that fails while s is nil or empty.
func NonEmpty(name string, s Sizer) Checker {
	return Checker{
		Name: name,
		Check: func(context.Context) error {
			if s == nil || s.Len() == 0 {
				return errors.New("not loaded")
			}
			return nil
		},
	}
}

// BreakerStatus is implemented by provider groups guarded by circuit
// breakers.
type BreakerStatus interface {
	Available() bool
	Status() []resilience.EntryStatus
}

// Breakers returns a [Checker] that fails when every entry of g has an open
// circuit breaker. The error lists each entry's state.
func Breakers(name string, g BreakerStatus) Checker {
	return Checker{
		Name: name,
		Check: func(context.Context) error {
			if g.Available() {
				return nil
			}
			var states []string
			for _, s := range g.Status() {
				states = append(states, fmt.Sprintf("%s=%s", s.Name, s.State))
			}
			return fmt.Errorf("all circuits open (%s)", strings.Join(states, ", "))
		},
	}
}
