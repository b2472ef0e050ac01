package persona

import (
	"fmt"
	"time"
)

// Clock resolves the target region's zone once and maps wall-clock time to a persona.
type Clock struct {
	loc *time.Location
	err error
	now func() time.Time
}

// NewClock loads the named IANA zone. An empty name uses a fixed offset zone instead.
// A zone that fails to load is remembered; Current then returns the default persona.
func NewClock(zone string, fallbackOffsetHours int) *Clock {
	c := &Clock{now: time.Now}

	if zone == "" {
		c.loc = time.FixedZone(fmt.Sprintf("UTC%+d", fallbackOffsetHours), fallbackOffsetHours*60*60)
		return c
	}

	loc, err := time.LoadLocation(zone)
	if err != nil {
		c.err = fmt.Errorf("failed to load timezone %q: %w", zone, err)
		return c
	}
	c.loc = loc
	return c
}

// NewClockAt builds a clock over an already resolved location and time source.
func NewClockAt(loc *time.Location, now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{loc: loc, now: now}
}

func (c *Clock) Err() error {
	return c.err
}

func (c *Clock) Location() *time.Location {
	return c.loc
}

func (c *Clock) Current() Persona {
	return c.At(c.now())
}

func (c *Clock) At(t time.Time) Persona {
	if c.err != nil {
		return personas[Default]
	}
	return At(t, c.loc)
}
