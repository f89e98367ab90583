package memory

import (
	"github.com/JakeFAU/leadscan/internal/clock/system"
	"github.com/JakeFAU/leadscan/internal/lead"
)

func orSystemClock(c lead.Clock) lead.Clock {
	if c == nil {
		return system.New()
	}
	return c
}
