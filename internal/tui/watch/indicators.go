package watch

import (
	"strings"
	"time"
)

const pulseWidth = 5

// Pulse lights up when an event arrives and fades over the next ten
// seconds, so a quiet engine is visibly quiet.
type Pulse struct {
	lit       int
	lastEvent time.Time
}

func (p *Pulse) OnEvent(at time.Time) {
	p.lit = pulseWidth
	p.lastEvent = at
}

// Decay dims the pulse according to the time since the last event.
func (p *Pulse) Decay(now time.Time) {
	if p.lit == 0 {
		return
	}
	elapsed := now.Sub(p.lastEvent)
	p.lit = min(p.lit, max(0, pulseWidth-int(elapsed/(2*time.Second))))
}

func (p Pulse) Lit() int { return p.lit }

func (p Pulse) LastEvent() time.Time { return p.lastEvent }

func (p Pulse) Render(theme Theme) string {
	var b strings.Builder
	for i := range pulseWidth {
		if i < p.lit {
			b.WriteString(theme.PulseOn.Render("●"))
		} else {
			b.WriteString(theme.PulseOff.Render("○"))
		}
	}
	return b.String()
}
