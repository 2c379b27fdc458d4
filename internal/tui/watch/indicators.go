package watch

import (
	"strings"
	"time"
)

// Heartbeat advances once per UI tick. A frame that stops changing means the
// model itself has stalled, independent of server traffic.
type Heartbeat struct {
	frame int
}

var heartbeatFrames = [...]string{"◐", "◓", "◑", "◒"}

func (h *Heartbeat) Beat() { h.frame = (h.frame + 1) % len(heartbeatFrames) }

func (h Heartbeat) Frame() string { return heartbeatFrames[h.frame] }

// pulseWidth is the number of cells in the activity pulse; one cell goes dark
// for every pulseStep without a program event.
const (
	pulseWidth = 5
	pulseStep  = 2 * time.Second
)

// ActivityPulse shows how recently a program event arrived.
type ActivityPulse struct {
	lit  int
	last time.Time
}

// Observe records a program event at t and lights every cell.
func (p *ActivityPulse) Observe(t time.Time) {
	p.lit = pulseWidth
	p.last = t
}

// Fade darkens cells according to the time elapsed since the last event.
func (p *ActivityPulse) Fade(now time.Time) {
	if p.last.IsZero() {
		return
	}
	lit := pulseWidth - int(now.Sub(p.last)/pulseStep)
	p.lit = max(lit, 0)
}

func (p ActivityPulse) Lit() int { return p.lit }

func (p ActivityPulse) Last() time.Time { return p.last }

func (p ActivityPulse) Render(theme Theme) string {
	var sb strings.Builder
	for i := range pulseWidth {
		if i < p.lit {
			sb.WriteString(theme.PulseLit.Render("▮"))
		} else {
			sb.WriteString(theme.PulseDark.Render("▯"))
		}
	}
	return sb.String()
}
