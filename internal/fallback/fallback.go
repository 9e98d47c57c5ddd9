// Package fallback renders the snapshot as a grouped, non-spatial list
// when the map backend is unusable. Unlike the map, the list never drops
// an entity: people and venues without resolvable coordinates are fully
// visible here, which is the point of the mode.
package fallback

import (
	"fmt"
	"html/template"
	"log/slog"
	"strings"
	"sync"

	"github.com/shiftpulse/pulsemap/internal/classify"
	"github.com/shiftpulse/pulsemap/internal/registry"
	"github.com/shiftpulse/pulsemap/pkg/core"
)

// Sink receives the rendered list HTML. The remote map client and the
// headless backend both implement it.
type Sink interface {
	PresentList(html string) error
}

// Chip is one person's compact status entry.
type Chip struct {
	PersonID string
	Name     string
	Role     string
	Icon     string
	Label    string
	Class    classify.Class
	Distance string
}

// Group is one event with its full roster.
type Group struct {
	EventID   string
	Title     string
	Client    string
	Venue     string
	CheckedIn int
	Total     int
	Chips     []Chip
}

var listTmpl = template.Must(template.New("fallback").Parse(`<div class="pulse-fallback">
{{- if not .Groups}}
<p class="empty">No events scheduled</p>
{{- end}}
{{- range .Groups}}
<section class="event" data-event-id="{{.EventID}}">
<h3>{{.Title}}{{if .Client}} · {{.Client}}{{end}}</h3>
{{- if .Venue}}
<p class="venue">{{.Venue}}</p>
{{- end}}
<p class="counts">{{.CheckedIn}}/{{.Total}} checked in</p>
<ul class="chips">
{{- range .Chips}}
<li class="chip {{.Class}}" data-person-id="{{.PersonID}}">{{.Icon}} {{.Name}} — {{.Label}}{{if .Distance}} ({{.Distance}}){{end}}</li>
{{- end}}
</ul>
</section>
{{- end}}
</div>
`))

// Groups builds the list view model for a snapshot. Every record
// appears, resolvable or not.
func Groups(snap core.Snapshot) []Group {
	groups := make([]Group, 0, len(snap.Events))
	for _, ev := range snap.Events {
		g := Group{
			EventID:   ev.ID,
			Title:     ev.Name,
			Client:    ev.ClientName,
			Venue:     ev.Venue,
			CheckedIn: ev.CheckedInCount(),
			Total:     len(ev.Attendance),
		}
		for _, rec := range ev.Attendance {
			cls := classify.Classify(rec)
			chip := Chip{
				PersonID: rec.PersonID,
				Name:     rec.Name,
				Role:     rec.Role,
				Icon:     cls.Class.Icon(),
				Label:    classify.StatusLabel(rec.Status),
				Class:    cls.Class,
			}
			if cls.DistanceMeters != nil {
				chip.Distance = fmt.Sprintf("%dm", *cls.DistanceMeters)
			}
			g.Chips = append(g.Chips, chip)
		}
		groups = append(groups, g)
	}
	return groups
}

// Presenter renders snapshots into a sink and serves the same
// click-to-focus contract as the marker registry.
type Presenter struct {
	sink    Sink
	onFocus registry.FocusFunc
	logger  *slog.Logger

	mu     sync.RWMutex
	latest core.Snapshot
}

// New creates a presenter.
func New(sink Sink, onFocus registry.FocusFunc, logger *slog.Logger) *Presenter {
	return &Presenter{sink: sink, onFocus: onFocus, logger: logger}
}

// Present renders the snapshot's grouped list into the sink.
func (p *Presenter) Present(snap core.Snapshot) error {
	p.mu.Lock()
	p.latest = snap
	p.mu.Unlock()

	var b strings.Builder
	if err := listTmpl.Execute(&b, struct{ Groups []Group }{Groups(snap)}); err != nil {
		return fmt.Errorf("rendering fallback list: %w", err)
	}
	if err := p.sink.PresentList(b.String()); err != nil {
		return fmt.Errorf("presenting fallback list: %w", err)
	}
	p.logger.Debug("presented fallback list", "events", len(snap.Events))
	return nil
}

// Focus routes a chip click to the host callback with the record and
// event from the last presented snapshot.
func (p *Presenter) Focus(eventID, personID string) {
	if p.onFocus == nil {
		return
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, ev := range p.latest.Events {
		if ev.ID != eventID {
			continue
		}
		for _, rec := range ev.Attendance {
			if rec.PersonID == personID {
				p.onFocus(rec, ev)
				return
			}
		}
	}
}
