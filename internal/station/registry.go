package station

import (
	"sort"

	cmap "github.com/orcaman/concurrent-map/v2"
)

// Registry keeps the most recent report per station. Safe for concurrent use
// from MQTT callbacks and HTTP handlers.
type Registry struct {
	reports cmap.ConcurrentMap[string, Report]
}

func NewRegistry() *Registry {
	return &Registry{reports: cmap.New[Report]()}
}

// Update stores r unless a newer report for the same station is already
// held, and returns whichever report is now current.
func (g *Registry) Update(r Report) Report {
	return g.reports.Upsert(r.ID, r, func(exist bool, held, incoming Report) Report {
		if exist && held.ReceivedAt.After(incoming.ReceivedAt) {
			return held
		}
		return incoming
	})
}

func (g *Registry) Get(id string) (Report, bool) {
	return g.reports.Get(id)
}

func (g *Registry) Len() int {
	return g.reports.Count()
}

// All returns every station, most recently heard first.
func (g *Registry) All() []Report {
	items := g.reports.Items()
	out := make([]Report, 0, len(items))
	for _, r := range items {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ReceivedAt.Equal(out[j].ReceivedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].ReceivedAt.After(out[j].ReceivedAt)
	})
	return out
}
