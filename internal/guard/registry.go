// Package guard blocks deletion of resources that still have dependents.
package guard

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/inspectra-app/inspectra/internal/ability"
)

// Edge declares one parent→child relation the checker probes before a delete.
type Edge struct {
	Parent     ability.ResourceKind
	Child      ability.ResourceKind
	Table      string
	ForeignKey string
	// Cascade edges are not probed: the owning repository deletes the
	// children together with the parent in one transaction.
	Cascade bool
}

// Registry is the declared set of dependency edges, the single source of
// truth for which resources guard their deletes.
type Registry struct {
	edges map[ability.ResourceKind][]Edge
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{edges: make(map[ability.ResourceKind][]Edge)}
}

// Register adds an edge.
func (r *Registry) Register(e Edge) {
	r.edges[e.Parent] = append(r.edges[e.Parent], e)
}

// EdgesFor returns the edges declared for a parent kind.
func (r *Registry) EdgesFor(parent ability.ResourceKind) []Edge {
	return r.edges[parent]
}

// DefaultRegistry declares the production dependency graph. Every tenant
// resource that other records point at guards its delete; the one cascade is
// Equipment→DailyMaintenance, whose logs have no life of their own.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	for _, e := range []Edge{
		{Parent: ability.KindOrganization, Child: ability.KindUser, Table: "users", ForeignKey: "organization_id"},
		{Parent: ability.KindOrganization, Child: ability.KindClient, Table: "clients", ForeignKey: "organization_id"},
		{Parent: ability.KindOrganization, Child: ability.KindReport, Table: "reports", ForeignKey: "organization_id"},
		{Parent: ability.KindOrganization, Child: ability.KindDocument, Table: "documents", ForeignKey: "organization_id"},
		{Parent: ability.KindOrganization, Child: ability.KindEquipment, Table: "equipment", ForeignKey: "organization_id"},
		{Parent: ability.KindOrganization, Child: ability.KindInstrument, Table: "instruments", ForeignKey: "organization_id"},
		{Parent: ability.KindOrganization, Child: ability.KindStorage, Table: "storages", ForeignKey: "organization_id"},
		{Parent: ability.KindOrganization, Child: ability.KindValve, Table: "valves", ForeignKey: "organization_id"},
		{Parent: ability.KindOrganization, Child: ability.KindBomb, Table: "bombs", ForeignKey: "organization_id"},
		{Parent: ability.KindOrganization, Child: ability.KindCompanyUnit, Table: "company_units", ForeignKey: "organization_id"},

		{Parent: ability.KindClient, Child: ability.KindReport, Table: "reports", ForeignKey: "client_id"},

		{Parent: ability.KindEquipment, Child: ability.KindDailyMaintenance, Table: "daily_maintenance", ForeignKey: "equipment_id", Cascade: true},

		// Instruments guard like every other referenced resource. The edge
		// registry is authoritative; no kind skips the check ad hoc.
		{Parent: ability.KindInstrument, Child: ability.KindReport, Table: "report_instruments", ForeignKey: "instrument_id"},
	} {
		r.Register(e)
	}

	return r
}

var titleCaser = cases.Title(language.English)

// Label humanizes a resource kind for conflict messages,
// e.g. DailyMaintenance -> "Daily Maintenance".
func Label(kind ability.ResourceKind) string {
	var b strings.Builder
	for i, r := range string(kind) {
		if i > 0 && r >= 'A' && r <= 'Z' {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return titleCaser.String(b.String())
}
