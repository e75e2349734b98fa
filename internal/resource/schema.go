// Package resource implements generic CRUD over the managed dashboard
// tables. Each table is described by a static Schema; payload keys are
// checked against the schema's column allowlist before any statement is
// built, so client JSON can never name a column the schema doesn't declare.
package resource

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/google/uuid"
)

// IDKind describes the identifier type a table uses.
type IDKind int

const (
	// IDInt is a serial integer primary key.
	IDInt IDKind = iota
	// IDUUID is a uuid primary key.
	IDUUID
	// IDKey is a client-supplied content-addressed text key.
	IDKey
)

// keyPattern bounds client-supplied text keys.
var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// Schema declares one managed table: its audit section, entity kind for
// audit entries, default list ordering and the writable column allowlist.
// The id and updated_at columns are always server-managed and never
// writable, except that IDKey tables accept "id" on create.
type Schema struct {
	Table        string
	AuditSection string
	EntityKind   string
	DefaultOrder string
	IDKind       IDKind
	Columns      []string
}

// HasColumn reports whether name is a writable column of the schema. One
// Schema is shared by every request hitting its table, so this must stay a
// pure read; the column lists are small enough to scan.
func (s *Schema) HasColumn(name string) bool {
	for _, c := range s.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// ParseID validates the shape of a raw identifier against the schema's id
// kind and returns a value suitable as a query argument.
func (s *Schema) ParseID(raw string) (any, error) {
	switch s.IDKind {
	case IDInt:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("id must be a positive integer")
		}
		return n, nil
	case IDUUID:
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("id must be a valid UUID")
		}
		return id, nil
	case IDKey:
		if !keyPattern.MatchString(raw) {
			return nil, fmt.Errorf("id must match %s", keyPattern.String())
		}
		return raw, nil
	default:
		return nil, fmt.Errorf("unknown id kind")
	}
}

// schemas lists every table exposed through the generic CRUD routes.
var schemas = []Schema{
	{Table: "days", AuditSection: "schedule", EntityKind: "day", DefaultOrder: "day ASC", IDKind: IDInt,
		Columns: []string{"day", "title", "summary", "notes"}},
	{Table: "appointments", AuditSection: "schedule", EntityKind: "appointment", DefaultOrder: "starts_at ASC", IDKind: IDInt,
		Columns: []string{"day", "title", "location", "starts_at", "ends_at", "notes"}},
	{Table: "races", AuditSection: "schedule", EntityKind: "race", DefaultOrder: "starts_at ASC", IDKind: IDInt,
		Columns: []string{"day", "name", "starts_at", "course", "status", "notes"}},
	{Table: "briefings", AuditSection: "schedule", EntityKind: "briefing", DefaultOrder: "day ASC", IDKind: IDInt,
		Columns: []string{"day", "time", "location", "agenda", "notes"}},
	{Table: "vehicles", AuditSection: "fleet", EntityKind: "vehicle", DefaultOrder: "name ASC", IDKind: IDInt,
		Columns: []string{"name", "plate", "kind", "seats", "notes"}},
	{Table: "vehicle_deployments", AuditSection: "fleet", EntityKind: "vehicle_deployment", DefaultOrder: "day ASC", IDKind: IDInt,
		Columns: []string{"day", "vehicle_id", "crew", "area", "starts_at", "ends_at", "notes"}},
	{Table: "roster_assignments", AuditSection: "roster", EntityKind: "roster_assignment", DefaultOrder: "day ASC", IDKind: IDInt,
		Columns: []string{"kind", "day", "shift", "slot", "person", "phone"}},
	{Table: "map_features", AuditSection: "map", EntityKind: "map_feature", DefaultOrder: "", IDKind: IDKey,
		Columns: []string{"id", "kind", "label", "lat", "lon", "color", "notes"}},
	{Table: "issues", AuditSection: "issues", EntityKind: "issue", DefaultOrder: "", IDKind: IDInt,
		Columns: []string{"day", "title", "description", "severity", "status", "assignee"}},
	{Table: "weather_bulletins", AuditSection: "weather", EntityKind: "weather_bulletin", DefaultOrder: "issued_at DESC", IDKind: IDInt,
		Columns: []string{"day", "source", "level", "headline", "body", "issued_at"}},
	{Table: "contacts", AuditSection: "directory", EntityKind: "contact", DefaultOrder: "name ASC", IDKind: IDInt,
		Columns: []string{"name", "organization", "role", "phone", "email", "notes"}},
	{Table: "radio_channels", AuditSection: "directory", EntityKind: "radio_channel", DefaultOrder: "name ASC", IDKind: IDInt,
		Columns: []string{"name", "frequency", "usage", "notes"}},
	{Table: "ordinances", AuditSection: "documents", EntityKind: "ordinance", DefaultOrder: "", IDKind: IDInt,
		Columns: []string{"day", "number", "title", "file_url", "notes"}},
	{Table: "road_closures", AuditSection: "viability", EntityKind: "road_closure", DefaultOrder: "day ASC", IDKind: IDInt,
		Columns: []string{"day", "road", "from_time", "to_time", "reason", "notes"}},
	{Table: "shelters", AuditSection: "logistics", EntityKind: "shelter", DefaultOrder: "name ASC", IDKind: IDInt,
		Columns: []string{"name", "address", "capacity", "open", "phone", "notes"}},
	{Table: "supply_requests", AuditSection: "logistics", EntityKind: "supply_request", DefaultOrder: "", IDKind: IDInt,
		Columns: []string{"day", "item", "quantity", "requested_by", "status", "notes"}},
}

// Schemas returns the full registry of managed tables.
func Schemas() []Schema {
	out := make([]Schema, len(schemas))
	copy(out, schemas)
	return out
}

// Lookup returns the schema for the given table name.
func Lookup(table string) (*Schema, bool) {
	for i := range schemas {
		if schemas[i].Table == table {
			s := schemas[i]
			return &s, true
		}
	}
	return nil, false
}
