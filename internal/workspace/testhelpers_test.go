package workspace

import (
	"testing"

	"idfcore/internal/schema"
	"idfcore/pkg/domain"
)

const (
	tVersion    domain.TypeID = "OS:Version"
	tBuilding   domain.TypeID = "OS:Building"
	tZone       domain.TypeID = "OS:ThermalZone"
	tIdealZone  domain.TypeID = "OS:ThermalZone:Ideal"
	tSpace      domain.TypeID = "OS:Space"
	tSchedule   domain.TypeID = "OS:Schedule:Constant"
	tThermostat domain.TypeID = "OS:Thermostat"
	tNote       domain.TypeID = "OS:Note"
)

// Field indices of the fixture types.
const (
	zoneName       = 0
	zoneMultiplier = 1
	zoneBuilding   = 2
	zoneSchedule   = 3

	spaceName      = 0
	spaceZone      = 1
	spaceOccupancy = 2

	thermostatSchedule = 1
	noteSubject        = 1
	idealBuilding      = 1
)

func fixtureCatalog(t testing.TB) *schema.Catalog {
	t.Helper()
	c, err := schema.NewBuilder().
		Type(schema.TypeSpec{Name: tVersion, Version: true, Unique: true,
			Fields: []schema.FieldDef{{Name: "Version Identifier"}}}).
		Type(schema.TypeSpec{Name: tBuilding, Required: true, Unique: true, References: []string{"Buildings"},
			Fields: []schema.FieldDef{
				{Name: "Name", IsName: true, Required: true},
				{Name: "North Axis", Kind: domain.FieldReal, Min: schema.Float(0), Max: schema.Float(360)},
			}}).
		Type(schema.TypeSpec{Name: tZone, References: []string{"ThermalZones", "Zones"},
			Fields: []schema.FieldDef{
				{Name: "Name", IsName: true},
				{Name: "Multiplier", Kind: domain.FieldInteger, Min: schema.Float(1)},
				{Name: "Building", Kind: domain.FieldObjectList, ObjectLists: []string{"Buildings"}},
				{Name: "Thermostat Schedule", Kind: domain.FieldObjectList, ObjectLists: []string{"Schedules"}, References: []string{"ThermostatSchedules"}},
			}}).
		Type(schema.TypeSpec{Name: tIdealZone, References: []string{"ThermalZones", "Zones"},
			Fields: []schema.FieldDef{
				{Name: "Name", IsName: true},
				{Name: "Building", Kind: domain.FieldObjectList, ObjectLists: []string{"Buildings"}},
			}}).
		Type(schema.TypeSpec{Name: tSpace, References: []string{"Spaces", "Zones"},
			Fields: []schema.FieldDef{
				{Name: "Name", IsName: true},
				{Name: "Thermal Zone", Kind: domain.FieldObjectList, Required: true, ObjectLists: []string{"ThermalZones"}},
				{Name: "Occupancy", Kind: domain.FieldChoice, Keys: []string{"Office", "Storage"}},
			}}).
		Type(schema.TypeSpec{Name: tSchedule, References: []string{"Schedules"},
			Fields: []schema.FieldDef{
				{Name: "Name", IsName: true},
				{Name: "Value", Kind: domain.FieldReal},
			}}).
		Type(schema.TypeSpec{Name: tThermostat, References: []string{"Thermostats"},
			Fields: []schema.FieldDef{
				{Name: "Name", IsName: true},
				{Name: "Heating Schedule", Kind: domain.FieldObjectList, ObjectLists: []string{"ThermostatSchedules"}},
			}}).
		Type(schema.TypeSpec{Name: tNote,
			Fields: []schema.FieldDef{
				{Name: "Text"},
				{Name: "Subject", Kind: domain.FieldObjectList, ObjectLists: []string{"Spaces"}},
			}}).
		Build()
	if err != nil {
		t.Fatalf("build fixture catalog: %v", err)
	}
	return c
}

func newTestStore(t testing.TB, opts ...Option) *Store {
	t.Helper()
	return New(fixtureCatalog(t), opts...)
}

func rd(typ domain.TypeID, fields ...string) domain.RecordData {
	return domain.RecordData{Type: typ, Fields: fields}
}

func mustAdd(t testing.TB, s *Store, data domain.RecordData) Record {
	t.Helper()
	r, err := s.AddRecord(data)
	if err != nil {
		t.Fatalf("add %s: %v", data.Type, err)
	}
	return r
}

func mustInvariants(t testing.TB, s *Store) {
	t.Helper()
	if err := s.CheckInvariants(); err != nil {
		t.Fatalf("invariants: %v", err)
	}
}

// recordingObserver logs notifications as "add:<type>", "remove:<type>" and
// "change:<handle>".
type recordingObserver struct {
	events []string
}

func (o *recordingObserver) OnAdd(_ domain.Handle, t domain.TypeID) {
	o.events = append(o.events, "add:"+string(t))
}

func (o *recordingObserver) OnRemove(_ domain.Handle, t domain.TypeID) {
	o.events = append(o.events, "remove:"+string(t))
}

func (o *recordingObserver) OnChange(h domain.Handle) {
	o.events = append(o.events, "change:"+h.String())
}
