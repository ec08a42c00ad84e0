package depot

import (
	"testing"
)

// TestTypedHandleAsComponent passes the handle FactoryNewComponent returns
// through every path that accepts a plain Component, since that handle is
// what callers actually hold
func TestTypedHandleAsComponent(t *testing.T) {
	storage := Factory.NewStorage()
	entities, err := storage.NewEntities(1, posComp, velComp)
	if err != nil {
		t.Fatalf("Failed to create entity: %v", err)
	}

	names := FieldNames(posComp)
	if len(names) != 2 || names[0] != "X" || names[1] != "Y" {
		t.Errorf("Field names: %v, want [X Y]", names)
	}

	zeros, err := ComponentZeroValues(healthComp)
	if err != nil {
		t.Fatalf("Failed to get zero values: %v", err)
	}
	if len(zeros) != 2 || zeros[0].Kind != KindInt {
		t.Errorf("Zero values: %+v, want two int values", zeros)
	}

	sys := NewNativeSystem("equip", []Component{posComp}, nil,
		func(ctx *SystemContext) error {
			return ctx.Add(healthComp, []Value{IntValue(5), IntValue(10)})
		})
	failures, err := Invoke(storage, sys)
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if len(failures) != 0 {
		t.Fatalf("Unexpected callback failures: %v", failures)
	}
	health, err := healthComp.GetFromEntity(storage, entities[0])
	if err != nil {
		t.Fatalf("Health missing after queued add: %v", err)
	}
	if health.Current != 5 || health.Max != 10 {
		t.Errorf("Health after queued add: %+v, want {5 10}", *health)
	}
}

// TestFieldNamesIdentityAcrossHandles verifies the typed handle and the
// registry record resolve to the same registration
func TestFieldNamesIdentityAcrossHandles(t *testing.T) {
	byTag, err := LookupTag("position")
	if err != nil {
		t.Fatalf("Failed to look up tag: %v", err)
	}
	if byTag.ID() != posComp.ID() {
		t.Errorf("Tag lookup id %d, handle id %d", byTag.ID(), posComp.ID())
	}
	if got, want := FieldNames(posComp), FieldNames(byTag); len(got) != len(want) {
		t.Errorf("Field names diverge between handles: %v vs %v", got, want)
	}
}
