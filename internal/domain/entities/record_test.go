package entities

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecord_IsActive(t *testing.T) {
	tests := []struct {
		name     string
		record   Record
		expected bool
	}{
		{name: "fresh record is active", record: Record{ID: "r1"}, expected: true},
		{name: "archived record is inactive", record: Record{ID: "r1", IsArchived: true}, expected: false},
		{name: "deleted record is inactive", record: Record{ID: "r1", IsDeleted: true}, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.record.IsActive())
		})
	}
}

func TestRecord_IsActiveOnReturnedValue(t *testing.T) {
	lookup := func(archived bool) Record { return Record{ID: "r1", IsArchived: archived} }

	assert.True(t, lookup(false).IsActive())
	assert.False(t, lookup(true).IsActive())
}

func TestRecord_FieldRoundTrip(t *testing.T) {
	var r Record
	for i, f := range MergeableFields {
		value := string(f) + "-value"
		r.SetField(f, value)
		assert.Equal(t, value, r.Field(f), "field %d %s", i, f)
	}
	assert.Equal(t, "phone-value", r.Phone)
	assert.Equal(t, "populations_served-value", r.PopulationsServed)

	r.SetField(FieldServiceTypes, "ignored")
	assert.Empty(t, r.Field(FieldServiceTypes))
	assert.Nil(t, r.ServiceTypes)
}

func TestRecord_CloneIsDeep(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	orig := Record{ID: "r1", ServiceTypes: []string{"food"}, ArchivedAt: &at}

	c := orig.Clone()
	c.ServiceTypes[0] = "shelter"
	*c.ArchivedAt = at.Add(time.Hour)

	assert.Equal(t, []string{"food"}, orig.ServiceTypes)
	assert.Equal(t, at, *orig.ArchivedAt)
}

func TestRecord_Snapshot(t *testing.T) {
	r := Record{ID: "r1", Name: "Harbor House", Phone: "555", ServiceTypes: []string{"shelter"}}

	s := r.Snapshot()
	r.ServiceTypes[0] = "changed"

	assert.Equal(t, "r1", s.ID)
	assert.Equal(t, "Harbor House", s.Name)
	assert.Equal(t, "555", s.Phone)
	assert.Equal(t, []string{"shelter"}, s.ServiceTypes)
}
