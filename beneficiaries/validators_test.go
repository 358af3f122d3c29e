package beneficiaries

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nonprofit-records/common"
	"nonprofit-records/parsers"
)

var header = func() string {
	keys := make([]string, len(Schema))
	for i, col := range Schema {
		keys[i] = col.Key
	}
	return strings.Join(keys, ",")
}()

func buildRow(t *testing.T, line string) common.RowResult[Beneficiary] {
	t.Helper()
	table, err := parsers.Tokenize(header + "\n" + line)
	require.NoError(t, err)
	idx, err := Schema.Index(table.Header)
	require.NoError(t, err)
	return Build(idx, table.Rows[0])
}

func TestBuild_ValidRow(t *testing.T) {
	res := buildRow(t, `12,juan,DELA CRUZ,m,2015-06-01,kindergarten,"123 Main St, City",North,Maria,Mother,9123456789,maria@example.com`)

	require.True(t, res.OK())
	assert.Equal(t, common.OutcomeAccepted, res.Outcome)

	b := res.Record
	require.NotNil(t, b.AccreditedID)
	assert.Equal(t, 12.0, *b.AccreditedID)
	assert.Equal(t, "Juan", b.FirstName)
	assert.Equal(t, "Dela Cruz", b.LastName)
	assert.Equal(t, "M", b.Sex)
	assert.Equal(t, time.Date(2015, 6, 1, 0, 0, 0, 0, time.UTC), b.Birthdate)
	assert.Equal(t, "K", b.GradeLevel)
	assert.Equal(t, "123 Main St, City", b.Address)
	assert.Equal(t, "North", b.Cluster)
	require.Len(t, b.Guardians, 1)
	assert.Equal(t, Guardian{Name: "Maria", Relation: "Mother", ContactNumber: "09123456789", Email: "maria@example.com"}, b.Guardians[0])
}

func TestBuild_Rejections(t *testing.T) {
	tests := []struct {
		name  string
		line  string
		field string
	}{
		{"non-numeric id", "abc,Juan,Cruz,M,2015-06-01,1,,", "id"},
		{"missing first name", "12,,Cruz,M,2015-06-01,1,,", "name"},
		{"missing last name", "12,Juan,,M,2015-06-01,1,,", "name"},
		{"bad birthdate", "12,Juan,Cruz,M,someday,1,,", "birthdate"},
		{"bad sex", "12,Juan,Cruz,X,2015-06-01,1,,", "sex"},
		{"bad grade", "12,Juan,Cruz,M,2015-06-01,13,,", "grade_level"},
		{"bad guardian contact", "12,Juan,Cruz,M,2015-06-01,1,,,Maria,Mother,12345,", "guardian1_contact"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := buildRow(t, tt.line)
			assert.False(t, res.OK())
			assert.Equal(t, common.OutcomeRejected, res.Outcome)
			require.NotNil(t, res.Error)
			assert.Equal(t, tt.field, res.Error.Field)
		})
	}
}

func TestBuild_ShortCircuitsInOrder(t *testing.T) {
	// Both the id and the sex are bad; the id check runs first.
	res := buildRow(t, "abc,Juan,Cruz,X,2015-06-01,13,,")
	require.NotNil(t, res.Error)
	assert.Equal(t, "id", res.Error.Field)
}

func TestBuild_Corrections(t *testing.T) {
	res := buildRow(t, ",maria,santos,,,nursery,,")

	require.True(t, res.OK())
	assert.Equal(t, common.OutcomeCorrected, res.Outcome)

	b := res.Record
	assert.True(t, b.Waitlisted())
	assert.Equal(t, common.SentinelDate, b.Birthdate)
	assert.Equal(t, "N", b.GradeLevel)
	assert.Equal(t, "", b.Sex)
	assert.Equal(t, []Guardian{{}}, b.Guardians, "placeholder guardian")
	assert.Len(t, res.Notes, 2)
}

func TestBuild_InvalidGuardianEmailIsCleared(t *testing.T) {
	res := buildRow(t, "12,Juan,Cruz,M,2015-06-01,1,,,Maria,Mother,09123456789,not-an-email,,,,,Pedro,Father,,pedro@example.com")

	require.True(t, res.OK())
	assert.Equal(t, common.OutcomeCorrected, res.Outcome)
	require.Len(t, res.Record.Guardians, 2, "blank second guardian group is dropped")
	assert.Equal(t, "", res.Record.Guardians[0].Email)
	assert.Equal(t, "Pedro", res.Record.Guardians[1].Name)
	assert.Equal(t, "pedro@example.com", res.Record.Guardians[1].Email)
}

func TestBuild_ExportHeaderAliases(t *testing.T) {
	table, err := parsers.Tokenize("Child Number (ID),First Name,Last Name,Sex,Birthdate,Grade Level,Address,Cluster\n7,Ana,Reyes,F,06/01/2015,3,Addr,South")
	require.NoError(t, err)
	idx, err := Schema.Index(table.Header)
	require.NoError(t, err)

	res := Build(idx, table.Rows[0])
	require.True(t, res.OK())
	assert.Equal(t, 7.0, *res.Record.AccreditedID)
	assert.Equal(t, "3", res.Record.GradeLevel)
	assert.Equal(t, time.Date(2015, 6, 1, 0, 0, 0, 0, time.UTC), res.Record.Birthdate)
}

func TestDeduper(t *testing.T) {
	id := func(f float64) *float64 { return &f }
	existing := []Beneficiary{
		{AccreditedID: id(1), FirstName: "Juan", LastName: "Cruz"},
		{FirstName: "Maria", LastName: "Santos"},
	}
	d := NewDeduper(existing)

	assert.False(t, d.Claim(Beneficiary{AccreditedID: id(1), FirstName: "Other", LastName: "Person"}), "existing id")
	assert.True(t, d.Claim(Beneficiary{AccreditedID: id(2), FirstName: "Ana", LastName: "Reyes"}))
	assert.False(t, d.Claim(Beneficiary{AccreditedID: id(2), FirstName: "Ana", LastName: "Reyes"}), "same id twice in one batch")

	assert.False(t, d.Claim(Beneficiary{FirstName: "MARIA", LastName: "santos"}), "existing waitlisted name, any case")
	assert.True(t, d.Claim(Beneficiary{FirstName: "Pedro", LastName: "Lim"}))
	assert.False(t, d.Claim(Beneficiary{FirstName: "pedro", LastName: "LIM"}), "names differing only by case collide")
}

func TestStore_CreateBatchAndLive(t *testing.T) {
	ctx := context.Background()
	db := common.TestDBInit()
	require.NoError(t, AutoMigrate(db))
	store := NewStore(db, 2)

	id := 5.0
	records := []Beneficiary{
		{AccreditedID: &id, FirstName: "Juan", LastName: "Cruz", Guardians: []Guardian{{Name: "Maria"}}},
		{FirstName: "Ana", LastName: "Reyes", Guardians: []Guardian{{}}},
		{FirstName: "Pedro", LastName: "Lim", Guardians: []Guardian{{}}},
	}
	require.NoError(t, store.CreateBatch(ctx, records))
	for _, r := range records {
		assert.NotEmpty(t, r.ID)
	}

	require.NoError(t, store.SoftDelete(ctx, records[2].ID, time.Now().Add(24*time.Hour)))

	live, err := store.Live(ctx)
	require.NoError(t, err)
	require.Len(t, live, 2)
	for _, b := range live {
		if b.FirstName == "Juan" {
			assert.Equal(t, "Maria", b.Guardians[0].Name)
			assert.Equal(t, 5.0, *b.AccreditedID)
		} else {
			assert.True(t, b.Waitlisted())
		}
	}

	found, err := store.FindByIDs(ctx, []string{records[0].ID, records[2].ID})
	require.NoError(t, err)
	assert.Len(t, found, 2, "lookup ignores soft deletion")
}

func TestStore_CreateBatchIsAtomic(t *testing.T) {
	ctx := context.Background()
	db := common.TestDBInit()
	require.NoError(t, AutoMigrate(db))
	store := NewStore(db, 1)

	records := []Beneficiary{
		{ID: "dup", FirstName: "A", LastName: "B"},
		{ID: "dup", FirstName: "C", LastName: "D"},
	}
	require.Error(t, store.CreateBatch(ctx, records))

	live, err := store.Live(ctx)
	require.NoError(t, err)
	assert.Empty(t, live)
}
