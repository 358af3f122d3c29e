package exports

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"

	"nonprofit-records/auth"
	"nonprofit-records/beneficiaries"
	"nonprofit-records/common"
	"nonprofit-records/events"
	"nonprofit-records/parsers"
	"nonprofit-records/volunteers"
)

var (
	admin  = &auth.Caller{UID: "admin-1", Admin: true}
	member = &auth.Caller{UID: "member-1"}
)

type fixture struct {
	db  *gorm.DB
	svc *Service
}

func setup(t *testing.T) fixture {
	t.Helper()
	db := common.TestDBInit()
	require.NoError(t, beneficiaries.AutoMigrate(db))
	require.NoError(t, volunteers.AutoMigrate(db))
	require.NoError(t, events.AutoMigrate(db))

	svc := NewService(Deps{
		Beneficiaries: beneficiaries.NewStore(db, 0),
		Volunteers:    volunteers.NewStore(db),
		Events:        events.NewStore(db, 0),
		Log:           zaptest.NewLogger(t),
	})
	svc.now = func() time.Time { return time.Date(2025, 12, 1, 20, 0, 0, 0, time.UTC) }
	return fixture{db: db, svc: svc}
}

func TestEscapeField(t *testing.T) {
	assert.Equal(t, `"plain"`, escapeField("plain"))
	assert.Equal(t, `""`, escapeField(""))
	assert.Equal(t, `"Say ""hi"""`, escapeField(`Say "hi"`))
	assert.Equal(t, `"a,b"`, escapeField("a,b"))
	assert.Equal(t, `"a","","b"`, joinRow([]string{"a", "", "b"}))
}

func TestExport_EmptyCollectionsAreNotFound(t *testing.T) {
	f := setup(t)
	tests := map[common.Collection]string{
		common.Volunteers:    "There are no volunteers to export.",
		common.Beneficiaries: "There are no beneficiaries to export.",
		common.Events:        "There are no events to export.",
	}

	for collection, message := range tests {
		_, ok, err := f.svc.Export(context.Background(), admin, collection)
		require.True(t, ok)
		assert.Equal(t, common.CodeNotFound, common.CodeOf(err), collection)
		assert.Equal(t, message, common.MessageOf(err), collection)
	}
}

func TestExport_Authorization(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, ok, err := f.svc.Export(ctx, nil, common.Events)
	assert.False(t, ok)
	assert.NoError(t, err)

	_, ok, err = f.svc.Export(ctx, member, common.Volunteers)
	assert.False(t, ok)
	assert.NoError(t, err)

	_, ok, _ = f.svc.Export(ctx, member, common.Events)
	assert.True(t, ok)

	_, ok, _ = f.svc.ExportAttendees(ctx, nil, "event")
	assert.False(t, ok)
}

func TestExport_Volunteers(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	store := volunteers.NewStore(f.db)
	require.NoError(t, store.Create(ctx, volunteers.Volunteer{
		ID: "uid-1", Email: "a@b.com", FirstName: "John", LastName: `"JD" Doe`, Sex: "M",
		Birthdate: time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC), ContactNumber: "09123456789",
		Address: "Addr, City", Role: volunteers.RoleVolunteer,
	}))
	require.NoError(t, store.Create(ctx, volunteers.Volunteer{ID: "uid-2", Email: "gone@b.com", FirstName: "Gone", LastName: "X"}))
	require.NoError(t, store.SoftDelete(ctx, "uid-2", time.Now()))

	file, ok, err := f.svc.Export(ctx, admin, common.Volunteers)
	require.True(t, ok)
	require.NoError(t, err)

	want := `"Email","First Name","Last Name","Sex","Birthdate","Contact Number","Address","Admin"` + "\r\n" +
		`"a@b.com","John","""JD"" Doe","M","01/01/1990","09123456789","Addr, City","FALSE"`
	assert.Equal(t, want, file.CSV)
	assert.Equal(t, "volunteers-2025-12-02.csv", file.Name)
}

func TestExport_EventsUseLocalTime(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	start := time.Date(2025, 12, 24, 22, 30, 0, 0, time.UTC)
	require.NoError(t, events.NewStore(f.db, 0).CreateBatch(ctx, []events.Event{
		{Name: "Dawn Run", StartDate: start, EndDate: start.Add(90 * time.Minute), Location: "Park"},
	}))

	file, _, err := f.svc.Export(ctx, member, common.Events)
	require.NoError(t, err)

	rows := strings.Split(file.CSV, "\r\n")
	require.Len(t, rows, 2)
	assert.Equal(t, `"Name","Description","Date","Start Time","End Time","Location"`, rows[0])
	assert.Equal(t, `"Dawn Run","","12/25/2025","06:30","08:00","Park"`, rows[1])
}

func TestExport_BeneficiariesLeaveGuardiansBlank(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	id := 12.0
	require.NoError(t, beneficiaries.NewStore(f.db, 0).CreateBatch(ctx, []beneficiaries.Beneficiary{{
		AccreditedID: &id, FirstName: "Juan", LastName: "Dela Cruz", Sex: "M",
		Birthdate: time.Date(2015, 6, 1, 0, 0, 0, 0, time.UTC), GradeLevel: "K", Cluster: "North",
		Guardians: []beneficiaries.Guardian{{Name: "Maria", Relation: "Mother", ContactNumber: "09123456789"}},
	}}))

	file, _, err := f.svc.Export(ctx, admin, common.Beneficiaries)
	require.NoError(t, err)

	rows := strings.Split(file.CSV, "\r\n")
	require.Len(t, rows, 2)
	assert.True(t, strings.HasPrefix(rows[0], `"Child Number (ID)","First Name","Last Name","Sex","Birthdate","Grade Level","Address","Cluster","Name (Guardian 1)"`))
	assert.True(t, strings.HasSuffix(rows[0], `"Email (Guardian 3)"`))
	assert.Len(t, strings.Split(rows[0], ","), 20)

	// Known limitation: guardians are stored but not exported.
	assert.Equal(t, `"12","Juan","Dela Cruz","M","06/01/2015","K","","North"`+strings.Repeat(`,""`, 12), rows[1])
}

func TestExport_BeneficiaryRoundTrip(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	id := 7.0
	original := beneficiaries.Beneficiary{
		AccreditedID: &id, FirstName: "Ana", LastName: "Reyes", Sex: "F",
		Birthdate: time.Date(2016, 2, 29, 0, 0, 0, 0, time.UTC), GradeLevel: "3",
		Address: `12 "Blue" St, City`, Cluster: "South",
		Guardians: []beneficiaries.Guardian{{Name: "Maria"}},
	}
	require.NoError(t, beneficiaries.NewStore(f.db, 0).CreateBatch(ctx, []beneficiaries.Beneficiary{original}))

	file, _, err := f.svc.Export(ctx, admin, common.Beneficiaries)
	require.NoError(t, err)

	table, err := parsers.Tokenize(file.CSV)
	require.NoError(t, err)
	idx, err := beneficiaries.Schema.Index(table.Header)
	require.NoError(t, err)
	res := beneficiaries.Build(idx, table.Rows[0])
	require.True(t, res.OK())

	got := res.Record
	assert.Equal(t, *original.AccreditedID, *got.AccreditedID)
	assert.Equal(t, original.FirstName, got.FirstName)
	assert.Equal(t, original.LastName, got.LastName)
	assert.Equal(t, original.Sex, got.Sex)
	assert.True(t, original.Birthdate.Equal(got.Birthdate))
	assert.Equal(t, original.GradeLevel, got.GradeLevel)
	assert.Equal(t, original.Address, got.Address)
	assert.Equal(t, original.Cluster, got.Cluster)
	assert.Equal(t, []beneficiaries.Guardian{{}}, got.Guardians, "guardians do not survive the round trip")
}

func TestExport_VolunteerAndEventRoundTrip(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	require.NoError(t, volunteers.NewStore(f.db).Create(ctx, volunteers.Volunteer{
		ID: "uid-1", Email: "a@b.com", FirstName: "John", LastName: "Doe", Sex: "M",
		Birthdate: time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC), IsAdmin: true, Role: volunteers.RoleAdmin,
	}))
	start := time.Date(2025, 12, 25, 1, 0, 0, 0, time.UTC)
	require.NoError(t, events.NewStore(f.db, 0).CreateBatch(ctx, []events.Event{
		{Name: "Community Pantry", Description: "Food", StartDate: start, EndDate: start.Add(3 * time.Hour), Location: "Hall"},
	}))

	file, _, err := f.svc.Export(ctx, admin, common.Volunteers)
	require.NoError(t, err)
	table, err := parsers.Tokenize(file.CSV)
	require.NoError(t, err)
	vidx, err := volunteers.Schema.Index(table.Header)
	require.NoError(t, err)
	v := volunteers.Build(vidx, table.Rows[0])
	require.True(t, v.OK())
	assert.Equal(t, "a@b.com", v.Record.Email)
	assert.True(t, v.Record.IsAdmin)
	assert.Equal(t, time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC), v.Record.Birthdate)

	file, _, err = f.svc.Export(ctx, admin, common.Events)
	require.NoError(t, err)
	table, err = parsers.Tokenize(file.CSV)
	require.NoError(t, err)
	eidx, err := events.Schema.Index(table.Header)
	require.NoError(t, err)
	e := events.Build(eidx, table.Rows[0])
	require.True(t, e.OK())
	assert.True(t, start.Equal(e.Record.StartDate))
	assert.True(t, start.Add(3*time.Hour).Equal(e.Record.EndDate))
}

func TestExportAttendees(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	id := 12.0
	kids := []beneficiaries.Beneficiary{
		{AccreditedID: &id, FirstName: "Juan", LastName: "Cruz"},
		{FirstName: "Ana", LastName: "Reyes"},
	}
	require.NoError(t, beneficiaries.NewStore(f.db, 0).CreateBatch(ctx, kids))

	eventStore := events.NewStore(f.db, 0)
	start := time.Date(2025, 12, 25, 1, 0, 0, 0, time.UTC)
	pantry := []events.Event{{Name: "Community Pantry", Description: "Food", StartDate: start, EndDate: start.Add(3 * time.Hour), Location: "Hall"}}
	require.NoError(t, eventStore.CreateBatch(ctx, pantry))
	require.NoError(t, eventStore.AddAttendee(ctx, &events.Attendee{
		EventID: pantry[0].ID, BeneficiaryID: kids[0].ID, FirstName: "Juan", LastName: "Cruz",
		Email: "parent@example.com", ContactNumber: "09123456789", Attended: true, WhoAttended: "Mother",
	}))
	require.NoError(t, eventStore.AddAttendee(ctx, &events.Attendee{
		EventID: pantry[0].ID, BeneficiaryID: kids[1].ID, FirstName: "Ana", LastName: "Reyes",
	}))

	file, ok, err := f.svc.ExportAttendees(ctx, member, pantry[0].ID)
	require.True(t, ok)
	require.NoError(t, err)
	assert.Equal(t, "community-pantry-attendees.csv", file.Name)

	rows := strings.Split(file.CSV, "\r\n")
	require.Len(t, rows, 6)
	assert.Equal(t, `"Event Name","Description","Date","Start Time","End Time","Location",""`, rows[0])
	assert.Equal(t, `"Community Pantry","Food","12/25/2025","09:00","12:00","Hall"`, rows[1])
	assert.Equal(t, "", rows[2])
	assert.Equal(t, `"Child Number (ID) ID","First Name","Last Name","Email","Contact Number","Attended","Who Attended"`, rows[3])
	assert.Equal(t, `"12","Juan","Cruz","parent@example.com","09123456789","TRUE","Mother"`, rows[4])
	assert.Equal(t, `"","Ana","Reyes","","","FALSE",""`, rows[5])

	_, ok, err = f.svc.ExportAttendees(ctx, member, "missing")
	require.True(t, ok)
	assert.Equal(t, common.CodeNotFound, common.CodeOf(err))

	require.NoError(t, eventStore.SoftDelete(ctx, pantry[0].ID, time.Now()))
	_, ok, err = f.svc.ExportAttendees(ctx, member, pantry[0].ID)
	require.True(t, ok)
	assert.Equal(t, common.CodeNotFound, common.CodeOf(err))
	assert.Equal(t, "Event not found.", common.MessageOf(err))
}
