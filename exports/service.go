package exports

import (
	"context"
	"time"

	"github.com/gosimple/slug"
	"go.uber.org/zap"

	"nonprofit-records/auth"
	"nonprofit-records/beneficiaries"
	"nonprofit-records/common"
	"nonprofit-records/events"
	"nonprofit-records/volunteers"
)

var (
	VolunteerHeader = []string{"Email", "First Name", "Last Name", "Sex", "Birthdate", "Contact Number", "Address", "Admin"}
	EventHeader     = []string{"Name", "Description", "Date", "Start Time", "End Time", "Location"}

	EventBlockHeader    = []string{"Event Name", "Description", "Date", "Start Time", "End Time", "Location", ""}
	AttendeeBlockHeader = []string{"Child Number (ID) ID", "First Name", "Last Name", "Email", "Contact Number", "Attended", "Who Attended"}

	BeneficiaryHeader = beneficiaryHeader()
)

func beneficiaryHeader() []string {
	h := []string{"Child Number (ID)", "First Name", "Last Name", "Sex", "Birthdate", "Grade Level", "Address", "Cluster"}
	for i := 1; i <= beneficiaries.MaxGuardians; i++ {
		n := string(rune('0' + i))
		h = append(h,
			"Name (Guardian "+n+")",
			"Relation (Guardian "+n+")",
			"Contact Number (Guardian "+n+")",
			"Email (Guardian "+n+")",
		)
	}
	return h
}

type BeneficiarySource interface {
	Live(ctx context.Context) ([]beneficiaries.Beneficiary, error)
	FindByIDs(ctx context.Context, ids []string) ([]beneficiaries.Beneficiary, error)
}

type VolunteerSource interface {
	Live(ctx context.Context) ([]volunteers.Volunteer, error)
}

type EventSource interface {
	Live(ctx context.Context) ([]events.Event, error)
	Get(ctx context.Context, id string) (*events.Event, error)
	Attendees(ctx context.Context, eventID string) ([]events.Attendee, error)
}

// Deps wires a Service. Metrics is optional.
type Deps struct {
	Beneficiaries BeneficiarySource
	Volunteers    VolunteerSource
	Events        EventSource
	Metrics       *common.Metrics
	Log           *zap.Logger
}

// Service renders live records as CSV.
type Service struct {
	Deps
	now func() time.Time
}

func NewService(deps Deps) *Service {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	return &Service{Deps: deps, now: time.Now}
}

// File is a rendered export and its download name.
type File struct {
	Name string
	CSV  string
}

// Export renders every live record of collection. ok is false when the caller
// may not export it.
func (s *Service) Export(ctx context.Context, caller *auth.Caller, collection common.Collection) (File, bool, error) {
	if !allowed(caller, collection) {
		s.Log.Info("export denied", zap.String("collection", string(collection)), zap.Bool("authenticated", caller != nil))
		return File{}, false, nil
	}

	var (
		body string
		rows int
		err  error
	)
	switch collection {
	case common.Volunteers:
		body, rows, err = s.volunteerCSV(ctx)
	case common.Beneficiaries:
		body, rows, err = s.beneficiaryCSV(ctx)
	case common.Events:
		body, rows, err = s.eventCSV(ctx)
	default:
		_, err = common.ParseCollection(string(collection))
	}
	if err != nil {
		return File{}, true, err
	}

	s.Metrics.ObserveExport(string(collection))
	s.Log.Info("export completed", zap.String("collection", string(collection)), zap.Int("rows", rows))
	name := slug.Make(string(collection)+" "+s.now().In(events.Local).Format("2006-01-02")) + ".csv"
	return File{Name: name, CSV: body}, true, nil
}

// ExportAttendees renders one event followed by its attendee list.
func (s *Service) ExportAttendees(ctx context.Context, caller *auth.Caller, eventID string) (File, bool, error) {
	if caller == nil {
		s.Log.Info("attendee export denied", zap.String("event_id", eventID))
		return File{}, false, nil
	}

	event, err := s.Events.Get(ctx, eventID)
	if err != nil {
		return File{}, true, err
	}
	attendees, err := s.Events.Attendees(ctx, eventID)
	if err != nil {
		return File{}, true, internal(err)
	}

	var ids []string
	for _, a := range attendees {
		if a.BeneficiaryID != "" {
			ids = append(ids, a.BeneficiaryID)
		}
	}
	found, err := s.Beneficiaries.FindByIDs(ctx, ids)
	if err != nil {
		return File{}, true, internal(err)
	}
	codes := make(map[string]string, len(found))
	for _, b := range found {
		if b.AccreditedID != nil {
			codes[b.ID] = common.FormatNumber(*b.AccreditedID)
		}
	}

	var doc document
	doc.add(EventBlockHeader...)
	doc.add(eventRow(*event)...)
	doc.blank()
	doc.add(AttendeeBlockHeader...)
	for _, a := range attendees {
		doc.add(
			codes[a.BeneficiaryID],
			a.FirstName,
			a.LastName,
			a.Email,
			a.ContactNumber,
			boolCell(a.Attended),
			a.WhoAttended,
		)
	}

	s.Metrics.ObserveExport("attendees")
	s.Log.Info("attendee export completed", zap.String("event_id", eventID), zap.Int("rows", len(attendees)))
	return File{Name: slug.Make(event.Name+" attendees") + ".csv", CSV: doc.String()}, true, nil
}

func allowed(caller *auth.Caller, c common.Collection) bool {
	if c == common.Events {
		return caller != nil
	}
	return caller.IsAdmin()
}

func (s *Service) volunteerCSV(ctx context.Context) (string, int, error) {
	live, err := s.Volunteers.Live(ctx)
	if err != nil {
		return "", 0, internal(err)
	}
	if len(live) == 0 {
		return "", 0, common.NewError(common.CodeNotFound, "There are no volunteers to export.")
	}

	var doc document
	doc.add(VolunteerHeader...)
	for _, v := range live {
		doc.add(
			v.Email,
			v.FirstName,
			v.LastName,
			v.Sex,
			common.FormatDate(v.Birthdate, time.UTC),
			v.ContactNumber,
			v.Address,
			boolCell(v.IsAdmin),
		)
	}
	return doc.String(), len(live), nil
}

// beneficiaryCSV leaves the guardian columns blank; guardians are not
// exported.
func (s *Service) beneficiaryCSV(ctx context.Context) (string, int, error) {
	live, err := s.Beneficiaries.Live(ctx)
	if err != nil {
		return "", 0, internal(err)
	}
	if len(live) == 0 {
		return "", 0, common.NewError(common.CodeNotFound, "There are no beneficiaries to export.")
	}

	var doc document
	doc.add(BeneficiaryHeader...)
	for _, b := range live {
		id := ""
		if b.AccreditedID != nil {
			id = common.FormatNumber(*b.AccreditedID)
		}
		row := []string{
			id,
			b.FirstName,
			b.LastName,
			b.Sex,
			common.FormatDate(b.Birthdate, time.UTC),
			b.GradeLevel,
			b.Address,
			b.Cluster,
		}
		row = append(row, make([]string, 4*beneficiaries.MaxGuardians)...)
		doc.add(row...)
	}
	return doc.String(), len(live), nil
}

func (s *Service) eventCSV(ctx context.Context) (string, int, error) {
	live, err := s.Events.Live(ctx)
	if err != nil {
		return "", 0, internal(err)
	}
	if len(live) == 0 {
		return "", 0, common.NewError(common.CodeNotFound, "There are no events to export.")
	}

	var doc document
	doc.add(EventHeader...)
	for _, e := range live {
		doc.add(eventRow(e)...)
	}
	return doc.String(), len(live), nil
}

// eventRow renders dates and times in events.Local, the zone they were entered in.
func eventRow(e events.Event) []string {
	return []string{
		e.Name,
		e.Description,
		common.FormatDate(e.StartDate, events.Local),
		common.FormatClock(e.StartDate, events.Local),
		common.FormatClock(e.EndDate, events.Local),
		e.Location,
	}
}

func internal(err error) error {
	return common.WrapError(common.CodeInternal, err.Error(), err)
}
