package imports

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"nonprofit-records/auth"
	"nonprofit-records/beneficiaries"
	"nonprofit-records/common"
	"nonprofit-records/events"
	"nonprofit-records/parsers"
	"nonprofit-records/volunteers"
)

// ErrNothingImported is returned when no row survived validation and dedup.
var ErrNothingImported = common.NewError(common.CodeInvalidArgument, "No valid records were imported; data may already exist.")

type BeneficiaryStore interface {
	Live(ctx context.Context) ([]beneficiaries.Beneficiary, error)
	CreateBatch(ctx context.Context, records []beneficiaries.Beneficiary) error
}

type VolunteerStore interface {
	Live(ctx context.Context) ([]volunteers.Volunteer, error)
	Create(ctx context.Context, v volunteers.Volunteer) error
}

type EventStore interface {
	Live(ctx context.Context) ([]events.Event, error)
	CreateBatch(ctx context.Context, records []events.Event) error
}

// IdentityProvider creates sign-in accounts for imported volunteers.
type IdentityProvider interface {
	CreateAccount(ctx context.Context, email, displayName string) (string, error)
	AccountUID(ctx context.Context, email string) (string, error)
	DeleteAccount(ctx context.Context, uid string) error
	SetClaims(ctx context.Context, uid string, claims auth.CustomClaims) error
}

// RunStore records import runs. *common.RunLog implements it.
type RunStore interface {
	Save(ctx context.Context, run *common.ImportRun) error
	Get(ctx context.Context, id string) (*common.ImportRun, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*common.ImportRun, bool, error)
}

// Deps wires a Service. Runs and Metrics are optional.
type Deps struct {
	Beneficiaries  BeneficiaryStore
	Volunteers     VolunteerStore
	Events         EventStore
	Identity       IdentityProvider
	Runs           RunStore
	Metrics        *common.Metrics
	Log            *zap.Logger
	MaxConcurrency int
}

// Service runs CSV imports.
type Service struct {
	Deps
}

func NewService(deps Deps) *Service {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	if deps.MaxConcurrency <= 0 {
		deps.MaxConcurrency = 8
	}
	return &Service{Deps: deps}
}

// Request is one import call.
type Request struct {
	Collection     common.Collection
	CSV            string
	IdempotencyKey string
}

// Summary is the result of a successful import.
type Summary struct {
	RunID    string `json:"run_id,omitempty"`
	Imported int    `json:"imported"`
	Skipped  int    `json:"skipped"`
}

// outcome is what a collection importer hands back to Import.
type outcome struct {
	imported int
	reports  []common.RowReport
}

// Import validates, deduplicates and persists req.CSV. ok is false when the
// caller may not import into the collection; that is not an error.
func (s *Service) Import(ctx context.Context, caller *auth.Caller, req Request) (Summary, bool, error) {
	if !allowed(caller, req.Collection) {
		s.Log.Info("import denied", zap.String("collection", string(req.Collection)), zap.Bool("authenticated", caller != nil))
		return Summary{}, false, nil
	}

	if req.IdempotencyKey != "" && s.Runs != nil {
		run, found, err := s.Runs.FindByIdempotencyKey(ctx, req.IdempotencyKey)
		if err != nil {
			return Summary{}, true, common.WrapError(common.CodeInternal, err.Error(), err)
		}
		if found {
			s.Log.Info("import replayed", zap.String("run_id", run.ID), zap.String("idempotency_key", req.IdempotencyKey))
			return Summary{RunID: run.ID, Imported: run.Imported, Skipped: run.Skipped}, true, nil
		}
	}

	run := &common.ImportRun{
		ID:         uuid.NewString(),
		Collection: string(req.Collection),
		CallerUID:  caller.UID,
		CreatedAt:  time.Now(),
	}
	if req.IdempotencyKey != "" {
		key := req.IdempotencyKey
		run.IdempotencyKey = &key
	}

	res, err := s.importCollection(ctx, req)
	s.finish(ctx, run, res, err)
	if err != nil {
		return Summary{}, true, err
	}

	summary := Summary{RunID: run.ID, Imported: run.Imported, Skipped: run.Skipped}
	s.Metrics.ObserveImport(string(req.Collection), summary.Imported, summary.Skipped)
	s.Log.Info("import completed",
		zap.String("run_id", run.ID),
		zap.String("collection", string(req.Collection)),
		zap.Int("imported", summary.Imported),
		zap.Int("skipped", summary.Skipped),
	)
	return summary, true, nil
}

// Run returns a stored import run. Admins see every run, other callers only their own.
func (s *Service) Run(ctx context.Context, caller *auth.Caller, id string) (*common.ImportRun, bool, error) {
	if caller == nil {
		return nil, false, nil
	}
	if s.Runs == nil {
		return nil, true, common.NewError(common.CodeNotFound, "Import run not found.")
	}
	run, err := s.Runs.Get(ctx, id)
	if err != nil {
		return nil, true, err
	}
	if !caller.IsAdmin() && run.CallerUID != caller.UID {
		return nil, false, nil
	}
	return run, true, nil
}

func allowed(caller *auth.Caller, c common.Collection) bool {
	switch c {
	case common.Events:
		return caller != nil
	case common.Beneficiaries, common.Volunteers:
		return caller.IsAdmin()
	}
	return false
}

func (s *Service) importCollection(ctx context.Context, req Request) (outcome, error) {
	table, err := parsers.Tokenize(req.CSV)
	if err != nil {
		return outcome{}, asInvalidArgument(err)
	}

	switch req.Collection {
	case common.Beneficiaries:
		return s.importBeneficiaries(ctx, table)
	case common.Volunteers:
		return s.importVolunteers(ctx, table)
	case common.Events:
		return s.importEvents(ctx, table)
	}
	return outcome{}, common.NewError(common.CodeInvalidArgument, fmt.Sprintf("Unknown collection %q.", req.Collection))
}

func (s *Service) importBeneficiaries(ctx context.Context, table *parsers.Table) (outcome, error) {
	results, err := buildAll(table, beneficiaries.Schema, beneficiaries.Build, s.MaxConcurrency)
	if err != nil {
		return outcome{}, err
	}

	existing, err := s.Beneficiaries.Live(ctx)
	if err != nil {
		return outcome{}, common.WrapError(common.CodeInternal, err.Error(), err)
	}
	accepted := classify(results, beneficiaries.NewDeduper(existing).Claim)
	rows := reports(results)
	s.logRows(rows)
	if len(accepted) == 0 {
		return outcome{reports: rows}, ErrNothingImported
	}

	if err := s.Beneficiaries.CreateBatch(ctx, accepted); err != nil {
		return outcome{reports: rows}, common.WrapError(common.CodeInternal, err.Error(), err)
	}
	return outcome{imported: len(accepted), reports: rows}, nil
}

func (s *Service) importEvents(ctx context.Context, table *parsers.Table) (outcome, error) {
	results, err := buildAll(table, events.Schema, events.Build, s.MaxConcurrency)
	if err != nil {
		return outcome{}, err
	}

	existing, err := s.Events.Live(ctx)
	if err != nil {
		return outcome{}, common.WrapError(common.CodeInternal, err.Error(), err)
	}
	accepted := classify(results, events.NewDeduper(existing).Claim)
	rows := reports(results)
	s.logRows(rows)
	if len(accepted) == 0 {
		return outcome{reports: rows}, ErrNothingImported
	}

	if err := s.Events.CreateBatch(ctx, accepted); err != nil {
		return outcome{reports: rows}, common.WrapError(common.CodeInternal, err.Error(), err)
	}
	return outcome{imported: len(accepted), reports: rows}, nil
}

// importVolunteers persists each accepted volunteer independently. A failed
// volunteer is counted as skipped and does not affect the others.
func (s *Service) importVolunteers(ctx context.Context, table *parsers.Table) (outcome, error) {
	results, err := buildAll(table, volunteers.Schema, volunteers.Build, s.MaxConcurrency)
	if err != nil {
		return outcome{}, err
	}

	existing, err := s.Volunteers.Live(ctx)
	if err != nil {
		return outcome{}, common.WrapError(common.CodeInternal, err.Error(), err)
	}
	// Classification runs in input order before any account exists, so two
	// rows with the same email in one file never both reach the fan-out.
	classify(results, volunteers.NewDeduper(existing).Claim)
	s.logRows(reports(results))

	var pending []int
	for i, r := range results {
		if r.OK() {
			pending = append(pending, i)
		}
	}
	if len(pending) == 0 {
		return outcome{reports: reports(results)}, ErrNothingImported
	}

	errs := make([]error, len(pending))
	var g errgroup.Group
	g.SetLimit(s.MaxConcurrency)
	for slot, i := range pending {
		v := results[i].Record
		g.Go(func() error {
			errs[slot] = s.createVolunteer(ctx, v)
			return nil
		})
	}
	_ = g.Wait()

	imported := 0
	for slot, i := range pending {
		if err := errs[slot]; err != nil {
			s.Log.Error("volunteer not imported",
				zap.Int("row", results[i].Row),
				zap.String("email", results[i].Record.Email),
				zap.Error(err),
			)
			results[i].Outcome = common.OutcomeFailed
			results[i].Error = &common.ValidationError{Field: "persist", Message: err.Error()}
			continue
		}
		imported++
	}
	return outcome{imported: imported, reports: reports(results)}, nil
}

// createVolunteer creates the account, then sets its claims and writes the
// volunteer record concurrently. An account left behind by a removed volunteer
// is reused; an account created here is deleted again if the record cannot be
// written.
func (s *Service) createVolunteer(ctx context.Context, v volunteers.Volunteer) error {
	uid, err := s.Identity.CreateAccount(ctx, v.Email, v.DisplayName())
	if errors.Is(err, auth.ErrEmailExists) {
		return s.reviveVolunteer(ctx, v)
	}
	if err != nil {
		return err
	}
	v.ID = uid

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.Identity.SetClaims(gctx, uid, auth.CustomClaims{Admin: v.IsAdmin})
	})
	g.Go(func() error {
		return s.Volunteers.Create(gctx, v)
	})
	if err := g.Wait(); err != nil {
		if delErr := s.Identity.DeleteAccount(context.WithoutCancel(ctx), uid); delErr != nil {
			s.Log.Error("delete orphaned account", zap.String("uid", uid), zap.Error(delErr))
		}
		return err
	}
	return nil
}

// reviveVolunteer attaches v to the account already holding its email. The
// record is written before the claims so a live volunteer that won a
// concurrent import keeps its own claims.
func (s *Service) reviveVolunteer(ctx context.Context, v volunteers.Volunteer) error {
	uid, err := s.Identity.AccountUID(ctx, v.Email)
	if err != nil {
		return err
	}
	v.ID = uid
	if err := s.Volunteers.Create(ctx, v); err != nil {
		return err
	}
	return s.Identity.SetClaims(ctx, uid, auth.CustomClaims{Admin: v.IsAdmin})
}

func (s *Service) finish(ctx context.Context, run *common.ImportRun, res outcome, err error) {
	now := time.Now()
	run.CompletedAt = &now
	run.TotalRows = len(res.reports)
	run.Imported = res.imported
	run.Skipped = len(res.reports) - res.imported
	run.Rows = common.ReportsToJSON(res.reports)
	run.Status = common.RunStatusCompleted
	if err != nil {
		run.Status = common.RunStatusFailed
		run.Message = common.MessageOf(err)
		// a failed run must not claim the key
		run.IdempotencyKey = nil
		s.Log.Warn("import failed",
			zap.String("run_id", run.ID),
			zap.String("collection", run.Collection),
			zap.String("code", string(common.CodeOf(err))),
			zap.Error(err),
		)
	}

	if s.Runs == nil {
		return
	}
	if saveErr := s.Runs.Save(ctx, run); saveErr != nil {
		s.Log.Error("save import run", zap.String("run_id", run.ID), zap.Error(saveErr))
	}
}

func (s *Service) logRows(rows []common.RowReport) {
	for _, row := range rows {
		switch row.Outcome {
		case common.OutcomeRejected:
			s.Log.Debug("row rejected", zap.Int("row", row.Row), zap.String("field", row.Error.Field), zap.String("reason", row.Error.Message))
		case common.OutcomeDuplicate:
			s.Log.Debug("row duplicate", zap.Int("row", row.Row))
		case common.OutcomeCorrected:
			s.Log.Warn("row corrected", zap.Int("row", row.Row), zap.Strings("notes", row.Notes))
		}
	}
}

// buildAll maps the header and builds every row concurrently. Each row writes
// only its own slot.
func buildAll[T any](table *parsers.Table, schema parsers.Schema, build func(parsers.ColumnIndex, parsers.Row) common.RowResult[T], limit int) ([]common.RowResult[T], error) {
	idx, err := schema.Index(table.Header)
	if err != nil {
		return nil, asInvalidArgument(err)
	}

	results := make([]common.RowResult[T], len(table.Rows))
	var g errgroup.Group
	g.SetLimit(limit)
	for i, row := range table.Rows {
		g.Go(func() error {
			results[i] = build(idx, row)
			return nil
		})
	}
	_ = g.Wait()
	return results, nil
}

// classify marks duplicates in input order and returns the records still
// accepted. claim registers each accepted key so later rows see it.
func classify[T any](results []common.RowResult[T], claim func(T) bool) []T {
	var accepted []T
	for i := range results {
		if !results[i].OK() {
			continue
		}
		if !claim(results[i].Record) {
			results[i].Outcome = common.OutcomeDuplicate
			continue
		}
		accepted = append(accepted, results[i].Record)
	}
	return accepted
}

func reports[T any](results []common.RowResult[T]) []common.RowReport {
	out := make([]common.RowReport, len(results))
	for i, r := range results {
		out[i] = r.Report()
	}
	return out
}

func asInvalidArgument(err error) error {
	var structErr *parsers.StructureError
	var missing *parsers.MissingColumnsError
	if errors.As(err, &structErr) || errors.As(err, &missing) {
		return common.WrapError(common.CodeInvalidArgument, err.Error(), err)
	}
	return common.WrapError(common.CodeInternal, err.Error(), err)
}
