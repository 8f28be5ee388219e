// Package reports builds the courier and restaurant spreadsheets and delivers
// them. Scheduled reports are paginated, mailed and deleted; on-demand reports
// are written to one sheet, kept on disk and registered in the database.
package reports

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sol1corejz/topgo-reports/internal/logger"
	"github.com/sol1corejz/topgo-reports/internal/metrics"
	"github.com/sol1corejz/topgo-reports/internal/models"
	"github.com/sol1corejz/topgo-reports/internal/xls"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	ReportCourier              = "courier"
	ReportCourierCurators      = "courier_curators"
	ReportRestaurantSettlement = "restaurant_settlement"
	ReportRestaurant           = "restaurant"
	ReportRestaurantCurators   = "restaurant_curators"

	StageQuery = "query"
	StageBuild = "build"
	StageMail  = "mail"
	StageSave  = "save"

	SettlementDays = 7
)

var ErrInvalidFilename = errors.New("invalid report filename")

type Store interface {
	ListCourierRecipients(ctx context.Context) ([]models.Recipient, error)
	ListRestaurantRecipients(ctx context.Context) ([]models.Recipient, error)
	GetCourierSessions(ctx context.Context, courierID int64) ([]models.CourierSessionRecord, error)
	GetCourierAggregate(ctx context.Context) ([]models.CourierAggregateRecord, error)
	GetRestaurantOrders(ctx context.Context, restaurantID int64) ([]models.RestaurantOrderRecord, error)
	GetRestaurantAggregate(ctx context.Context) ([]models.RestaurantAggregateRecord, error)
	GetRestaurantSettlement(ctx context.Context, restaurantID int64, from, to time.Time) (models.RestaurantSettlementRecord, error)
	RegisterReport(ctx context.Context, kind models.ReportKind, ownerID *int64, filename string, date time.Time) (models.ReportFile, error)
}

type Sender interface {
	SendFile(ctx context.Context, to, path, subject string) error
}

// StageError tells which step of a report unit failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return e.Stage + ": " + e.Err.Error() }

func (e *StageError) Unwrap() error { return e.Err }

// keptFile is the path of the page left on disk by a failed send, if any.
func keptFile(err error) string {
	var ue *xls.UnsentError
	if errors.As(err, &ue) {
		return ue.Page.Path
	}
	return ""
}

func stageOf(err error, fallback string) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return fallback
}

type Generator struct {
	store    Store
	sender   Sender
	dir      string
	opsMail  string
	pageSize int
	loc      *time.Location
	now      func() time.Time
}

type Option func(*Generator)

func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

func WithLocation(loc *time.Location) Option {
	return func(g *Generator) { g.loc = loc }
}

func WithPageSize(n int) Option {
	return func(g *Generator) { g.pageSize = n }
}

func New(store Store, sender Sender, dir, opsMail string, opts ...Option) *Generator {
	g := &Generator{
		store:    store,
		sender:   sender,
		dir:      dir,
		opsMail:  opsMail,
		pageSize: xls.DefaultPageSize,
		loc:      time.Local,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Generator) today() time.Time {
	y, m, d := g.now().In(g.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, g.loc)
}

func (g *Generator) yesterday() time.Time {
	return g.today().AddDate(0, 0, -1)
}

// SettlementWindow is the closed range of days covered by the weekly report,
// ending yesterday.
func (g *Generator) SettlementWindow() (from, to time.Time) {
	to = g.yesterday()
	return to.AddDate(0, 0, -(SettlementDays - 1)), to
}

// FilePath resolves a registered report name inside the reports directory.
func (g *Generator) FilePath(filename string) (string, error) {
	if filename == "" || filepath.Base(filename) != filename || filepath.Ext(filename) != xls.Extension {
		return "", ErrInvalidFilename
	}
	return filepath.Join(g.dir, filename), nil
}

func (g *Generator) mailPages(report, to, subject string) func(context.Context, xls.Page) error {
	return func(ctx context.Context, p xls.Page) error {
		metrics.RecordFile(report)
		err := g.sender.SendFile(ctx, to, p.Path, subject)
		metrics.RecordMail(report, err)
		if err != nil {
			return &StageError{Stage: StageMail, Err: err}
		}
		logger.Log.Info("Report page sent",
			zap.String("report", report),
			zap.String("to", to),
			zap.String("file", p.Name),
			zap.Int("page", p.Index),
			zap.Int("rows", p.Rows))
		return nil
	}
}

// CourierPersonal mails every courier the sessions report. A failure of one
// courier is logged and does not stop the others; all failures are returned
// together.
func (g *Generator) CourierPersonal(ctx context.Context) error {
	couriers, err := g.store.ListCourierRecipients(ctx)
	if err != nil {
		return &StageError{Stage: StageQuery, Err: fmt.Errorf("list couriers: %w", err)}
	}

	subject := "Отчет за " + formatDate(g.yesterday())

	var errs error
	for _, c := range couriers {
		if err := ctx.Err(); err != nil {
			return multierr.Append(errs, err)
		}

		if c.Email == "" {
			logger.Log.Warn("Courier has no e-mail, report skipped", zap.Int64("courier_id", c.ID))
			continue
		}

		if err := g.courierReport(ctx, c, subject); err != nil {
			stage := stageOf(err, StageBuild)
			metrics.RecordEntityFailure(ReportCourier, stage)
			logger.Log.Error("Courier report failed",
				zap.Int64("courier_id", c.ID),
				zap.String("stage", stage),
				zap.String("kept_file", keptFile(err)),
				zap.Error(err))
			errs = multierr.Append(errs, fmt.Errorf("courier %d: %w", c.ID, err))
		}
	}

	return errs
}

func (g *Generator) courierReport(ctx context.Context, c models.Recipient, subject string) error {
	rows, err := g.store.GetCourierSessions(ctx, c.ID)
	if err != nil {
		return &StageError{Stage: StageQuery, Err: err}
	}
	if len(rows) == 0 {
		logger.Log.Debug("No sessions for courier", zap.Int64("courier_id", c.ID))
		return nil
	}

	_, err = xls.Paginate(ctx, g.dir, rows, courierColumns, g.pageSize, g.mailPages(ReportCourier, c.Email, subject))
	return err
}

// CourierCurators mails the all-couriers report to the operations address.
func (g *Generator) CourierCurators(ctx context.Context) error {
	rows, err := g.store.GetCourierAggregate(ctx)
	if err != nil {
		metrics.RecordEntityFailure(ReportCourierCurators, StageQuery)
		return &StageError{Stage: StageQuery, Err: err}
	}

	subject := "Отчет по курьерам за " + formatDate(g.yesterday())
	pages, err := xls.Paginate(ctx, g.dir, rows, courierAggregateColumns, g.pageSize,
		g.mailPages(ReportCourierCurators, g.opsMail, subject))
	if err != nil {
		stage := stageOf(err, StageBuild)
		metrics.RecordEntityFailure(ReportCourierCurators, stage)
		logger.Log.Error("Curator courier report failed",
			zap.String("stage", stage),
			zap.Int("pages_sent", pages),
			zap.String("kept_file", keptFile(err)),
			zap.Error(err))
		return err
	}

	logger.Log.Info("Curator courier report sent", zap.Int("rows", len(rows)), zap.Int("pages", pages))
	return nil
}

// RestaurantSettlement mails each restaurant its weekly settlement, with a
// copy to the operations address.
func (g *Generator) RestaurantSettlement(ctx context.Context) error {
	restaurants, err := g.store.ListRestaurantRecipients(ctx)
	if err != nil {
		return &StageError{Stage: StageQuery, Err: fmt.Errorf("list restaurants: %w", err)}
	}

	from, to := g.SettlementWindow()
	subject := fmt.Sprintf("Отчет за период %s - %s", formatDate(from), formatDate(to))

	var errs error
	for _, r := range restaurants {
		if err := ctx.Err(); err != nil {
			return multierr.Append(errs, err)
		}

		if r.Email == "" {
			logger.Log.Warn("Restaurant has no e-mail, settlement skipped", zap.Int64("restaurant_id", r.ID))
			continue
		}

		if err := g.settlementReport(ctx, r, from, to, subject); err != nil {
			stage := stageOf(err, StageBuild)
			metrics.RecordEntityFailure(ReportRestaurantSettlement, stage)
			logger.Log.Error("Restaurant settlement failed",
				zap.Int64("restaurant_id", r.ID),
				zap.String("stage", stage),
				zap.Error(err))
			errs = multierr.Append(errs, fmt.Errorf("restaurant %d: %w", r.ID, err))
		}
	}

	return errs
}

func (g *Generator) settlementReport(ctx context.Context, r models.Recipient, from, to time.Time, subject string) error {
	rec, err := g.store.GetRestaurantSettlement(ctx, r.ID, from, to)
	if err != nil {
		return &StageError{Stage: StageQuery, Err: err}
	}

	path, err := writeSettlement(g.dir, r.Name, rec)
	if err != nil {
		return &StageError{Stage: StageBuild, Err: err}
	}
	metrics.RecordFile(ReportRestaurantSettlement)

	var errs error
	for _, addr := range []string{r.Email, g.opsMail} {
		err := g.sender.SendFile(ctx, addr, path, subject)
		metrics.RecordMail(ReportRestaurantSettlement, err)
		if err != nil {
			errs = multierr.Append(errs, &StageError{Stage: StageMail, Err: err})
			continue
		}
		logger.Log.Info("Settlement sent",
			zap.Int64("restaurant_id", r.ID),
			zap.String("to", addr),
			zap.String("file", filepath.Base(path)))
	}

	if errs != nil {
		logger.Log.Warn("Settlement kept for resend",
			zap.Int64("restaurant_id", r.ID),
			zap.String("stage", StageMail),
			zap.String("kept_file", path))
		return errs
	}

	if err := os.Remove(path); err != nil {
		return &StageError{Stage: StageMail, Err: fmt.Errorf("remove sent file: %w", err)}
	}
	return nil
}

// RestaurantOrders writes one restaurant's orders into a kept file and
// registers it for the restaurant.
func (g *Generator) RestaurantOrders(ctx context.Context, restaurantID int64) (models.ReportFile, error) {
	rows, err := g.store.GetRestaurantOrders(ctx, restaurantID)
	if err != nil {
		return models.ReportFile{}, &StageError{Stage: StageQuery, Err: err}
	}
	return persist(ctx, g, ReportRestaurant, models.KindRestaurant, &restaurantID, rows, restaurantColumns)
}

func (g *Generator) RestaurantCurators(ctx context.Context) (models.ReportFile, error) {
	rows, err := g.store.GetRestaurantAggregate(ctx)
	if err != nil {
		return models.ReportFile{}, &StageError{Stage: StageQuery, Err: err}
	}
	return persist(ctx, g, ReportRestaurantCurators, models.KindRestaurantCurators, nil, rows, restaurantAggregateColumns)
}

func (g *Generator) CourierSessions(ctx context.Context, courierID int64) (models.ReportFile, error) {
	rows, err := g.store.GetCourierSessions(ctx, courierID)
	if err != nil {
		return models.ReportFile{}, &StageError{Stage: StageQuery, Err: err}
	}
	return persist(ctx, g, ReportCourier, models.KindCourier, &courierID, rows, courierColumns)
}

func (g *Generator) CourierCuratorsArchive(ctx context.Context) (models.ReportFile, error) {
	rows, err := g.store.GetCourierAggregate(ctx)
	if err != nil {
		return models.ReportFile{}, &StageError{Stage: StageQuery, Err: err}
	}
	return persist(ctx, g, ReportCourierCurators, models.KindCourierCurators, nil, rows, courierAggregateColumns)
}

// persist writes rows to a single sheet, ignoring pagination, and registers
// the file. The file is removed again when registration fails.
func persist[T any](ctx context.Context, g *Generator, report string, kind models.ReportKind, ownerID *int64, rows []T, cols []xls.Column[T]) (models.ReportFile, error) {
	path, err := xls.WriteAll(g.dir, rows, cols)
	if err != nil {
		metrics.RecordEntityFailure(report, StageBuild)
		return models.ReportFile{}, &StageError{Stage: StageBuild, Err: err}
	}
	metrics.RecordFile(report)

	file, err := g.store.RegisterReport(ctx, kind, ownerID, filepath.Base(path), g.today())
	if err != nil {
		_ = os.Remove(path)
		metrics.RecordEntityFailure(report, StageSave)
		return models.ReportFile{}, &StageError{Stage: StageSave, Err: err}
	}

	logger.Log.Info("Report registered",
		zap.String("report", report),
		zap.String("file", file.Filename),
		zap.Int("rows", len(rows)))
	return file, nil
}
