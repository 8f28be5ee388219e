package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/lib/pq"
	"github.com/sol1corejz/topgo-reports/internal/logger"
	"github.com/sol1corejz/topgo-reports/internal/models"
	"go.uber.org/zap"
)

var (
	ErrConnectionFailed    = errors.New("db connection failed")
	ErrCreatingTableFailed = errors.New("creating table failed")
	ErrReportNotFound      = errors.New("report not found")
)

type Storage struct {
	DB *sql.DB
}

// Open accepts "pgx" (jackc/pgx stdlib) or "postgres" (lib/pq).
func Open(ctx context.Context, driver, uri string) (*Storage, error) {
	if uri == "" {
		return nil, ErrConnectionFailed
	}

	db, err := sql.Open(driver, uri)
	if err != nil {
		logger.Log.Error("Error opening database connection", zap.Error(err))
		return nil, ErrConnectionFailed
	}

	if err := db.PingContext(ctx); err != nil {
		logger.Log.Error("Error pinging database", zap.Error(err))
		db.Close()
		return nil, ErrConnectionFailed
	}

	return New(db), nil
}

func New(db *sql.DB) *Storage {
	return &Storage{DB: db}
}

func (s *Storage) Close() error {
	return s.DB.Close()
}

// Init creates the report registry tables. The views and process_approvals()
// belong to the marketplace schema and are expected to exist already.
func (s *Storage) Init(ctx context.Context) error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS couriers_xls_reports (
			id BIGSERIAL PRIMARY KEY NOT NULL,
			courier_id BIGINT NOT NULL,
			filename VARCHAR(255) UNIQUE NOT NULL,
			creation_date DATE NOT NULL DEFAULT CURRENT_DATE
		);`,
		`CREATE TABLE IF NOT EXISTS couriers_for_curators_xls_reports (
			id BIGSERIAL PRIMARY KEY NOT NULL,
			filename VARCHAR(255) UNIQUE NOT NULL,
			creation_date DATE NOT NULL DEFAULT CURRENT_DATE
		);`,
		`CREATE TABLE IF NOT EXISTS restaurants_xls_reports (
			id BIGSERIAL PRIMARY KEY NOT NULL,
			restaurant_id BIGINT NOT NULL,
			filename VARCHAR(255) UNIQUE NOT NULL,
			creation_date DATE NOT NULL DEFAULT CURRENT_DATE
		);`,
		`CREATE TABLE IF NOT EXISTS restaurants_for_curators_xls_reports (
			id BIGSERIAL PRIMARY KEY NOT NULL,
			filename VARCHAR(255) UNIQUE NOT NULL,
			creation_date DATE NOT NULL DEFAULT CURRENT_DATE
		);`,
	}

	for _, table := range tables {
		if _, err := s.DB.ExecContext(ctx, table); err != nil {
			logger.Log.Error("Error creating table", zap.Error(err))
			return ErrCreatingTableFailed
		}
	}

	return nil
}

// ListCourierRecipients returns every non-deleted courier; Email is empty when
// the courier has none registered.
func (s *Storage) ListCourierRecipients(ctx context.Context) ([]models.Recipient, error) {
	return s.listRecipients(ctx, `
		SELECT id, name, COALESCE(email, '') FROM couriers WHERE is_deleted = false ORDER BY id;
	`)
}

func (s *Storage) ListRestaurantRecipients(ctx context.Context) ([]models.Recipient, error) {
	return s.listRecipients(ctx, `
		SELECT id, name, COALESCE(email, '') FROM restaurants ORDER BY id;
	`)
}

func (s *Storage) listRecipients(ctx context.Context, query string) ([]models.Recipient, error) {
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recipients []models.Recipient
	for rows.Next() {
		var r models.Recipient
		if err = rows.Scan(&r.ID, &r.Name, &r.Email); err != nil {
			return nil, err
		}
		recipients = append(recipients, r)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return recipients, nil
}

const courierSessionColumns = `courier_id, session_day, start_time::text, end_real_time::text,
	order_id, take_datetime, order_status::text, details, is_big_order, cooking_time::text,
	delivery_datetime, courier_salary, order_price, delivery_address, client_comment, method::text`

func (s *Storage) GetCourierSessions(ctx context.Context, courierID int64) ([]models.CourierSessionRecord, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT `+courierSessionColumns+` FROM courier_exel WHERE courier_id = $1 ORDER BY session_day, order_id;
	`, courierID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.CourierSessionRecord
	for rows.Next() {
		var r models.CourierSessionRecord
		if err = rows.Scan(courierSessionFields(&r)...); err != nil {
			return nil, err
		}
		records = append(records, r)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

func (s *Storage) GetCourierAggregate(ctx context.Context) ([]models.CourierAggregateRecord, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT `+courierSessionColumns+`, phone, name, surname, patronymic, delivery_cost, client_phone
		FROM courier_exel_total ORDER BY courier_id, session_day, order_id;
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.CourierAggregateRecord
	for rows.Next() {
		var r models.CourierAggregateRecord
		dest := append(courierSessionFields(&r.CourierSessionRecord),
			&r.Phone, &r.Name, &r.Surname, &r.Patronymic, &r.DeliveryCost, &r.ClientPhone)
		if err = rows.Scan(dest...); err != nil {
			return nil, err
		}
		records = append(records, r)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

func courierSessionFields(r *models.CourierSessionRecord) []any {
	return []any{
		&r.CourierID, &r.SessionDay, &r.StartTime, &r.EndRealTime,
		&r.OrderID, &r.TakeDatetime, &r.OrderStatus, &r.Details, &r.IsBigOrder, &r.CookingTime,
		&r.DeliveryDatetime, &r.CourierSalary, &r.OrderPrice, &r.DeliveryAddress, &r.ClientComment, &r.Method,
	}
}

const restaurantOrderColumns = `restaurant_id, order_id, take_datetime, order_status::text, details,
	is_big_order, cooking_time::text, delivery_datetime, order_price, delivery_address,
	client_comment, client_phone, method::text`

func restaurantOrderFields(r *models.RestaurantOrderRecord) []any {
	return []any{
		&r.RestaurantID, &r.OrderID, &r.TakeDatetime, &r.OrderStatus, &r.Details,
		&r.IsBigOrder, &r.CookingTime, &r.DeliveryDatetime, &r.OrderPrice, &r.DeliveryAddress,
		&r.ClientComment, &r.ClientPhone, &r.Method,
	}
}

func (s *Storage) GetRestaurantOrders(ctx context.Context, restaurantID int64) ([]models.RestaurantOrderRecord, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT `+restaurantOrderColumns+` FROM restaurant_exel WHERE restaurant_id = $1 ORDER BY take_datetime, order_id;
	`, restaurantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.RestaurantOrderRecord
	for rows.Next() {
		var r models.RestaurantOrderRecord
		if err = rows.Scan(restaurantOrderFields(&r)...); err != nil {
			return nil, err
		}
		records = append(records, r)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

func (s *Storage) GetRestaurantAggregate(ctx context.Context) ([]models.RestaurantAggregateRecord, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT `+restaurantOrderColumns+`, name, phone, address
		FROM restaurant_exel_total ORDER BY restaurant_id, take_datetime, order_id;
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.RestaurantAggregateRecord
	for rows.Next() {
		var r models.RestaurantAggregateRecord
		dest := append(restaurantOrderFields(&r.RestaurantOrderRecord), &r.Name, &r.Phone, &r.Address)
		if err = rows.Scan(dest...); err != nil {
			return nil, err
		}
		records = append(records, r)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

// GetRestaurantSettlement aggregates finished orders taken within [from, to]
// (dates, inclusive).
func (s *Storage) GetRestaurantSettlement(ctx context.Context, restaurantID int64, from, to time.Time) (models.RestaurantSettlementRecord, error) {
	rec := models.RestaurantSettlementRecord{RestaurantID: restaurantID, From: from, To: to}

	byMethod := []struct {
		method models.PayMethod
		count  *int64
		sum    *int64
	}{
		{models.PayCard, &rec.CardCount, &rec.CardSum},
		{models.PayCash, &rec.CashCount, &rec.CashSum},
		{models.PayAlreadyPayed, &rec.PrepaidCount, &rec.PrepaidSum},
	}

	for _, m := range byMethod {
		err := s.DB.QueryRowContext(ctx, `
			SELECT COUNT(*), COALESCE(SUM(order_price), 0) FROM orders_history
			WHERE restaurant_id = $1 AND method::text = $2 AND status::text = $3
			AND take_datetime::date BETWEEN $4::date AND $5::date;
		`, restaurantID, string(m.method), string(models.StatusSuccess), from, to).Scan(m.count, m.sum)
		if err != nil {
			return models.RestaurantSettlementRecord{}, fmt.Errorf("%s orders: %w", m.method, err)
		}
	}

	err := s.DB.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(order_price), 0) FROM orders_history
		WHERE restaurant_id = $1 AND status::text IN ($2, $3)
		AND take_datetime::date BETWEEN $4::date AND $5::date;
	`, restaurantID, string(models.StatusFailureByRestaurant), string(models.StatusFailureByCourier), from, to).
		Scan(&rec.RejectedCount, &rec.RejectedSum)
	if err != nil {
		return models.RestaurantSettlementRecord{}, fmt.Errorf("rejected orders: %w", err)
	}

	err = s.DB.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(courier_share), 0) FROM orders_history
		WHERE restaurant_id = $1 AND status::text = $2
		AND take_datetime::date BETWEEN $3::date AND $4::date;
	`, restaurantID, string(models.StatusSuccess), from, to).Scan(&rec.CourierShareTotal)
	if err != nil {
		return models.RestaurantSettlementRecord{}, fmt.Errorf("courier share: %w", err)
	}

	return rec, nil
}

func (s *Storage) ProcessApprovals(ctx context.Context) error {
	_, err := s.DB.ExecContext(ctx, `SELECT process_approvals();`)
	return err
}

// RegisterReport records a persisted file; ownerID must be nil for
// curator-wide kinds.
func (s *Storage) RegisterReport(ctx context.Context, kind models.ReportKind, ownerID *int64, filename string, date time.Time) (models.ReportFile, error) {
	table, err := kind.Table()
	if err != nil {
		return models.ReportFile{}, err
	}

	report := models.ReportFile{Kind: kind, OwnerID: ownerID, Filename: filename, CreationDate: date}

	col := kind.OwnerColumn()
	switch {
	case col != "" && ownerID != nil:
		err = s.DB.QueryRowContext(ctx,
			`INSERT INTO `+table+` (`+col+`, filename, creation_date) VALUES ($1, $2, $3) RETURNING id;`,
			*ownerID, filename, date).Scan(&report.ID)
	case col == "" && ownerID == nil:
		err = s.DB.QueryRowContext(ctx,
			`INSERT INTO `+table+` (filename, creation_date) VALUES ($1, $2) RETURNING id;`,
			filename, date).Scan(&report.ID)
	default:
		return models.ReportFile{}, fmt.Errorf("report kind %s: owner mismatch", kind)
	}
	if err != nil {
		return models.ReportFile{}, err
	}

	return report, nil
}

// ListReports returns registered files of the kind, restricted to owners when
// any are given.
func (s *Storage) ListReports(ctx context.Context, kind models.ReportKind, owners ...int64) ([]models.ReportFile, error) {
	table, err := kind.Table()
	if err != nil {
		return nil, err
	}

	col := kind.OwnerColumn()
	var rows *sql.Rows
	switch {
	case col == "":
		rows, err = s.DB.QueryContext(ctx,
			`SELECT id, NULL::bigint, filename, creation_date FROM `+table+` ORDER BY creation_date, id;`)
	case len(owners) == 0:
		rows, err = s.DB.QueryContext(ctx,
			`SELECT id, `+col+`, filename, creation_date FROM `+table+` ORDER BY creation_date, id;`)
	default:
		rows, err = s.DB.QueryContext(ctx,
			`SELECT id, `+col+`, filename, creation_date FROM `+table+` WHERE `+col+` = ANY($1) ORDER BY creation_date, id;`,
			pq.Array(owners))
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []models.ReportFile
	for rows.Next() {
		r := models.ReportFile{Kind: kind}
		var owner sql.NullInt64
		if err = rows.Scan(&r.ID, &owner, &r.Filename, &r.CreationDate); err != nil {
			return nil, err
		}
		if owner.Valid {
			id := owner.Int64
			r.OwnerID = &id
		}
		reports = append(reports, r)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return reports, nil
}

func (s *Storage) GetReport(ctx context.Context, kind models.ReportKind, filename string) (models.ReportFile, error) {
	table, err := kind.Table()
	if err != nil {
		return models.ReportFile{}, err
	}

	owner := "NULL::bigint"
	if col := kind.OwnerColumn(); col != "" {
		owner = col
	}

	r := models.ReportFile{Kind: kind}
	var ownerID sql.NullInt64
	err = s.DB.QueryRowContext(ctx,
		`SELECT id, `+owner+`, filename, creation_date FROM `+table+` WHERE filename = $1;`,
		filename).Scan(&r.ID, &ownerID, &r.Filename, &r.CreationDate)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ReportFile{}, ErrReportNotFound
		}
		return models.ReportFile{}, err
	}
	if ownerID.Valid {
		id := ownerID.Int64
		r.OwnerID = &id
	}

	return r, nil
}
