package storage

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sol1corejz/topgo-reports/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*Storage, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return New(db), mock
}

func TestInit(t *testing.T) {
	s, mock := newMock(t)
	for _, table := range []string{
		"couriers_xls_reports",
		"couriers_for_curators_xls_reports",
		"restaurants_xls_reports",
		"restaurants_for_curators_xls_reports",
	} {
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS " + table + " ").
			WillReturnResult(sqlmock.NewResult(0, 0))
	}

	require.NoError(t, s.Init(context.Background()))
}

func TestInit_Fails(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec("CREATE TABLE").WillReturnError(errors.New("permission denied"))

	assert.ErrorIs(t, s.Init(context.Background()), ErrCreatingTableFailed)
}

func TestListCourierRecipients(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM couriers WHERE is_deleted = false")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email"}).
			AddRow(1, "Иван", "ivan@topgo.test").
			AddRow(2, "Петр", ""))

	got, err := s.ListCourierRecipients(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.Recipient{
		{ID: 1, Name: "Иван", Email: "ivan@topgo.test"},
		{ID: 2, Name: "Петр"},
	}, got)
}

func TestGetCourierSessions(t *testing.T) {
	s, mock := newMock(t)
	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	take := day.Add(10 * time.Hour)
	delivered := take.Add(40 * time.Minute)

	cols := []string{"courier_id", "session_day", "start_time", "end_real_time", "order_id", "take_datetime",
		"order_status", "details", "is_big_order", "cooking_time", "delivery_datetime", "courier_salary",
		"order_price", "delivery_address", "client_comment", "method"}
	mock.ExpectQuery(regexp.QuoteMeta("FROM courier_exel WHERE courier_id = $1")).
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(9, day, "09:00:00", nil, 100, take, "success", "пицца", false, "00:20:00", delivered, 15000, 120000, "ул. Ленина 1", "", "card").
			AddRow(9, day, "09:00:00", "18:00:00", 101, take, "failure_by_courier", "суши", true, "00:30:00", nil, 0, 90000, "ул. Мира 2", "домофон", "cash"))

	got, err := s.GetCourierSessions(context.Background(), 9)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.False(t, got[0].EndRealTime.Valid)
	assert.True(t, got[0].DeliveryDatetime.Valid)
	assert.Equal(t, models.StatusSuccess, got[0].OrderStatus)
	assert.Equal(t, models.PayCard, got[0].Method)
	assert.Equal(t, int64(120000), got[0].OrderPrice)

	assert.Equal(t, sql.NullString{String: "18:00:00", Valid: true}, got[1].EndRealTime)
	assert.False(t, got[1].DeliveryDatetime.Valid)
	assert.True(t, got[1].IsBigOrder)
}

func TestGetRestaurantSettlement(t *testing.T) {
	s, mock := newMock(t)
	ctx := context.Background()
	from := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 17, 0, 0, 0, 0, time.UTC)

	byMethod := []struct {
		method string
		count  int64
		sum    int64
	}{
		{"card", 2, 100000},
		{"cash", 1, 30000},
		{"already_payed", 0, 0},
	}
	for _, m := range byMethod {
		mock.ExpectQuery(regexp.QuoteMeta("method::text = $2 AND status::text = $3")).
			WithArgs(int64(3), m.method, "success", from, to).
			WillReturnRows(sqlmock.NewRows([]string{"count", "sum"}).AddRow(m.count, m.sum))
	}
	mock.ExpectQuery(regexp.QuoteMeta("status::text IN ($2, $3)")).
		WithArgs(int64(3), "failure_by_restaurant", "failure_by_courier", from, to).
		WillReturnRows(sqlmock.NewRows([]string{"count", "sum"}).AddRow(1, 45000))
	mock.ExpectQuery(regexp.QuoteMeta("SUM(courier_share)")).
		WithArgs(int64(3), "success", from, to).
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(50000))

	rec, err := s.GetRestaurantSettlement(ctx, 3, from, to)
	require.NoError(t, err)
	assert.Equal(t, models.RestaurantSettlementRecord{
		RestaurantID:      3,
		From:              from,
		To:                to,
		CardCount:         2,
		CardSum:           100000,
		CashCount:         1,
		CashSum:           30000,
		RejectedCount:     1,
		RejectedSum:       45000,
		CourierShareTotal: 50000,
	}, rec)
}

func TestGetRestaurantSettlement_QueryFails(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery("orders_history").WillReturnError(errors.New("relation does not exist"))

	_, err := s.GetRestaurantSettlement(context.Background(), 3, time.Now(), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "card orders")
}

func TestProcessApprovals(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("SELECT process_approvals();")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.ProcessApprovals(context.Background()))
}

func TestRegisterReport(t *testing.T) {
	s, mock := newMock(t)
	ctx := context.Background()
	date := time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC)
	owner := int64(4)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO restaurants_xls_reports (restaurant_id, filename, creation_date)")).
		WithArgs(owner, "a.xlsx", date).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO couriers_for_curators_xls_reports (filename, creation_date)")).
		WithArgs("b.xlsx", date).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(12))

	got, err := s.RegisterReport(ctx, models.KindRestaurant, &owner, "a.xlsx", date)
	require.NoError(t, err)
	assert.Equal(t, int64(11), got.ID)
	assert.Equal(t, &owner, got.OwnerID)

	got, err = s.RegisterReport(ctx, models.KindCourierCurators, nil, "b.xlsx", date)
	require.NoError(t, err)
	assert.Equal(t, int64(12), got.ID)
	assert.Nil(t, got.OwnerID)

	_, err = s.RegisterReport(ctx, models.KindCourier, nil, "c.xlsx", date)
	assert.Error(t, err)

	_, err = s.RegisterReport(ctx, models.ReportKind("payments"), nil, "d.xlsx", date)
	assert.ErrorIs(t, err, models.ErrUnknownReportKind)
}

func TestListReports(t *testing.T) {
	s, mock := newMock(t)
	date := time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM couriers_xls_reports WHERE courier_id = ANY($1)")).
		WithArgs("{5,6}").
		WillReturnRows(sqlmock.NewRows([]string{"id", "courier_id", "filename", "creation_date"}).
			AddRow(1, 5, "a.xlsx", date).
			AddRow(2, 6, "b.xlsx", date))
	mock.ExpectQuery(regexp.QuoteMeta("FROM restaurants_for_curators_xls_reports ORDER BY")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "owner", "filename", "creation_date"}).
			AddRow(3, nil, "c.xlsx", date))

	got, err := s.ListReports(context.Background(), models.KindCourier, 5, 6)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.NotNil(t, got[1].OwnerID)
	assert.Equal(t, int64(6), *got[1].OwnerID)
	assert.Equal(t, models.KindCourier, got[1].Kind)

	got, err = s.ListReports(context.Background(), models.KindRestaurantCurators)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Nil(t, got[0].OwnerID)
	assert.Equal(t, "c.xlsx", got[0].Filename)
}

func TestGetReport_NotFound(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM couriers_xls_reports WHERE filename = $1")).
		WithArgs("x.xlsx").
		WillReturnError(sql.ErrNoRows)

	_, err := s.GetReport(context.Background(), models.KindCourier, "x.xlsx")
	assert.ErrorIs(t, err, ErrReportNotFound)
}
