package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderStatusLabel(t *testing.T) {
	tests := []struct {
		status OrderStatus
		want   string
	}{
		{StatusSuccess, "успешно доставлено"},
		{StatusFailureByRestaurant, "отменено по вине ресторана"},
		{StatusFailureByCourier, "отменено по вине курьера"},
	}
	for _, tt := range tests {
		got, err := tt.status.Label()
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	for _, s := range []OrderStatus{StatusCourierFinding, StatusCourierConfirmation, StatusCooking,
		StatusCookingAndDelivering, StatusDelivering, "", "lost"} {
		got, err := s.Label()
		assert.ErrorIs(t, err, ErrUnmappedStatus, string(s))
		assert.Empty(t, got)
	}
}

func TestPayMethodLabel(t *testing.T) {
	tests := []struct {
		method PayMethod
		want   string
	}{
		{PayCash, "наличными"},
		{PayCard, "картой"},
		{PayAlreadyPayed, "оплачено заранее"},
	}
	for _, tt := range tests {
		got, err := tt.method.Label()
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := PayMethod("crypto").Label()
	assert.ErrorIs(t, err, ErrUnmappedPayMethod)
}

func TestReportKindTable(t *testing.T) {
	table, err := KindRestaurantCurators.Table()
	require.NoError(t, err)
	assert.Equal(t, "restaurants_for_curators_xls_reports", table)
	assert.Equal(t, "", KindRestaurantCurators.OwnerColumn())
	assert.Equal(t, "courier_id", KindCourier.OwnerColumn())

	_, err = ReportKind("payments").Table()
	assert.ErrorIs(t, err, ErrUnknownReportKind)
}
