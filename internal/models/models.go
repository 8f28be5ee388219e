package models

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var (
	ErrUnmappedStatus    = errors.New("order status has no report label")
	ErrUnmappedPayMethod = errors.New("pay method has no report label")
	ErrUnknownReportKind = errors.New("unknown report kind")
)

type OrderStatus string

const (
	StatusCourierFinding       OrderStatus = "courier_finding"
	StatusCourierConfirmation  OrderStatus = "courier_confirmation"
	StatusCooking              OrderStatus = "cooking"
	StatusCookingAndDelivering OrderStatus = "cooking_and_delivering"
	StatusDelivering           OrderStatus = "delivering"
	StatusSuccess              OrderStatus = "success"
	StatusFailureByRestaurant  OrderStatus = "failure_by_restaurant"
	StatusFailureByCourier     OrderStatus = "failure_by_courier"
)

// Label is defined only for finished orders. In-flight statuses never reach
// a report view, so seeing one is a data integrity error.
func (s OrderStatus) Label() (string, error) {
	switch s {
	case StatusSuccess:
		return "успешно доставлено", nil
	case StatusFailureByRestaurant:
		return "отменено по вине ресторана", nil
	case StatusFailureByCourier:
		return "отменено по вине курьера", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnmappedStatus, string(s))
	}
}

type PayMethod string

const (
	PayCash         PayMethod = "cash"
	PayCard         PayMethod = "card"
	PayAlreadyPayed PayMethod = "already_payed"
)

func (m PayMethod) Label() (string, error) {
	switch m {
	case PayCash:
		return "наличными", nil
	case PayCard:
		return "картой", nil
	case PayAlreadyPayed:
		return "оплачено заранее", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnmappedPayMethod, string(m))
	}
}

type ReportKind string

const (
	KindCourier            ReportKind = "courier"
	KindCourierCurators    ReportKind = "courier_curators"
	KindRestaurant         ReportKind = "restaurant"
	KindRestaurantCurators ReportKind = "restaurant_curators"
)

// Table returns the registry table of the kind.
func (k ReportKind) Table() (string, error) {
	switch k {
	case KindCourier:
		return "couriers_xls_reports", nil
	case KindCourierCurators:
		return "couriers_for_curators_xls_reports", nil
	case KindRestaurant:
		return "restaurants_xls_reports", nil
	case KindRestaurantCurators:
		return "restaurants_for_curators_xls_reports", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownReportKind, string(k))
	}
}

// OwnerColumn is empty for curator-wide kinds.
func (k ReportKind) OwnerColumn() string {
	switch k {
	case KindCourier:
		return "courier_id"
	case KindRestaurant:
		return "restaurant_id"
	default:
		return ""
	}
}

type Recipient struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type CourierSessionRecord struct {
	CourierID        int64          `db:"courier_id"`
	SessionDay       time.Time      `db:"session_day"`
	StartTime        string         `db:"start_time"`
	EndRealTime      sql.NullString `db:"end_real_time"`
	OrderID          int64          `db:"order_id"`
	TakeDatetime     time.Time      `db:"take_datetime"`
	OrderStatus      OrderStatus    `db:"order_status"`
	Details          string         `db:"details"`
	IsBigOrder       bool           `db:"is_big_order"`
	CookingTime      string         `db:"cooking_time"`
	DeliveryDatetime sql.NullTime   `db:"delivery_datetime"`
	CourierSalary    int64          `db:"courier_salary"`
	OrderPrice       int64          `db:"order_price"`
	DeliveryAddress  string         `db:"delivery_address"`
	ClientComment    string         `db:"client_comment"`
	Method           PayMethod      `db:"method"`
}

type CourierAggregateRecord struct {
	CourierSessionRecord
	Phone        string `db:"phone"`
	Name         string `db:"name"`
	Surname      string `db:"surname"`
	Patronymic   string `db:"patronymic"`
	DeliveryCost int64  `db:"delivery_cost"`
	ClientPhone  string `db:"client_phone"`
}

type RestaurantOrderRecord struct {
	RestaurantID     int64        `db:"restaurant_id"`
	OrderID          int64        `db:"order_id"`
	TakeDatetime     time.Time    `db:"take_datetime"`
	OrderStatus      OrderStatus  `db:"order_status"`
	Details          string       `db:"details"`
	IsBigOrder       bool         `db:"is_big_order"`
	CookingTime      string       `db:"cooking_time"`
	DeliveryDatetime sql.NullTime `db:"delivery_datetime"`
	OrderPrice       int64        `db:"order_price"`
	DeliveryAddress  string       `db:"delivery_address"`
	ClientComment    string       `db:"client_comment"`
	ClientPhone      string       `db:"client_phone"`
	Method           PayMethod    `db:"method"`
}

type RestaurantAggregateRecord struct {
	RestaurantOrderRecord
	Name    string `db:"name"`
	Phone   string `db:"phone"`
	Address string `db:"address"`
}

// RestaurantSettlementRecord holds minor-unit sums over the settlement window.
type RestaurantSettlementRecord struct {
	RestaurantID      int64
	From              time.Time
	To                time.Time
	CardCount         int64
	CardSum           int64
	CashCount         int64
	CashSum           int64
	PrepaidCount      int64
	PrepaidSum        int64
	RejectedCount     int64
	RejectedSum       int64
	CourierShareTotal int64
}

type ReportFile struct {
	ID           int64      `json:"id"`
	Kind         ReportKind `json:"kind"`
	OwnerID      *int64     `json:"owner_id,omitempty"`
	Filename     string     `json:"filename"`
	CreationDate time.Time  `json:"creation_date"`
}
