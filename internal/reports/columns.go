package reports

import (
	"database/sql"
	"time"

	"github.com/sol1corejz/topgo-reports/internal/models"
	"github.com/sol1corejz/topgo-reports/internal/money"
	"github.com/sol1corejz/topgo-reports/internal/xls"
)

const (
	// SessionNotEnded fills the session end column while the shift is still open.
	SessionNotEnded = "на момент создания отчета сессия не была закончена"
	// DeliveryNotCompleted fills the delivery column of orders not delivered yet.
	DeliveryNotCompleted = ""

	dateLayout     = "2006-01-02"
	datetimeLayout = "2006-01-02 15:04:05"
)

func text[T any](header string, get func(T) string) xls.Column[T] {
	return xls.Column[T]{Header: header, Cell: func(r T) (xls.Cell, error) { return xls.Text(get(r)), nil }}
}

func integer[T any](header string, get func(T) int64) xls.Column[T] {
	return xls.Column[T]{Header: header, Cell: func(r T) (xls.Cell, error) { return xls.Int(get(r)), nil }}
}

// amount shows a minor-unit value in major units.
func amount[T any](header string, get func(T) int64) xls.Column[T] {
	return xls.Column[T]{Header: header, Cell: func(r T) (xls.Cell, error) { return xls.Int(money.Major(get(r))), nil }}
}

func flag[T any](header string, get func(T) bool) xls.Column[T] {
	return xls.Column[T]{Header: header, Cell: func(r T) (xls.Cell, error) { return xls.Bool(get(r)), nil }}
}

func labeled[T any](header string, label func(T) (string, error)) xls.Column[T] {
	return xls.Column[T]{Header: header, Cell: func(r T) (xls.Cell, error) {
		l, err := label(r)
		if err != nil {
			return xls.Cell{}, err
		}
		return xls.Text(l), nil
	}}
}

// embed lifts columns of an embedded record to the outer record type.
func embed[T, E any](cols []xls.Column[E], get func(T) E) []xls.Column[T] {
	out := make([]xls.Column[T], len(cols))
	for i, c := range cols {
		cell := c.Cell
		out[i] = xls.Column[T]{Header: c.Header, Cell: func(r T) (xls.Cell, error) { return cell(get(r)) }}
	}
	return out
}

func concat[T any](groups ...[]xls.Column[T]) []xls.Column[T] {
	var out []xls.Column[T]
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

func formatDate(t time.Time) string { return t.Format(dateLayout) }

func formatDatetime(t time.Time) string { return t.Format(datetimeLayout) }

func optionalTime(v sql.NullString, fallback string) string {
	if !v.Valid {
		return fallback
	}
	return v.String
}

func optionalDatetime(v sql.NullTime, fallback string) string {
	if !v.Valid {
		return fallback
	}
	return formatDatetime(v.Time)
}

type session = models.CourierSessionRecord

var courierColumns = []xls.Column[session]{
	text("день сессии", func(r session) string { return formatDate(r.SessionDay) }),
	text("время начала сессии", func(r session) string { return r.StartTime }),
	text("время конца сессии", func(r session) string { return optionalTime(r.EndRealTime, SessionNotEnded) }),
	integer("номер заказа", func(r session) int64 { return r.OrderID }),
	text("забрано", func(r session) string { return formatDatetime(r.TakeDatetime) }),
	labeled("статус заказа", func(r session) (string, error) { return r.OrderStatus.Label() }),
	text("детали заказа", func(r session) string { return r.Details }),
	flag("большой заказ", func(r session) bool { return r.IsBigOrder }),
	text("время готовки", func(r session) string { return r.CookingTime }),
	text("доставлено", func(r session) string { return optionalDatetime(r.DeliveryDatetime, DeliveryNotCompleted) }),
	amount("стоимость заказа", func(r session) int64 { return r.OrderPrice }),
	text("адрес доставки", func(r session) string { return r.DeliveryAddress }),
	text("комментарий клиента", func(r session) string { return r.ClientComment }),
	labeled("способ оплаты", func(r session) (string, error) { return r.Method.Label() }),
	amount("выплата курьеру", func(r session) int64 { return r.CourierSalary }),
}

type courierTotal = models.CourierAggregateRecord

var courierAggregateColumns = concat(
	[]xls.Column[courierTotal]{
		integer("id курьера", func(r courierTotal) int64 { return r.CourierID }),
		text("фамилия", func(r courierTotal) string { return r.Surname }),
		text("имя", func(r courierTotal) string { return r.Name }),
		text("отчество", func(r courierTotal) string { return r.Patronymic }),
		text("телефон курьера", func(r courierTotal) string { return r.Phone }),
	},
	embed(courierColumns, func(r courierTotal) session { return r.CourierSessionRecord }),
	[]xls.Column[courierTotal]{
		amount("стоимость доставки", func(r courierTotal) int64 { return r.DeliveryCost }),
		text("телефон клиента", func(r courierTotal) string { return r.ClientPhone }),
	},
)

type restaurantOrder = models.RestaurantOrderRecord

var restaurantColumns = []xls.Column[restaurantOrder]{
	integer("номер заказа", func(r restaurantOrder) int64 { return r.OrderID }),
	text("забрано", func(r restaurantOrder) string { return formatDatetime(r.TakeDatetime) }),
	labeled("статус заказа", func(r restaurantOrder) (string, error) { return r.OrderStatus.Label() }),
	text("детали заказа", func(r restaurantOrder) string { return r.Details }),
	flag("большой заказ", func(r restaurantOrder) bool { return r.IsBigOrder }),
	text("время готовки", func(r restaurantOrder) string { return r.CookingTime }),
	text("доставлено", func(r restaurantOrder) string {
		return optionalDatetime(r.DeliveryDatetime, DeliveryNotCompleted)
	}),
	amount("стоимость заказа", func(r restaurantOrder) int64 { return r.OrderPrice }),
	text("адрес доставки", func(r restaurantOrder) string { return r.DeliveryAddress }),
	text("комментарий клиента", func(r restaurantOrder) string { return r.ClientComment }),
	text("телефон клиента", func(r restaurantOrder) string { return r.ClientPhone }),
	labeled("способ оплаты", func(r restaurantOrder) (string, error) { return r.Method.Label() }),
}

type restaurantTotal = models.RestaurantAggregateRecord

var restaurantAggregateColumns = concat(
	[]xls.Column[restaurantTotal]{
		integer("id ресторана", func(r restaurantTotal) int64 { return r.RestaurantID }),
		text("название", func(r restaurantTotal) string { return r.Name }),
		text("телефон ресторана", func(r restaurantTotal) string { return r.Phone }),
		text("адрес ресторана", func(r restaurantTotal) string { return r.Address }),
	},
	embed(restaurantColumns, func(r restaurantTotal) restaurantOrder { return r.RestaurantOrderRecord }),
)
