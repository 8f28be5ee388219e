package reports

import (
	"fmt"
	"os"

	"github.com/sol1corejz/topgo-reports/internal/models"
	"github.com/sol1corejz/topgo-reports/internal/money"
	"github.com/sol1corejz/topgo-reports/internal/xls"
)

// settlementLines is the narrative written to A1..A8. Amounts are in major
// units.
func settlementLines(name string, rec models.RestaurantSettlementRecord) []string {
	return []string{
		fmt.Sprintf("Отчет ресторана %s за период с %s по %s", name, formatDate(rec.From), formatDate(rec.To)),
		fmt.Sprintf("Заказов оплачено картой: %d на сумму %d руб.", rec.CardCount, money.Major(rec.CardSum)),
		fmt.Sprintf("Заказов оплачено наличными: %d на сумму %d руб.", rec.CashCount, money.Major(rec.CashSum)),
		fmt.Sprintf("Заказов оплачено заранее: %d на сумму %d руб.", rec.PrepaidCount, money.Major(rec.PrepaidSum)),
		fmt.Sprintf("Отменено заказов: %d на сумму %d руб.", rec.RejectedCount, money.Major(rec.RejectedSum)),
		fmt.Sprintf("Доля курьеров за доставку: %d руб.", money.Major(rec.CourierShareTotal)),
		fmt.Sprintf("Комиссия сервиса (%d%% от оплат картой): %d руб.", money.CommissionPercent, money.Commission(rec.CardSum)),
		fmt.Sprintf("Итого к выплате ресторану: %d руб.", money.Payable(rec.CourierShareTotal, rec.CardSum)),
	}
}

// writeSettlement does not paginate: the narrative goes to fixed cells of a
// single sheet.
func writeSettlement(dir, name string, rec models.RestaurantSettlementRecord) (string, error) {
	doc, err := xls.Create(dir)
	if err != nil {
		return "", err
	}

	for i, line := range settlementLines(name, rec) {
		if err := doc.SetText(fmt.Sprintf("A%d", i+1), line); err != nil {
			doc.Discard()
			return "", err
		}
	}

	if err := doc.Save(); err != nil {
		_ = os.Remove(doc.Path())
		return "", err
	}
	return doc.Path(), nil
}
