package tables

import "github.com/FireMarshmellow/Mellow-labs-dashboard/internal/core"

// Expense is a purchase. Older clients send order_number and price, so
// those spellings are accepted as aliases.
type Expense struct {
	core.Meta
	Date        string  `json:"date" db:"date"`
	Category    string  `json:"category" db:"category"`
	Seller      string  `json:"seller" db:"seller"`
	Items       string  `json:"items" db:"items"`
	OrderNumber string  `json:"orderNumber" db:"order_number"`
	Total       float64 `json:"total" db:"total"`
	DeliveryFee float64 `json:"deliveryFee" db:"delivery_fee"`
	Notes       string  `json:"notes" db:"notes"`
	Source      string  `json:"source" db:"source"`
	PaidFrom    string  `json:"paidFrom" db:"paid_from"`
}

var (
	expenseCategory    = text("category")
	expenseSeller      = text("seller")
	expenseItems       = text("items")
	expenseOrderNumber = column(text("orderNumber", "order_number"), "order_number")
	expenseTotal       = number("total", "price")
	expenseDeliveryFee = column(number("deliveryFee", "delivery_fee"), "delivery_fee")
	expenseNotes       = text("notes")
	expenseSource      = text("source")
	expensePaidFrom    = column(text("paidFrom", "paid_from"), "paid_from")
)

// ExpenseSchema describes the expenses kind.
var ExpenseSchema = &core.Schema[Expense]{
	Info: core.TableInfo{Key: "expenses", Table: "expenses", Label: "Expenses", Attachments: true},
	FieldSpecs: []core.FieldSpec{
		dateField, expenseCategory, expenseSeller, expenseItems, expenseOrderNumber,
		expenseTotal, expenseDeliveryFee, expenseNotes, expenseSource, expensePaidFrom,
	},
	Normalize: func(p core.Payload) Expense {
		return Expense{
			Date:        p.TextField(dateField),
			Category:    p.TextField(expenseCategory),
			Seller:      p.TextField(expenseSeller),
			Items:       p.TextField(expenseItems),
			OrderNumber: p.TextField(expenseOrderNumber),
			Total:       p.NumberField(expenseTotal),
			DeliveryFee: p.NumberField(expenseDeliveryFee),
			Notes:       p.TextField(expenseNotes),
			Source:      p.TextField(expenseSource),
			PaidFrom:    p.TextField(expensePaidFrom),
		}
	},
	Values: func(r Expense) []any {
		return []any{
			r.Date, r.Category, r.Seller, r.Items, r.OrderNumber,
			r.Total, r.DeliveryFee, r.Notes, r.Source, r.PaidFrom,
		}
	},
	Meta: func(r *Expense) *core.Meta { return &r.Meta },
	CSVHeader: []string{
		"Date", "Category", "Seller", "Item(s)", "Order #",
		"TotalGBP", "DeliveryFeeGBP", "Notes", "Source", "Paid From",
	},
	CSVRow: func(r Expense) []string {
		return []string{
			r.Date, r.Category, r.Seller, r.Items, r.OrderNumber,
			core.FormatAmount(r.Total), core.FormatAmount(r.DeliveryFee),
			r.Notes, r.Source, r.PaidFrom,
		}
	},
}

func init() {
	core.Register(core.Define(ExpenseSchema))
}
