package tables

import "github.com/FireMarshmellow/Mellow-labs-dashboard/internal/core"

// Income is money received, net of processor fees.
type Income struct {
	core.Meta
	Date      string  `json:"date" db:"date"`
	Source    string  `json:"source" db:"source"`
	Processor string  `json:"processor" db:"processor"`
	Amount    float64 `json:"amount" db:"amount"`
	Fees      float64 `json:"fees" db:"fees"`
	Notes     string  `json:"notes" db:"notes"`
}

var (
	incomeSource    = text("source")
	incomeProcessor = text("processor")
	incomeAmount    = number("amount")
	incomeFees      = number("fees")
	incomeNotes     = text("notes")
)

// IncomeSchema describes the income kind.
var IncomeSchema = &core.Schema[Income]{
	Info: core.TableInfo{Key: "income", Table: "incomes", Label: "Income", Attachments: true},
	FieldSpecs: []core.FieldSpec{
		dateField, incomeSource, incomeProcessor, incomeAmount, incomeFees, incomeNotes,
	},
	Normalize: func(p core.Payload) Income {
		return Income{
			Date:      p.TextField(dateField),
			Source:    p.TextField(incomeSource),
			Processor: p.TextField(incomeProcessor),
			Amount:    p.NumberField(incomeAmount),
			Fees:      p.NumberField(incomeFees),
			Notes:     p.TextField(incomeNotes),
		}
	},
	Values: func(r Income) []any {
		return []any{r.Date, r.Source, r.Processor, r.Amount, r.Fees, r.Notes}
	},
	Meta:      func(r *Income) *core.Meta { return &r.Meta },
	CSVHeader: []string{"Date", "Source", "Processor", "AmountGBP", "FeesGBP", "Notes"},
	CSVRow: func(r Income) []string {
		return []string{
			r.Date, r.Source, r.Processor,
			core.FormatAmount(r.Amount), core.FormatAmount(r.Fees),
			r.Notes,
		}
	},
}

func init() {
	core.Register(core.Define(IncomeSchema))
}
