package tables

import "github.com/FireMarshmellow/Mellow-labs-dashboard/internal/core"

// Payroll is a payment to an employee.
type Payroll struct {
	core.Meta
	Date     string  `json:"date" db:"date"`
	Employee string  `json:"employee" db:"employee"`
	Amount   float64 `json:"amount" db:"amount"`
	Notes    string  `json:"notes" db:"notes"`
}

var (
	payrollEmployee = core.FieldSpec{Name: "employee", Type: core.FieldText, Required: true}
	payrollAmount   = number("amount")
	payrollNotes    = text("notes")
)

// PayrollSchema describes the payroll kind.
var PayrollSchema = &core.Schema[Payroll]{
	Info:       core.TableInfo{Key: "payroll", Table: "payroll", Label: "Payroll"},
	FieldSpecs: []core.FieldSpec{dateField, payrollEmployee, payrollAmount, payrollNotes},
	Normalize: func(p core.Payload) Payroll {
		return Payroll{
			Date:     p.TextField(dateField),
			Employee: p.TextField(payrollEmployee),
			Amount:   p.NumberField(payrollAmount),
			Notes:    p.TextField(payrollNotes),
		}
	},
	Values: func(r Payroll) []any {
		return []any{r.Date, r.Employee, r.Amount, r.Notes}
	},
	Meta:      func(r *Payroll) *core.Meta { return &r.Meta },
	CSVHeader: []string{"Date", "Employee", "AmountGBP", "Notes"},
	CSVRow: func(r Payroll) []string {
		return []string{r.Date, r.Employee, core.FormatAmount(r.Amount), r.Notes}
	},
}

func init() {
	core.Register(core.Define(PayrollSchema))
}
