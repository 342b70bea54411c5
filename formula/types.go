// Package formula holds the payroll formula entity, the static field and
// operator catalogs the builder UI offers, persistence, and the evaluation
// engine that compiles stored expressions and runs them against payroll
// inputs.
package formula

import "time"

// Formula is a named payroll calculation. Key is the stable identifier the
// computation engine references; it is immutable after creation.
// Expression is the stored executable form.
type Formula struct {
	ID          string
	Key         string
	Expression  string
	Description string
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// FieldCategory separates raw payroll inputs from derived outputs.
type FieldCategory string

const (
	CategoryInput      FieldCategory = "input"
	CategoryCalculated FieldCategory = "calculated"
)

// FieldDescriptor is one entry of the field catalog.
type FieldDescriptor struct {
	Identifier string        `json:"identifier"`
	Label      string        `json:"label"`
	Category   FieldCategory `json:"category"`
}

// OperatorDescriptor is an arithmetic operator offered by the builder.
type OperatorDescriptor struct {
	Symbol string `json:"symbol"`
	Label  string `json:"label"`
}

// RoundingDescriptor is a rounding function with its display label and the
// example semantics shown next to the chip.
type RoundingDescriptor struct {
	Identifier string `json:"identifier"`
	Label      string `json:"label"`
	Example    string `json:"example"`
}

// PercentShortcut is a literal multiplier chip, inserted as "* <value>".
type PercentShortcut struct {
	Value float64 `json:"value"`
	Label string  `json:"label"`
}

var inputFields = []FieldDescriptor{
	{"baseSalary", "Base Salary", CategoryInput},
	{"rateNbc584", "Rate (NBC 584)", CategoryInput},
	{"rateNbc594", "Rate (NBC 594)", CategoryInput},
	{"increment", "Salary Increment", CategoryInput},
	{"pera", "PERA", CategoryInput},
	{"overtimeHours", "Overtime Hours", CategoryInput},
	{"absences", "Absences (days)", CategoryInput},
	{"tardiness", "Tardiness (minutes)", CategoryInput},
	{"gsisContribution", "GSIS Contribution", CategoryInput},
	{"philhealthContribution", "PhilHealth Contribution", CategoryInput},
	{"pagibigContribution", "Pag-IBIG Contribution", CategoryInput},
	{"withholdingTax", "Withholding Tax", CategoryInput},
	{"mplLoan", "MPL Loan", CategoryInput},
	{"policyLoan", "GSIS Policy Loan", CategoryInput},
	{"consoLoan", "Consolidated Loan", CategoryInput},
	{"emergencyLoan", "Emergency Loan", CategoryInput},
}

var calculatedFields = []FieldDescriptor{
	{"grossSalary", "Gross Salary", CategoryCalculated},
	{"taxableIncome", "Taxable Income", CategoryCalculated},
	{"totalDeductions", "Total Deductions", CategoryCalculated},
	{"netSalary", "Net Salary", CategoryCalculated},
}

var operators = []OperatorDescriptor{
	{"+", "Add"},
	{"-", "Subtract"},
	{"*", "Multiply"},
	{"/", "Divide"},
}

var roundingFunctions = []RoundingDescriptor{
	{"floor", "Round Down", "Round Down 3.7 = 3"},
	{"ceil", "Round Up", "Round Up 3.2 = 4"},
	{"round", "Round", "Round 3.5 = 4"},
}

var percentShortcuts = []PercentShortcut{
	{0.05, "5%"},
	{0.09, "9%"},
	{0.12, "12%"},
}

// InputFields returns the raw payroll input catalog.
func InputFields() []FieldDescriptor { return clone(inputFields) }

// CalculatedFields returns the derived payroll output catalog.
func CalculatedFields() []FieldDescriptor { return clone(calculatedFields) }

// Fields returns the full catalog, inputs first.
func Fields() []FieldDescriptor {
	return append(InputFields(), CalculatedFields()...)
}

// Operators returns the arithmetic operator catalog.
func Operators() []OperatorDescriptor { return clone(operators) }

// RoundingFunctions returns the rounding function catalog.
func RoundingFunctions() []RoundingDescriptor { return clone(roundingFunctions) }

// PercentShortcuts returns the percentage multiplier catalog.
func PercentShortcuts() []PercentShortcut { return clone(percentShortcuts) }

// FieldIdentifiers returns every catalog identifier, inputs first.
func FieldIdentifiers() []string {
	fields := Fields()
	ids := make([]string, 0, len(fields))
	for _, f := range fields {
		ids = append(ids, f.Identifier)
	}
	return ids
}

func clone[T any](src []T) []T {
	out := make([]T, len(src))
	copy(out, src)
	return out
}
