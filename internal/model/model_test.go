package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"plain", "150.00", "150", false},
		{"negative", "-42.50", "-42.5", false},
		{"currency symbol", "$1,234.56", "1234.56", false},
		{"parenthesized negative", "(12.34)", "-12.34", false},
		{"whitespace", "  99.95  ", "99.95", false},
		{"empty", "", "", true},
		{"garbage", "abc", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseAmount(%q) expected error, got %s", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAmount(%q) unexpected error: %v", tt.input, err)
			}
			if got.String() != tt.want {
				t.Errorf("ParseAmount(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	want := date(2024, time.January, 15)

	inputs := []string{
		"2024-01-15",
		"01/15/2024",
		"2024-01-15T00:00:00Z",
	}
	for _, input := range inputs {
		got, err := ParseDate(input)
		if err != nil {
			t.Errorf("ParseDate(%q) unexpected error: %v", input, err)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("ParseDate(%q) = %s, want %s", input, got, want)
		}
	}

	if _, err := ParseDate("not-a-date"); err == nil {
		t.Error("ParseDate accepted an invalid date")
	}
	if _, err := ParseDate(""); err == nil {
		t.Error("ParseDate accepted an empty string")
	}
}

func TestClassifyType(t *testing.T) {
	if got := ClassifyType(decimal.NewFromInt(100)); got != TypeDeposit {
		t.Errorf("positive amount classified as %s, want %s", got, TypeDeposit)
	}
	if got := ClassifyType(decimal.NewFromInt(-100)); got != TypeWithdrawal {
		t.Errorf("negative amount classified as %s, want %s", got, TypeWithdrawal)
	}
	if got := ClassifyType(decimal.Zero); got != TypeOther {
		t.Errorf("zero amount classified as %s, want %s", got, TypeOther)
	}
}

func TestWithinDateTolerance(t *testing.T) {
	base := date(2024, time.March, 10)

	tests := []struct {
		name          string
		other         time.Time
		toleranceDays int
		want          bool
	}{
		{"same day", base, 3, true},
		{"edge of window", date(2024, time.March, 13), 3, true},
		{"one past window", date(2024, time.March, 14), 3, false},
		{"before within window", date(2024, time.March, 8), 3, true},
		{"zero tolerance same day", base, 0, true},
		{"zero tolerance next day", date(2024, time.March, 11), 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WithinDateTolerance(base, tt.other, tt.toleranceDays); got != tt.want {
				t.Errorf("WithinDateTolerance(%s, %s, %d) = %t, want %t",
					base.Format("2006-01-02"), tt.other.Format("2006-01-02"), tt.toleranceDays, got, tt.want)
			}
		})
	}
}

func TestWithinDateToleranceIgnoresTimeOfDay(t *testing.T) {
	a := time.Date(2024, time.March, 10, 23, 59, 0, 0, time.UTC)
	b := time.Date(2024, time.March, 13, 0, 1, 0, 0, time.UTC)
	if !WithinDateTolerance(a, b, 3) {
		t.Error("dates three calendar days apart should be within a 3-day tolerance regardless of time of day")
	}
}

func TestReconciliationIsBalanced(t *testing.T) {
	rec := &Reconciliation{Difference: decimal.RequireFromString("0.01")}
	if !rec.IsBalanced() {
		t.Error("difference of exactly 0.01 should be within tolerance")
	}

	rec.Difference = decimal.RequireFromString("-0.01")
	if !rec.IsBalanced() {
		t.Error("difference of -0.01 should be within tolerance")
	}

	rec.Difference = decimal.RequireFromString("0.02")
	if rec.IsBalanced() {
		t.Error("difference of 0.02 should not be within tolerance")
	}
}

func TestComputeDifference(t *testing.T) {
	got := ComputeDifference(decimal.RequireFromString("10500.00"), decimal.RequireFromString("10450.00"))
	if !got.Equal(decimal.NewFromInt(50)) {
		t.Errorf("ComputeDifference = %s, want 50", got)
	}
}

func TestLedgerLineAmount(t *testing.T) {
	debit := &LedgerLine{Debit: decimal.NewFromInt(75)}
	if !debit.Amount().Equal(decimal.NewFromInt(75)) {
		t.Errorf("debit line amount = %s, want 75", debit.Amount())
	}

	credit := &LedgerLine{Credit: decimal.NewFromInt(30)}
	if !credit.Amount().Equal(decimal.NewFromInt(30)) {
		t.Errorf("credit line amount = %s, want 30", credit.Amount())
	}
}

func TestStatusValidation(t *testing.T) {
	valid := []struct {
		name string
		ok   bool
	}{
		{"statement", StatementUploaded.IsValid()},
		{"transaction", TransactionUnmatched.IsValid()},
		{"reconciliation", ReconciliationInProgress.IsValid()},
		{"match type", MatchAuto.IsValid()},
		{"adjustment", AdjustmentPending.IsValid()},
	}
	for _, v := range valid {
		if !v.ok {
			t.Errorf("%s status should be valid", v.name)
		}
	}

	if StatementStatus("BOGUS").IsValid() {
		t.Error("unknown statement status should be invalid")
	}
	if ReconciliationStatus("").IsValid() {
		t.Error("empty reconciliation status should be invalid")
	}
}

func TestReconciliationItemValidate(t *testing.T) {
	txnID := int64(1)

	item := &ReconciliationItem{
		ReconciliationID:  1,
		BankTransactionID: &txnID,
		MatchType:         MatchManual,
		Amount:            decimal.NewFromInt(10),
	}
	if err := item.Validate(); err != nil {
		t.Errorf("valid item rejected: %v", err)
	}

	item.BankTransactionID = nil
	if err := item.Validate(); err == nil {
		t.Error("item with neither side referenced should be invalid")
	}

	item.BankTransactionID = &txnID
	item.Amount = decimal.NewFromInt(-10)
	if err := item.Validate(); err == nil {
		t.Error("item with negative amount should be invalid")
	}
}

func TestBankStatementValidate(t *testing.T) {
	stmt := &BankStatement{
		BankAccountID: 1,
		StatementDate: date(2024, time.January, 31),
		PeriodStart:   date(2024, time.January, 1),
		PeriodEnd:     date(2024, time.January, 31),
		Status:        StatementUploaded,
	}
	if err := stmt.Validate(); err != nil {
		t.Errorf("valid statement rejected: %v", err)
	}

	stmt.PeriodEnd = date(2023, time.December, 31)
	if err := stmt.Validate(); err == nil {
		t.Error("statement with period end before start should be invalid")
	}
}
