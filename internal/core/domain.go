package core

import (
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

const (
	Income  TxType = "income"
	Expense TxType = "expense"
)

const (
	Food          Category = "Food"
	Transport     Category = "Transport"
	Salary        Category = "Salary"
	PocketMoney   Category = "Pocket Money"
	Lending       Category = "Lending"
	Entertainment Category = "Entertainment"
	Shopping      Category = "Shopping"
	Bills         Category = "Bills"
	Healthcare    Category = "Healthcare"
	Other         Category = "Other"
)

type (
	// TxType tells whether a transaction adds to or draws from the balance.
	TxType string

	// Category is one of the fixed ledger categories, see Categories.
	Category string

	// TransactionFields is everything a user can write on a transaction.
	// It is the payload of inserts and updates; the id belongs to the store.
	TransactionFields struct {
		Amount   decimal.Decimal `json:"amount"`
		Category Category        `json:"category" validate:"category"`
		Type     TxType          `json:"type" validate:"txtype"`
		Note     string          `json:"note"`
		Date     time.Time       `json:"date" validate:"required"`
	}

	// Transaction is a stored ledger record owned by a single user.
	Transaction struct {
		ID string `json:"id"`
		TransactionFields
	}

	// Profile is the owner of a record set.
	Profile struct {
		UserID      string `json:"userId"`
		DisplayName string `json:"displayName"`
		Email       string `json:"email"`
	}

	// Scope restricts a live query to calendar days. A zero bound is open.
	// End is inclusive through the end of its day.
	Scope struct {
		Start time.Time `json:"start"`
		End   time.Time `json:"end"`
	}
)

var categories = []Category{
	Food, Transport, Salary, PocketMoney, Lending,
	Entertainment, Shopping, Bills, Healthcare, Other,
}

// Categories returns the fixed category enumeration in display order.
func Categories() []Category {
	return append([]Category(nil), categories...)
}

// Valid reports whether c is one of the fixed categories.
func (c Category) Valid() bool {
	for _, known := range categories {
		if c == known {
			return true
		}
	}
	return false
}

// ParseCategory matches s against the enumeration, ignoring case and
// surrounding blanks.
func ParseCategory(s string) (Category, error) {
	s = strings.TrimSpace(s)
	for _, c := range categories {
		if strings.EqualFold(string(c), s) {
			return c, nil
		}
	}
	return "", ErrInvalidCategory
}

// Valid reports whether t is income or expense.
func (t TxType) Valid() bool {
	return t == Income || t == Expense
}

// ParseTxType parses "income" or "expense", ignoring case.
func ParseTxType(s string) (TxType, error) {
	switch TxType(strings.ToLower(strings.TrimSpace(s))) {
	case Income:
		return Income, nil
	case Expense:
		return Expense, nil
	}
	return "", ErrInvalidType
}

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidCategory = errors.New("invalid category")
	ErrInvalidType     = errors.New("invalid transaction type")
	ErrInvalidDate     = errors.New("invalid date")
)

var validate *validator.Validate

func init() {
	validate = validator.New()

	_ = validate.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return Category(fl.Field().String()).Valid()
	})
	_ = validate.RegisterValidation("txtype", func(fl validator.FieldLevel) bool {
		return TxType(fl.Field().String()).Valid()
	})
}

// Validate checks a record before it may be written to a store.
func (f TransactionFields) Validate() error {
	if f.Amount.IsNegative() {
		return &ValidationError{Field: "amount", Reason: ErrInvalidAmount.Error()}
	}
	if err := validate.Struct(f); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return &ValidationError{Field: strings.ToLower(fe.Field()), Reason: reasonFor(fe)}
		}
		return &ValidationError{Reason: err.Error()}
	}
	return nil
}

func reasonFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "category":
		return ErrInvalidCategory.Error()
	case "txtype":
		return ErrInvalidType.Error()
	case "required":
		return "missing value"
	}
	return "failed " + fe.Tag() + " check"
}

// IsZero reports whether the scope is unbounded on both sides.
func (s Scope) IsZero() bool {
	return s.Start.IsZero() && s.End.IsZero()
}

// Bounds returns the half-open instant range [from, until) the scope covers.
// Zero values mean the side is open.
func (s Scope) Bounds() (from, until time.Time) {
	if !s.Start.IsZero() {
		from = startOfDay(s.Start)
	}
	if !s.End.IsZero() {
		until = startOfDay(s.End).AddDate(0, 0, 1)
	}
	return from, until
}

// Contains reports whether t falls inside the scope.
func (s Scope) Contains(t time.Time) bool {
	from, until := s.Bounds()
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !until.IsZero() && !t.Before(until) {
		return false
	}
	return true
}

// Validate rejects a scope whose end precedes its start.
func (s Scope) Validate() error {
	if !s.Start.IsZero() && !s.End.IsZero() && startOfDay(s.End).Before(startOfDay(s.Start)) {
		return &ValidationError{Field: "end", Reason: "end date must not be before start date"}
	}
	return nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
