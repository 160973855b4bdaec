package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"ledger/internal/core"
)

func tx(id string, amount int64, typ core.TxType, cat core.Category, date string) core.Transaction {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		panic(err)
	}
	return core.Transaction{
		ID: id,
		TransactionFields: core.TransactionFields{
			Amount:   decimal.NewFromInt(amount),
			Category: cat,
			Type:     typ,
			Date:     d,
		},
	}
}

func ids(records []core.Transaction) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }
