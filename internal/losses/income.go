package losses

import (
	"github.com/rocjay1/tax-analyzer/internal/fiscal"
	"github.com/rocjay1/tax-analyzer/internal/models"
	"github.com/rocjay1/tax-analyzer/internal/summary"
)

// Income is the result of reconstructing yearly profit and loss.
type Income struct {
	Years   []YearIncome
	Skipped int
}

// ReconstructIncome totals net income per financial year. Gaps between the
// first and last year are filled with zero-income years so balances carry
// through them.
func ReconstructIncome(txs []models.ClassifiedTransaction) (Income, error) {
	totals := summary.NewYearTotals()
	skipped := 0
	for _, t := range txs {
		y, err := fiscal.Of(t)
		if err != nil {
			return Income{}, err
		}
		amount, ok := t.SignedAmount()
		if !ok {
			skipped++
			continue
		}
		totals.Add(y.Label(), amount)
	}

	labels := totals.Labels()
	if len(labels) == 0 {
		return Income{Skipped: skipped}, nil
	}
	span, err := fiscal.Range(labels[0], labels[len(labels)-1])
	if err != nil {
		return Income{}, err
	}

	out := Income{Years: make([]YearIncome, 0, len(span)), Skipped: skipped}
	for _, y := range span {
		out.Years = append(out.Years, YearIncome{Year: y, NetIncome: totals.Get(y.Label())})
	}
	return out, nil
}
