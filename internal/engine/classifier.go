package engine

import "strings"

// partition is the classified view of one history: income versus expenses,
// plus expenses grouped by normalized category label.
type partition struct {
	income     []Transaction
	expenses   []Transaction
	byCategory map[string][]Transaction
}

// classify splits the history by direction and groups expenses by
// category. Missing or blank categories fold into the Uncategorized
// sentinel bucket; no transaction is dropped or duplicated.
func classify(txns []Transaction) partition {
	p := partition{byCategory: make(map[string][]Transaction)}
	for _, tx := range txns {
		if tx.Direction == DirectionCredit {
			p.income = append(p.income, tx)
			continue
		}
		p.expenses = append(p.expenses, tx)
		cat := normalizeCategory(tx.Category)
		p.byCategory[cat] = append(p.byCategory[cat], tx)
	}
	return p
}

// normalizeCategory lower-cases and trims a category label so that
// "Groceries" and "groceries " count as one category.
func normalizeCategory(label string) string {
	label = strings.ToLower(strings.TrimSpace(label))
	if label == "" {
		return Uncategorized
	}
	return label
}
