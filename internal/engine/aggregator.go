package engine

import (
	"sort"
	"time"
)

// periodBucket accumulates one calendar month of activity. Buckets exist
// only for months that actually contain transactions.
type periodBucket struct {
	key        string // YYYY-MM, UTC
	creditSum  float64
	debitSum   float64
	count      int
	categories map[string]float64 // per-category debit totals
}

const periodLayout = "2006-01"

// periodKey truncates a timestamp to its UTC calendar month.
func periodKey(t time.Time) string {
	return t.UTC().Format(periodLayout)
}

// aggregate buckets the history by calendar month and returns the buckets
// sorted ascending by period key. Ordering is load-bearing: downstream
// stability statistics are computed over consecutive periods. Transactions
// with identical timestamps are all retained; within a bucket they are
// only ever summed, never compared.
func aggregate(txns []Transaction) []periodBucket {
	byKey := make(map[string]*periodBucket)
	for _, tx := range txns {
		key := periodKey(tx.Date)
		b, ok := byKey[key]
		if !ok {
			b = &periodBucket{key: key, categories: make(map[string]float64)}
			byKey[key] = b
		}
		b.count++
		switch tx.Direction {
		case DirectionCredit:
			b.creditSum += tx.Amount
		case DirectionDebit:
			b.debitSum += tx.Amount
			b.categories[normalizeCategory(tx.Category)] += tx.Amount
		}
	}

	buckets := make([]periodBucket, 0, len(byKey))
	for _, b := range byKey {
		buckets = append(buckets, *b)
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].key < buckets[j].key })
	return buckets
}

// monthSpan counts calendar months from the first to the last period key
// inclusive, with a floor of 1 so a single-month history never divides
// by zero.
func monthSpan(first, last string) int {
	a, errA := time.Parse(periodLayout, first)
	b, errB := time.Parse(periodLayout, last)
	if errA != nil || errB != nil {
		return 1
	}
	months := (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month()) + 1
	if months < 1 {
		return 1
	}
	return months
}
