package ledger

import "github.com/antonminaichev/cashback-ledger/internal/types/ledger"

type bucket int

const (
	available bucket = iota
	pending
	locked
)

type effect struct {
	bucket bucket
	sign   int64
}

// effects maps each entry kind to the buckets its signed amount moves.
// Kinds with two effects are transfers between buckets and net to zero.
var effects = map[ledger.Kind][]effect{
	ledger.KindCashbackPending:          {{pending, 1}},
	ledger.KindCashbackApproved:         {{available, 1}, {pending, -1}},
	ledger.KindWithdrawalLock:           {{available, 1}, {locked, -1}},
	ledger.KindWithdrawalCompleted:      {{locked, 1}},
	ledger.KindWithdrawalRejectedRefund: {{available, 1}, {locked, -1}},
	ledger.KindManualPayout:             {{available, 1}},
	ledger.KindBonus:                    {{available, 1}},
}

// KnownKind reports whether k has a bucket mapping.
func KnownKind(k ledger.Kind) bool {
	_, ok := effects[k]
	return ok
}

// Fold derives the three balances from per-kind sums of entry amounts.
func Fold(sums map[ledger.Kind]int64) ledger.BalanceDTO {
	var b [3]int64
	for kind, sum := range sums {
		for _, e := range effects[kind] {
			b[e.bucket] += e.sign * sum
		}
	}
	return ledger.BalanceDTO{
		Available: b[available],
		Pending:   b[pending],
		Locked:    b[locked],
	}
}

// NetEffect is how much an entry changes available+pending+locked.
func NetEffect(e ledger.Entry) int64 {
	var net int64
	for _, ef := range effects[e.Kind] {
		net += ef.sign * e.Amount
	}
	return net
}

// SumByKind groups entry amounts the same way storage does.
func SumByKind(entries []ledger.Entry) map[ledger.Kind]int64 {
	sums := make(map[ledger.Kind]int64)
	for _, e := range entries {
		sums[e.Kind] += e.Amount
	}
	return sums
}
