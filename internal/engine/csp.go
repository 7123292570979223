package engine

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/benmercer/finboard/internal/domain"
	"github.com/benmercer/finboard/internal/money"
)

// BucketAmounts maps each CSP bucket to a spend total.
type BucketAmounts map[domain.CategoryBucket]decimal.Decimal

// Actuals are the observed income and bucket totals for the scored window.
type Actuals struct {
	Income  decimal.Decimal `json:"income"`
	Buckets BucketAmounts   `json:"buckets"`
}

// Draft holds the what-if overrides. Nil fields fall through to the
// actual values.
type Draft struct {
	Income  *decimal.Decimal                    `json:"income,omitempty"`
	Buckets map[domain.CategoryBucket]*decimal.Decimal `json:"buckets,omitempty"`
}

// BucketScore is one bucket's line in an evaluation.
type BucketScore struct {
	Bucket  domain.CategoryBucket `json:"bucket"`
	Amount  decimal.Decimal       `json:"amount"`
	Percent float64               `json:"percent"`
	Target  float64               `json:"target"`
	Score   float64               `json:"score"`
}

// Evaluation is a scored income/bucket snapshot.
type Evaluation struct {
	Income  decimal.Decimal `json:"income"`
	Buckets []BucketScore   `json:"buckets"`
	Score   int             `json:"score"`
}

// BucketDelta is the effective-minus-actual difference for one bucket.
type BucketDelta struct {
	Amount  decimal.Decimal `json:"amount"`
	Percent float64         `json:"percent"`
}

// GoalComparison scores the actual and effective plans side by side.
type GoalComparison struct {
	Actual    Evaluation `json:"actual"`
	Effective Evaluation `json:"effective"`

	IncomeDelta  decimal.Decimal                       `json:"incomeDelta"`
	BucketDeltas map[domain.CategoryBucket]BucketDelta `json:"bucketDeltas"`
	ScoreDelta   int                                   `json:"scoreDelta"`
}

// BucketTotals sums expense magnitudes per bucket over processed
// transactions. Income rows contribute nothing; every expense row lands
// in exactly one bucket, so the bucket totals partition total expenses.
func BucketTotals(txns []domain.Transaction, categories map[string]domain.Category, copts ClassifierOptions, popts ProcessOptions) BucketAmounts {
	out := make(BucketAmounts, len(domain.AllBuckets))
	for _, b := range domain.AllBuckets {
		out[b] = decimal.Zero
	}
	for _, t := range txns {
		if IsIncome(t, popts) {
			continue
		}
		cat, ok := categories[t.CategoryID]
		if !ok {
			cat = domain.Category{ID: t.CategoryID, Name: t.CategoryName, GroupName: t.CategoryGroupName}
		}
		bucket, ok := ClassifyCategory(cat, copts)
		if !ok {
			// Income-named category carrying an outflow; treat as
			// guilt-free rather than dropping the money.
			bucket = domain.BucketGuiltFree
		}
		out[bucket] = out[bucket].Add(t.Amount.Neg())
	}
	return out
}

// Score evaluates one income/bucket snapshot against the targets.
// Percentages are shares of income; with non-positive income every
// percentage is zero and the max-target buckets score full marks.
func Score(income decimal.Decimal, buckets BucketAmounts, targets domain.BucketTargets) Evaluation {
	ev := Evaluation{
		Income:  money.RoundCents(income),
		Buckets: make([]BucketScore, 0, len(domain.AllBuckets)),
	}

	total := 0.0
	for _, b := range domain.AllBuckets {
		amount := buckets[b]
		pct := percentOf(amount, income)

		var target, score float64
		switch b {
		case domain.BucketFixedCosts:
			target = targets.FixedCostsMax
			score = maxTargetScore(pct, target)
		case domain.BucketGuiltFree:
			target = targets.GuiltFreeMax
			score = maxTargetScore(pct, target)
		case domain.BucketInvestments:
			target = targets.InvestmentsMin
			score = minTargetScore(pct, target)
		case domain.BucketSavings:
			target = targets.SavingsMin
			score = minTargetScore(pct, target)
		}

		total += score
		ev.Buckets = append(ev.Buckets, BucketScore{
			Bucket:  b,
			Amount:  money.RoundCents(amount),
			Percent: pct,
			Target:  target,
			Score:   score,
		})
	}

	ev.Score = int(math.Round(total))
	if ev.Score < 0 {
		ev.Score = 0
	}
	if ev.Score > 100 {
		ev.Score = 100
	}
	return ev
}

// Evaluate scores the actual plan and the draft-adjusted effective plan
// and reports the deltas between them.
func Evaluate(actual Actuals, draft Draft, targets domain.BucketTargets) GoalComparison {
	effIncome := actual.Income
	if draft.Income != nil {
		effIncome = *draft.Income
	}
	effBuckets := make(BucketAmounts, len(domain.AllBuckets))
	for _, b := range domain.AllBuckets {
		effBuckets[b] = actual.Buckets[b]
		if d, ok := draft.Buckets[b]; ok && d != nil {
			effBuckets[b] = *d
		}
	}

	actualEval := Score(actual.Income, actual.Buckets, targets)
	effectiveEval := Score(effIncome, effBuckets, targets)

	cmp := GoalComparison{
		Actual:       actualEval,
		Effective:    effectiveEval,
		IncomeDelta:  money.RoundCents(effIncome.Sub(actual.Income)),
		BucketDeltas: make(map[domain.CategoryBucket]BucketDelta, len(domain.AllBuckets)),
		ScoreDelta:   effectiveEval.Score - actualEval.Score,
	}
	for _, b := range domain.AllBuckets {
		cmp.BucketDeltas[b] = BucketDelta{
			Amount:  money.RoundCents(effBuckets[b].Sub(actual.Buckets[b])),
			Percent: percentOf(effBuckets[b], effIncome) - percentOf(actual.Buckets[b], actual.Income),
		}
	}
	return cmp
}

func percentOf(amount, income decimal.Decimal) float64 {
	if !income.IsPositive() {
		return 0
	}
	pct, _ := amount.Div(income).Mul(decimal.NewFromInt(100)).Float64()
	return pct
}

// maxTargetScore: full marks at or under the cap, then one point lost
// per percentage point over, floored at zero.
func maxTargetScore(pct, max float64) float64 {
	if pct <= max {
		return 25
	}
	return math.Max(0, 25-(pct-max))
}

// minTargetScore: full marks at or over the floor, else proportional.
func minTargetScore(pct, min float64) float64 {
	if min <= 0 || pct >= min {
		return 25
	}
	if pct <= 0 {
		return 0
	}
	return 25 * pct / min
}
