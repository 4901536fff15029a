package order

import (
	"strings"
	"time"
)

const filterAll = "all"

type AgeBucket string

const (
	AgeNew    AgeBucket = "new"
	AgeRecent AgeBucket = "recent"
	AgeAging  AgeBucket = "aging"
	AgeStale  AgeBucket = "stale"
)

// AgeBucketOf buckets by time since creation: new <1h, recent <24h, aging <48h, stale otherwise.
func AgeBucketOf(createdAt, now time.Time) AgeBucket {
	age := now.Sub(createdAt)
	switch {
	case age < time.Hour:
		return AgeNew
	case age < 24*time.Hour:
		return AgeRecent
	case age < 48*time.Hour:
		return AgeAging
	}
	return AgeStale
}

type RatingBucket string

const (
	RatingPositive RatingBucket = "positive"
	RatingNeutral  RatingBucket = "neutral"
	RatingNegative RatingBucket = "negative"
	RatingUnrated  RatingBucket = "unrated"
)

func RatingBucketOf(rating *int) RatingBucket {
	switch {
	case rating == nil:
		return RatingUnrated
	case *rating >= 4:
		return RatingPositive
	case *rating == 3:
		return RatingNeutral
	}
	return RatingNegative
}

const (
	RefundFilterEligible   = "eligible"
	RefundFilterIneligible = "ineligible"
)

// Filter narrows an order list for the admin dashboard. Empty or "all"
// fields match everything; set fields are AND-combined.
type Filter struct {
	Search   string
	Status   string
	Priority string
	Source   string
	Age      string
	Rating   string
	Refund   string
}

// Apply returns the matching orders in input order. orders is not modified.
func (f Filter) Apply(orders []*Order, policy RefundPolicy, now time.Time) []*Order {
	out := make([]*Order, 0, len(orders))
	for _, o := range orders {
		if f.Matches(o, policy, now) {
			out = append(out, o)
		}
	}
	return out
}

func (f Filter) Matches(o *Order, policy RefundPolicy, now time.Time) bool {
	if o == nil {
		return false
	}

	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" && !matchesSearch(o, q) {
		return false
	}
	if active(f.Status) && !strings.EqualFold(f.Status, string(o.Status)) {
		return false
	}
	if active(f.Priority) && !strings.EqualFold(f.Priority, string(o.Priority)) {
		return false
	}
	if active(f.Source) && !strings.EqualFold(f.Source, string(o.Source)) {
		return false
	}
	if active(f.Age) && !strings.EqualFold(f.Age, string(AgeBucketOf(o.CreatedAt, now))) {
		return false
	}
	if active(f.Rating) && !strings.EqualFold(f.Rating, string(RatingBucketOf(o.Rating))) {
		return false
	}
	if active(f.Refund) {
		eligible := policy.IsEligible(o, now)
		switch strings.ToLower(f.Refund) {
		case RefundFilterEligible:
			if !eligible {
				return false
			}
		case RefundFilterIneligible:
			if eligible {
				return false
			}
		}
	}

	return true
}

func active(v string) bool {
	v = strings.TrimSpace(v)
	return v != "" && !strings.EqualFold(v, filterAll)
}

func matchesSearch(o *Order, q string) bool {
	fields := []string{o.OrderNumber, o.CustomerName, o.CustomerEmail}
	if o.CouponCode != nil {
		fields = append(fields, *o.CouponCode)
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}
