package order

import "time"

// Summary is the dashboard row for an order.
type Summary struct {
	ID             uint          `json:"id"`
	OrderNumber    string        `json:"order_number"`
	Status         OrderStatus   `json:"status"`
	PaymentStatus  PaymentStatus `json:"payment_status"`
	CustomerName   string        `json:"customer_name"`
	CustomerEmail  string        `json:"customer_email"`
	Priority       Priority      `json:"priority"`
	Source         Source        `json:"source"`
	Total          string        `json:"total"`
	ItemCount      int           `json:"item_count"`
	Progress       int           `json:"progress"`
	Age            AgeBucket     `json:"age"`
	Rating         RatingBucket  `json:"rating"`
	RefundEligible bool          `json:"refund_eligible"`
	NextStatuses   []OrderStatus `json:"next_statuses"`
	CreatedAt      time.Time     `json:"created_at"`
}

func ToSummary(o *Order, policy RefundPolicy, now time.Time) *Summary {
	if o == nil {
		return nil
	}

	count := 0
	for _, item := range o.Items {
		count += item.Quantity
	}

	return &Summary{
		ID:             o.ID,
		OrderNumber:    o.OrderNumber,
		Status:         o.Status,
		PaymentStatus:  o.PaymentStatus,
		CustomerName:   o.CustomerName,
		CustomerEmail:  o.CustomerEmail,
		Priority:       o.Priority,
		Source:         o.Source,
		Total:          o.Total.StringFixed(2),
		ItemCount:      count,
		Progress:       o.Status.Progress(),
		Age:            AgeBucketOf(o.CreatedAt, now),
		Rating:         RatingBucketOf(o.Rating),
		RefundEligible: policy.IsEligible(o, now),
		NextStatuses:   AllowedTransitions(o.Status),
		CreatedAt:      o.CreatedAt,
	}
}

func ToSummaries(orders []*Order, policy RefundPolicy, now time.Time) []*Summary {
	out := make([]*Summary, 0, len(orders))
	for _, o := range orders {
		out = append(out, ToSummary(o, policy, now))
	}
	return out
}
