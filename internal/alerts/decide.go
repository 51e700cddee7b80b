package alerts

import "crypto-portfolio-tracker/internal/models"

// Decision is the outcome of checking one alert against one price.
type Decision struct {
	Triggered  bool // price is past the threshold in the alert's direction
	Suppressed bool // an unread notification already covers this price
}

// Notify reports whether a new notification should be written.
func (d Decision) Notify() bool {
	return d.Triggered && !d.Suppressed
}

// Triggered reports whether price is strictly past the alert's threshold.
func Triggered(alert models.Alert, price float64) bool {
	switch alert.Type {
	case models.AlertTypeMore:
		return price > alert.Threshold
	case models.AlertTypeLess:
		return price < alert.Threshold
	}
	return false
}

// Decide applies the trigger condition and the unread de-duplication rule.
// lastUnread is the price of the newest unread notification of the alert, if
// any. A triggered alert is suppressed unless price has moved strictly further
// past the threshold than lastUnread, in the alert's direction.
func Decide(alert models.Alert, price float64, lastUnread *float64) Decision {
	d := Decision{Triggered: Triggered(alert, price)}
	if !d.Triggered || lastUnread == nil {
		return d
	}

	switch alert.Type {
	case models.AlertTypeMore:
		d.Suppressed = price <= *lastUnread
	case models.AlertTypeLess:
		d.Suppressed = price >= *lastUnread
	}
	return d
}

// ValidType reports whether t is a known comparison type.
func ValidType(t string) bool {
	return t == models.AlertTypeMore || t == models.AlertTypeLess
}
