package models

// All lists every persisted model, in migration order.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Asset{},
		&Transaction{},
		&MarketRow{},
		&GainersLosersEntry{},
		&Alert{},
		&Notification{},
		&PortfolioDaily{},
		&AuditEvent{},
	}
}
