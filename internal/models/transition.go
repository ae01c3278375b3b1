package models

// ResolveTransition applies the monotonic order-status rules to an
// incoming webhook status:
//   - no current status adopts the incoming one
//   - paid is terminal; later webhooks can never revoke a confirmation
//   - a late "pending" ping cannot resurrect a failed order
func ResolveTransition(current, incoming string) string {
	if current == "" {
		return incoming
	}
	if current == OrderStatusPaid {
		return OrderStatusPaid
	}
	if current == OrderStatusFailed && incoming == OrderStatusPending {
		return OrderStatusFailed
	}
	if incoming == "" {
		return current
	}
	return incoming
}
