package shared

import "context"

// NotificationKind identifies the customer-facing event being announced
type NotificationKind string

const (
	NotificationOrderCreated     NotificationKind = "order.created"
	NotificationOrderConfirmed   NotificationKind = "order.confirmed"
	NotificationOrderShipped     NotificationKind = "order.shipped"
	NotificationOrderDelivered   NotificationKind = "order.delivered"
	NotificationOrderCancelled   NotificationKind = "order.cancelled"
	NotificationPaymentSucceeded NotificationKind = "payment.succeeded"
	NotificationPaymentFailed    NotificationKind = "payment.failed"
	NotificationPaymentRefunded  NotificationKind = "payment.refunded"
)

// Notifier delivers fire-and-forget customer notifications.
// Implementations must never let a delivery failure propagate to the
// triggering order or payment operation; callers ignore the error beyond
// logging it.
type Notifier interface {
	Notify(ctx context.Context, recipient string, kind NotificationKind, payload map[string]string) error
}

// NopNotifier discards all notifications. Used in tests and when no
// notification backend is configured.
type NopNotifier struct{}

// Notify implements Notifier
func (NopNotifier) Notify(context.Context, string, NotificationKind, map[string]string) error {
	return nil
}
