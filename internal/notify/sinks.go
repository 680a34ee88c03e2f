// README: Out-of-process sinks: NATS mirror, FCM push for status changes, Firebase RTDB snapshot.
package notify

import (
	"context"
	"fmt"
	"time"

	"firebase.google.com/go/v4/db"
	"firebase.google.com/go/v4/messaging"
	"github.com/sirupsen/logrus"

	"fooddash/internal/modules/order"
)

// natsPublisher is the part of *nats.Conn the sink uses.
type natsPublisher interface {
	Publish(subject string, data []byte) error
}

// NATSSink publishes every event on <prefix>.orders.<orderId>.<kind>.
type NATSSink struct {
	conn   natsPublisher
	prefix string
}

func NewNATSSink(conn natsPublisher, prefix string) *NATSSink {
	if prefix == "" {
		prefix = "fooddash"
	}
	return &NATSSink{conn: conn, prefix: prefix}
}

func (s *NATSSink) Name() string { return "nats" }

func (s *NATSSink) Subject(ev Event) string {
	return fmt.Sprintf("%s.orders.%s.%s", s.prefix, ev.OrderID, ev.Kind)
}

func (s *NATSSink) Deliver(_ context.Context, ev Event) error {
	payload, err := ev.encode()
	if err != nil {
		return err
	}
	return s.conn.Publish(s.Subject(ev), payload)
}

// messagingClient is the part of *messaging.Client the sink uses.
type messagingClient interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMSink pushes status changes to the "order-<orderId>" topic the
// customer's app subscribes to. Tracking updates are too frequent for push.
type FCMSink struct {
	client messagingClient
	log    logrus.FieldLogger
}

func NewFCMSink(client messagingClient, log logrus.FieldLogger) *FCMSink {
	return &FCMSink{client: client, log: log.WithField("component", "notify.fcm")}
}

func (s *FCMSink) Name() string { return "fcm" }

func (s *FCMSink) Wants(ev Event) bool { return ev.Kind == KindStatus }

func (s *FCMSink) Deliver(ctx context.Context, ev Event) error {
	st, ok := ev.Data.(order.StatusEvent)
	if !ok {
		return fmt.Errorf("fcm: unexpected payload %T", ev.Data)
	}
	msg := &messaging.Message{
		Topic: "order-" + ev.OrderID,
		Data: map[string]string{
			"type":      "order_status",
			"event":     ev.Name,
			"orderId":   st.OrderID,
			"status":    string(st.Status),
			"timestamp": st.Timestamp.UTC().Format(time.RFC3339),
		},
		Notification: &messaging.Notification{
			Title: "Order update",
			Body:  statusMessage(st.Status),
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
	}
	msgID, err := s.client.Send(ctx, msg)
	if err != nil {
		return fmt.Errorf("sending FCM message: %w", err)
	}
	s.log.WithFields(logrus.Fields{"order_id": ev.OrderID, "message_id": msgID}).Debug("push sent")
	return nil
}

func statusMessage(st order.Status) string {
	switch st {
	case order.StatusPreparing:
		return "The kitchen is preparing your order."
	case order.StatusReady:
		return "Your order is ready and waiting for the courier."
	case order.StatusDelivered:
		return "Your order has been delivered. Enjoy!"
	case order.StatusCancelled:
		return "Your order was cancelled."
	default:
		return "Your order status is now " + string(st) + "."
	}
}

type valueSetter interface {
	Set(ctx context.Context, path string, v interface{}) error
}

type rtdbSetter struct {
	client *db.Client
}

func (s rtdbSetter) Set(ctx context.Context, path string, v interface{}) error {
	return s.client.NewRef(path).Set(ctx, v)
}

// RTDBSink keeps the latest tracking and status payloads of each order at
// orders/<orderId>/<kind> so mobile clients can listen without a socket.
type RTDBSink struct {
	store valueSetter
}

func NewRTDBSink(client *db.Client) *RTDBSink {
	return &RTDBSink{store: rtdbSetter{client: client}}
}

func (s *RTDBSink) Name() string { return "rtdb" }

func (s *RTDBSink) Path(ev Event) string {
	return "orders/" + ev.OrderID + "/" + ev.Kind
}

func (s *RTDBSink) Deliver(ctx context.Context, ev Event) error {
	if err := s.store.Set(ctx, s.Path(ev), ev.Data); err != nil {
		return fmt.Errorf("writing %s: %w", s.Path(ev), err)
	}
	return nil
}
