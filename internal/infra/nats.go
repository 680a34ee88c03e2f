// README: NATS connection used to mirror order events to other services.
package infra

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

func NewNATS(url string, log logrus.FieldLogger) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name("fooddash-api"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.WithError(err).Warn("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.WithField("url", c.ConnectedUrl()).Info("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats.Connect: %w", err)
	}
	return conn, nil
}
