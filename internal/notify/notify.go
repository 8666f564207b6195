package notify

import (
	"fmt"
	"io"
	"log"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	"github.com/nicholas-fedor/shoutrrr/pkg/router"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"
	"go.uber.org/zap"
)

// Notifier delivers out-of-band failure notifications (email or any other
// shoutrrr-supported service). With no URLs configured it degrades to a
// log-only notifier.
type Notifier struct {
	sender *router.ServiceRouter
	logger *zap.Logger
}

// New builds a notifier from shoutrrr service URLs.
func New(urls []string, logger *zap.Logger) (*Notifier, error) {
	n := &Notifier{logger: logger}
	if len(urls) == 0 {
		logger.Info("No notification URLs configured, notifications will be logged only")
		return n, nil
	}

	sender, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		return nil, fmt.Errorf("failed to create notification sender: %w", err)
	}
	sender.SetLogger(log.New(io.Discard, "", 0))
	n.sender = sender
	return n, nil
}

// Send delivers one notification. Delivery failures are returned but callers
// typically only log them; notifications are best-effort.
func (n *Notifier) Send(title, body string) error {
	if n.sender == nil {
		n.logger.Warn("Notification (no sender configured)",
			zap.String("title", title),
			zap.String("body", body),
		)
		return nil
	}

	params := stypes.Params{}
	params.SetTitle(title)
	for _, err := range n.sender.Send(body, &params) {
		if err != nil {
			return fmt.Errorf("failed to send notification: %w", err)
		}
	}

	n.logger.Info("Notification sent", zap.String("title", title))
	return nil
}
