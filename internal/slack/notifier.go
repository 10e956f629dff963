package slack

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/communityaid/volunteer-dispatch/internal/dispatch"
)

// Notifier renders dispatch messages and posts them to the coordinator
// channel. The main message carries the requester details; the volunteer list
// and phone numbers follow in a thread so the channel stays scannable.
type Notifier struct {
	client *Client
	logger *zap.Logger

	channel      string
	alertChannel string

	requestsViewURL   string
	volunteersViewURL string
}

func NewNotifier(client *Client, logger *zap.Logger, channel, alertChannel, requestsViewURL, volunteersViewURL string) *Notifier {
	return &Notifier{
		client:            client,
		logger:            logger,
		channel:           channel,
		alertChannel:      alertChannel,
		requestsViewURL:   requestsViewURL,
		volunteersViewURL: volunteersViewURL,
	}
}

// SendDispatch posts the full dispatch for a new request.
func (n *Notifier) SendDispatch(req *dispatch.Request, res *dispatch.MatchResult) error {
	return n.send(req, res, "A new errand has been added", false)
}

// SendReminder re-posts a dispatch with a reminder heading.
func (n *Notifier) SendReminder(req *dispatch.Request, res *dispatch.MatchResult) error {
	return n.send(req, res, "Reminder for a previous request", true)
}

func (n *Notifier) send(req *dispatch.Request, res *dispatch.MatchResult, text string, reminder bool) error {
	main := []Block{heading(text, reminder)}
	if order, ok := taskOrder(req); ok {
		main = append(main, order)
	}
	main = append(main,
		requester(req, n.requestsViewURL),
		tasks(req),
		timeframe(req),
	)

	ts, err := n.client.PostMessage(n.channel, text, main, "")
	if err != nil {
		return fmt.Errorf("posting dispatch heading: %w", err)
	}

	details := []Block{subsidy(req), anythingElse(req, n.requestsViewURL)}
	if _, err := n.client.PostMessage(n.channel, text, details, ts); err != nil {
		return fmt.Errorf("posting request details: %w", err)
	}

	if _, err := n.client.PostMessage(n.channel, text, volunteerBlocks(res, n.volunteersViewURL), ts); err != nil {
		return fmt.Errorf("posting volunteer list: %w", err)
	}

	if len(res.Candidates) > 0 {
		if _, err := n.client.PostMessage(n.channel, copyPasteNumbers(res.Candidates), nil, ts); err != nil {
			return fmt.Errorf("posting volunteer phone numbers: %w", err)
		}
	}

	return nil
}

// SendAlert posts an out-of-band error notice to the alert channel. Best
// effort: a delivery failure is only logged, alerting must never take the
// dispatcher down with it.
func (n *Notifier) SendAlert(text string) {
	if n.alertChannel == "" {
		return
	}

	if _, err := n.client.PostMessage(n.alertChannel, fmt.Sprintf(":rotating_light: %s", text), nil, ""); err != nil {
		n.logger.Error("unable to post alert", zap.Error(err))
	}
}
