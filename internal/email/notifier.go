package email

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Notification is a queued task notification for a set of recipients.
type Notification struct {
	To   []string
	Data TaskNotificationData
}

// Notifier delivers task notifications asynchronously. Mutations enqueue and
// move on; delivery failures are retried and then logged, never surfaced to
// the caller.
type Notifier struct {
	sender     *Service
	log        *logrus.Logger
	queue      chan Notification
	done       chan struct{}
	maxRetries int
	backoff    time.Duration
}

// NewNotifier starts a notifier with a background delivery worker.
func NewNotifier(sender *Service, log *logrus.Logger) *Notifier {
	n := &Notifier{
		sender:     sender,
		log:        log,
		queue:      make(chan Notification, 256),
		done:       make(chan struct{}),
		maxRetries: 3,
		backoff:    2 * time.Second,
	}
	go n.run()
	return n
}

// Enqueue queues a notification for delivery. If the queue is full or email
// is not configured the notification is dropped with a warning.
func (n *Notifier) Enqueue(note Notification) {
	if len(note.To) == 0 {
		return
	}
	if !n.sender.IsConfigured() {
		return
	}
	select {
	case n.queue <- note:
	default:
		n.log.WithFields(logrus.Fields{
			"recipients": len(note.To),
			"task":       note.Data.TaskTitle,
		}).Warn("notification queue full, dropping notification")
	}
}

// Close drains the queue and stops the worker.
func (n *Notifier) Close() {
	close(n.queue)
	<-n.done
}

func (n *Notifier) run() {
	defer close(n.done)
	for note := range n.queue {
		n.deliver(note)
	}
}

func (n *Notifier) deliver(note Notification) {
	var err error
	for attempt := 1; attempt <= n.maxRetries; attempt++ {
		err = n.sender.SendTaskNotification(note.To, note.Data)
		if err == nil {
			return
		}
		if attempt < n.maxRetries {
			time.Sleep(n.backoff * time.Duration(attempt))
		}
	}
	n.log.WithFields(logrus.Fields{
		"recipients": len(note.To),
		"task":       note.Data.TaskTitle,
	}).WithError(err).Warn("notification delivery failed after retries")
}
