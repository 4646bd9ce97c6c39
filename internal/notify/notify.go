package notify

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"waitroom-intake/pkg/logging"
)

// maxParallel bounds concurrent sends during a broadcast.
const maxParallel = 4

// Sink delivers a text message to one reviewer.
type Sink interface {
	Notify(ctx context.Context, recipientID, text string) error
}

// DeliveryError records a failed delivery to a single recipient.
type DeliveryError struct {
	Recipient string
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("notify: deliver to %s: %v", e.Recipient, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Broadcast sends text to every recipient.  Each recipient is attempted
// regardless of failures elsewhere; failures are logged and returned in
// recipient order.
func Broadcast(ctx context.Context, sink Sink, recipients []string, text string, logger *logging.Logger) []*DeliveryError {
	if logger == nil {
		logger = logging.Default()
	}
	if sink == nil {
		logger.Warn("notify: no sink configured, report not delivered", "recipients", len(recipients))
		return nil
	}

	errs := make([]error, len(recipients))
	var g errgroup.Group
	g.SetLimit(maxParallel)
	for i, recipient := range recipients {
		i, recipient := i, recipient
		g.Go(func() error {
			errs[i] = sink.Notify(ctx, recipient, text)
			return nil
		})
	}
	_ = g.Wait()

	var failed []*DeliveryError
	for i, err := range errs {
		if err == nil {
			logger.Info("notify: report delivered", "recipient", recipients[i])
			continue
		}
		logger.Error("notify: delivery failed", "recipient", recipients[i], "error", err)
		failed = append(failed, &DeliveryError{Recipient: recipients[i], Err: err})
	}
	return failed
}

// LogSink stands in for a chat channel when none is configured.
type LogSink struct {
	Logger *logging.Logger
}

// Notify logs the delivery instead of sending it.
func (s *LogSink) Notify(ctx context.Context, recipientID, text string) error {
	logger := s.Logger
	if logger == nil {
		logger = logging.Default()
	}
	logger.Info("notify: report would be delivered", "recipient", recipientID, "bytes", len(text))
	return nil
}
