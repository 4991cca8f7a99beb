package payment

import (
	"context"
	"log"

	"github.com/example/marketplace/internal/metrics"
)

// Reconciler applies provider payment-completed events. Every path
// except a signature failure is a deliberate no-op success, so the
// provider never retries events we have already absorbed.
type Reconciler struct {
	payments Repository
	gateway  Gateway
}

func NewReconciler(payments Repository, gateway Gateway) *Reconciler {
	return &Reconciler{payments: payments, gateway: gateway}
}

// HandleEvent verifies and applies one webhook delivery. The returned
// error is non-nil only for unverifiable payloads; those must be
// rejected, never processed.
func (r *Reconciler) HandleEvent(ctx context.Context, payload []byte, signature string) error {
	ev, err := r.gateway.VerifyAndParse(payload, signature)
	if err != nil {
		metrics.WebhookEvents.WithLabelValues("bad_signature").Inc()
		return err
	}

	if ev.Type != EventCheckoutCompleted {
		metrics.WebhookEvents.WithLabelValues("ignored").Inc()
		return nil
	}

	applied, err := r.payments.MarkSucceeded(ctx, ev.SessionID)
	if err != nil {
		metrics.WebhookEvents.WithLabelValues("error").Inc()
		return err
	}
	if !applied {
		// Unknown session or a redelivery of an event we already
		// applied. Either way the provider gets a 200.
		metrics.WebhookEvents.WithLabelValues("duplicate").Inc()
		log.Printf("[Payment] Ignoring completed event for session %s (no pending payment)", ev.SessionID)
		return nil
	}

	metrics.WebhookEvents.WithLabelValues("applied").Inc()
	log.Printf("[Payment] Session %s completed, order %s marked paid", ev.SessionID, ev.CorrelationID)
	return nil
}
