package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/angelmondragon/storefront-orders/api/responses"
	razorpaywebhook "github.com/angelmondragon/storefront-orders/internal/webhooks/razorpay"
	pkgerrors "github.com/angelmondragon/storefront-orders/pkg/errors"
	"github.com/angelmondragon/storefront-orders/pkg/logger"
)

const (
	signatureHeader = "X-Razorpay-Signature"
	eventIDHeader   = "X-Razorpay-Event-Id"
	maxBodyBytes    = 1 << 20
)

type RazorpayIngestor interface {
	Ingest(ctx context.Context, body []byte, sig, eventIDHeader string) (razorpaywebhook.Outcome, error)
}

// RazorpayWebhook logs and applies gateway events. Every delivery that could be
// logged is acknowledged with 200, including rejected and failed ones; only a
// logging failure answers 500 so the gateway retries.
func RazorpayWebhook(ingestor RazorpayIngestor, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if ingestor == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook ingestor unavailable"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		outcome, err := ingestor.Ingest(ctx, payload, r.Header.Get(signatureHeader), r.Header.Get(eventIDHeader))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": string(outcome)})
	}
}
