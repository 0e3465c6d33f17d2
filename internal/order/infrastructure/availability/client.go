// Package availability consumes the external pastry lookup API.
package availability

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

type Client struct {
	log     *slog.Logger
	baseURL string
	httpc   *http.Client
	tracer  trace.Tracer
}

func NewClient(log *slog.Logger, baseURL string) *Client {
	return &Client{
		log:     log,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: 10 * time.Second},
		tracer:  otel.Tracer("availability-client"),
	}
}

type pastryResponse struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

// CheckAvailable looks one product up by name. A non-2xx answer, including an
// unknown product, is a lookup failure rather than "unavailable".
func (c *Client) CheckAvailable(ctx context.Context, productName string) (bool, error) {
	ctx, span := c.tracer.Start(ctx, "CheckAvailability", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/pastry/"+url.PathEscape(productName), nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.httpc.Do(req)
	if err != nil {
		span.RecordError(err)
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("pastry lookup for %q returned status %s", productName, resp.Status)
		span.RecordError(err)
		return false, err
	}

	var pr pastryResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		span.RecordError(err)
		return false, err
	}
	return strings.EqualFold(pr.Status, "available"), nil
}
