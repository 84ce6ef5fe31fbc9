// Package gateway holds the HTTP plumbing shared by the payment provider adapters.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"

	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability/logctx"
)

const maxResponseBytes = 1 << 20

// Client performs JSON calls against one provider and records them as external requests.
type Client struct {
	peer   string
	http   *http.Client
	tracer observability.Tracer
	log    observability.Logger

	extCounter   observability.Counter   // external_requests_total{peer,endpoint,outcome}
	extHistogram observability.Histogram // external_request_duration_seconds{peer,endpoint}
}

func NewClient(peer string, timeout time.Duration, tel observability.Observability) *Client {
	tracer, logger, metrics := observability.Resolve(tel)
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		peer:         peer,
		http:         &http.Client{Timeout: timeout},
		tracer:       tracer,
		log:          logger.With(observability.F("component", "gateway_client"), observability.F("peer", peer)),
		extCounter:   metrics.Counter(observability.MExternalRequests),
		extHistogram: metrics.Histogram(observability.MExternalRequestDuration),
	}
}

// WithHTTPClient swaps the transport, mainly for tests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.http = hc
	return c
}

type Request struct {
	Endpoint string // low-cardinality label, e.g. "send_payment"
	Method   string
	URL      string
	Header   http.Header
	Body     any
}

// Do sends the request and returns the raw response body. Transport failures,
// non-2xx statuses and unreadable bodies come back as *payment.GatewayError.
// A non-nil raw body is returned alongside http_status errors so callers can
// extract provider error messages.
func (c *Client) Do(ctx context.Context, req Request) (raw []byte, err error) {
	ctx, span := c.tracer.Start(ctx, "GW."+c.peer+"."+req.Endpoint,
		attribute.String("peer.service", c.peer),
		attribute.String("http.method", req.Method),
	)
	start := time.Now()
	outcome := "success"
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		} else {
			span.SetStatus(codes.Ok, outcome)
		}
		span.End()

		c.extCounter.Add(1,
			observability.L("peer", c.peer),
			observability.L("endpoint", req.Endpoint),
			observability.L("outcome", outcome),
		)
		c.extHistogram.Observe(time.Since(start).Seconds(),
			observability.L("peer", c.peer),
			observability.L("endpoint", req.Endpoint),
		)
		if err != nil {
			logctx.FromOr(ctx, c.log).Warn("gateway_call_failed",
				observability.F("peer", c.peer),
				observability.F("endpoint", req.Endpoint),
				observability.F("outcome", outcome),
				observability.F("error", err),
			)
		}
	}()

	var body io.Reader
	if req.Body != nil {
		buf, merr := json.Marshal(req.Body)
		if merr != nil {
			outcome = "encode_error"
			return nil, c.fail(payment.KindValidation, "encode request", merr)
		}
		body = bytes.NewReader(buf)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		outcome = "encode_error"
		return nil, c.fail(payment.KindValidation, "build request", err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(httpReq.Header))

	resp, err := c.http.Do(httpReq)
	if err != nil {
		outcome = "transport_error"
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			outcome = "timeout"
		}
		return nil, c.fail(payment.KindTransport, req.Endpoint, err)
	}
	defer resp.Body.Close()

	raw, err = io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		outcome = "transport_error"
		return nil, c.fail(payment.KindTransport, "read response", err)
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		outcome = "http_" + fmt.Sprint(resp.StatusCode/100) + "xx"
		return raw, &payment.GatewayError{
			Gateway: c.peer,
			Kind:    payment.KindHTTPStatus,
			Detail:  fmt.Sprintf("%s returned %d", req.Endpoint, resp.StatusCode),
		}
	}
	return raw, nil
}

// DecodeJSON unmarshals a provider response, mapping failures to a decode GatewayError.
func (c *Client) DecodeJSON(raw []byte, out any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return c.fail(payment.KindDecode, "empty response body", nil)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return c.fail(payment.KindDecode, "decode response", err)
	}
	return nil
}

func (c *Client) Peer() string { return c.peer }

func (c *Client) fail(kind payment.ErrorKind, detail string, err error) *payment.GatewayError {
	if err != nil {
		detail = detail + ": " + err.Error()
	}
	return &payment.GatewayError{Gateway: c.peer, Kind: kind, Detail: detail, Err: err}
}

// Fail builds a GatewayError attributed to this client's peer.
func (c *Client) Fail(kind payment.ErrorKind, detail string) *payment.GatewayError {
	return c.fail(kind, detail, nil)
}
