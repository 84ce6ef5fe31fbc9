package payment

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	dompay "github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability/logctx"
)

const useCaseHandleNotification = "payment.handle_notification"

type HandleNotificationInput struct {
	Gateway      string
	Notification dompay.Notification
}

// HandleNotificationResult tells the transport whether to acknowledge the delivery.
type HandleNotificationResult struct {
	Ack     bool
	Outcome Outcome
	OrderID string
	Reason  string
}

// HandleNotificationUseCase normalizes a gateway redirect or webhook and reconciles it.
//
// Webhooks are acknowledged unless their signature is wrong, so gateways stop
// retrying payloads we will never understand. A webhook whose reconciliation
// fails is acknowledged too and logged as payment_reconcile_failed. Redirects
// are refused when the order cannot be resolved, since the customer is waiting
// on the response.
type HandleNotificationUseCase struct {
	gateways      GatewayResolver
	reconcile     application.UseCase[dompay.CanonicalEvent, *ReconcileResult]
	notifications observability.Counter // payment_notifications_total{gateway,channel,outcome}
	obs           application.Instruments
}

func NewHandleNotificationUseCase(
	gateways GatewayResolver,
	reconcile application.UseCase[dompay.CanonicalEvent, *ReconcileResult],
	tel observability.Observability,
) *HandleNotificationUseCase {
	_, _, metrics := observability.Resolve(tel)
	return &HandleNotificationUseCase{
		gateways:      gateways,
		reconcile:     reconcile,
		notifications: metrics.Counter(observability.MPaymentNotifications),
		obs:           application.NewInstruments(tel, paymentService),
	}
}

func (uc *HandleNotificationUseCase) Execute(ctx context.Context, in HandleNotificationInput) (_ *HandleNotificationResult, err error) {
	channel := in.Notification.Channel
	// reconciliation logs inherit the delivery channel
	ctx = logctx.Enrich(ctx, uc.obs.Logger(), observability.F("channel", string(channel)))
	ctx, call := uc.obs.Start(ctx, useCaseHandleNotification, "HandleNotification",
		attribute.String("payment.gateway", in.Gateway),
		attribute.String("payment.channel", string(channel)),
	)
	result := &HandleNotificationResult{}
	defer func() {
		uc.notifications.Add(1,
			observability.L("gateway", in.Gateway),
			observability.L("channel", string(channel)),
			observability.L("outcome", string(result.Outcome)),
		)
		call.Annotate(
			observability.F("ack", result.Ack),
			observability.F("notification_outcome", string(result.Outcome)),
		)
		call.End(err)
	}()

	if in.Gateway == "" {
		result.Outcome, result.Reason = OutcomeUnknownGateway, "gateway is required"
		call.Fail("GATEWAY_UNKNOWN")
		return result, ErrUnknownGateway
	}
	gw, gerr := uc.gateways.Get(in.Gateway)
	if gerr != nil {
		result.Outcome, result.Reason = OutcomeUnknownGateway, gerr.Error()
		call.Fail("GATEWAY_UNKNOWN")
		return result, gerr
	}

	ev, nerr := gw.NormalizeNotification(ctx, in.Notification)
	if nerr != nil {
		return uc.rejectOrAck(call, result, channel, nerr)
	}
	if ev == nil {
		result.Ack, result.Outcome = true, OutcomeNoop
		call.Status("NOTHING_TO_RECONCILE")
		return result, nil
	}
	result.OrderID = ev.OrderID
	call.Span().SetAttributes(attribute.String("order.id", ev.OrderID))

	rec, rerr := uc.reconcile.Execute(ctx, *ev)
	switch {
	case errors.Is(rerr, ErrOrderNotFound):
		result.Outcome, result.Reason = OutcomeOrderNotFound, "order not found"
		call.Logger().Warn("payment_notification_unknown_order",
			observability.F("gateway", in.Gateway),
			observability.F("order_id", ev.OrderID),
			observability.F("transaction_id", ev.GatewayTransactionID),
		)
		if channel == dompay.ChannelWebhook {
			result.Ack = true
			call.Status("ORDER_NOT_FOUND_ACKED")
			return result, nil
		}
		call.Fail("ORDER_NOT_FOUND")
		return result, rerr
	case rerr != nil:
		result.Outcome, result.Reason = OutcomeStoreError, rerr.Error()
		if channel == dompay.ChannelWebhook {
			result.Ack = true
			call.Fail("RECONCILE_FAILED_ACKED")
			call.Logger().Error("payment_reconcile_failed",
				observability.F("gateway", in.Gateway),
				observability.F("order_id", ev.OrderID),
				observability.F("transaction_id", ev.GatewayTransactionID),
				observability.F("error", rerr),
			)
			return result, nil
		}
		call.Fail("RECONCILE_FAILED")
		return result, rerr
	}

	result.Ack, result.Outcome = true, rec.Outcome
	call.Status(statusFor(rec.Outcome))
	return result, nil
}

func (uc *HandleNotificationUseCase) rejectOrAck(call *application.Call, result *HandleNotificationResult, channel dompay.Channel, err error) (*HandleNotificationResult, error) {
	result.Reason = err.Error()
	var gerr *dompay.GatewayError
	switch {
	case errors.Is(err, ErrSignatureInvalid):
		result.Outcome = OutcomeSignatureInvalid
		call.Fail("SIGNATURE_INVALID")
		return result, err
	case channel == dompay.ChannelWebhook:
		// anything past the signature check is acknowledged and logged
		result.Ack, result.Outcome = true, OutcomeUnrecognized
		call.Status("UNRECOGNIZED_ACKED")
		call.Logger().Warn("payment_notification_unrecognized", observability.F("error", err))
		return result, nil
	case errors.As(err, &gerr) && (gerr.Kind == dompay.KindValidation || gerr.Kind == dompay.KindRejected):
		// the gateway answered but does not know the reference the redirect carried
		result.Outcome = OutcomeUnrecognized
		call.Fail("UNRECOGNIZED_PAYLOAD")
		return result, fmt.Errorf("%w: %w", ErrUnrecognizedPayload, err)
	case errors.As(err, &gerr) && gerr.Kind != dompay.KindDecode:
		result.Outcome = OutcomeGatewayError
		call.Fail("GATEWAY_LOOKUP_FAILED")
		return result, err
	default:
		result.Outcome = OutcomeUnrecognized
		call.Fail("UNRECOGNIZED_PAYLOAD")
		return result, err
	}
}
