package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/agentpay/backoffice/internal/payments"
	"github.com/agentpay/backoffice/internal/services"
)

// NotifyVerifier checks the gateway signature on a notification payload.
type NotifyVerifier interface {
	VerifyNotify(payload map[string]string) payments.VerifyResult
}

// NotifyHandler receives asynchronous payment notifications from the gateway.
// The gateway retries until it sees the ack string, so the handler always
// acks; whether money moves is decided by the verification stamp and the
// deposit state machine.
type NotifyHandler struct {
	verifier NotifyVerifier
	deposits *services.DepositService
	log      *logrus.Logger
}

func NewNotifyHandler(verifier NotifyVerifier, deposits *services.DepositService, log *logrus.Logger) *NotifyHandler {
	return &NotifyHandler{verifier: verifier, deposits: deposits, log: log}
}

// HandleNotify processes a payment notification
// @Summary Payment notification webhook
// @Description Receive an asynchronous payment notification from the gateway
// @Tags payments
// @Accept json
// @Produce plain
// @Param request body object true "Notification payload"
// @Success 200 {string} string "success"
// @Router /payments/atp/notify [post]
func (h *NotifyHandler) HandleNotify(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		h.log.WithError(err).Warn("notification payload is not a JSON object")
		h.ack(w)
		return
	}

	flat := payments.FlattenPayload(raw)
	verify := h.verifier.VerifyNotify(flat)

	outTradeNo := flat["outTradeNo"]
	if outTradeNo == "" {
		outTradeNo = flat["out_trade_no"]
	}
	tradeNo := flat["tradeNo"]
	if tradeNo == "" {
		tradeNo = flat["trade_no"]
	}
	amount, err := decimal.NewFromString(flat["amount"])
	if err != nil {
		amount = decimal.Zero
	}

	n := payments.Notify{
		OutTradeNo: outTradeNo,
		TradeNo:    tradeNo,
		Amount:     amount,
		Currency:   flat["currency"],
		Verified:   verify.Verified,
		Reason:     verify.Reason,
	}

	out, err := h.deposits.MarkPaidFromNotify(r.Context(), n)
	if err != nil {
		h.log.WithError(err).WithField("out_trade_no", outTradeNo).Error("notification processing failed")
		// No ack: let the gateway retry.
		services.SendErrorResponse(w, "An internal error occurred", http.StatusInternalServerError, nil)
		return
	}

	h.log.WithFields(logrus.Fields{
		"out_trade_no": outTradeNo,
		"outcome":      out.Code,
		"reason":       out.Reason,
		"verified":     n.Verified,
	}).Info("payment notification processed")
	h.ack(w)
}

func (h *NotifyHandler) ack(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("success"))
}
