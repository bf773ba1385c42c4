package web

import (
	"errors"
	"net/http"
	"net/url"

	"bds-membership/internal/domain"
	"bds-membership/internal/domain/model"
	"bds-membership/internal/infra/logging"
	"bds-membership/internal/usecase"
)

// Gateway callbacks always answer with a redirect. Failures travel in the
// query string, never as a JSON body.

const msgCallbackError = "An error occurred while processing your payment. Please contact support."

func (s *Server) handleSubscriptionCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	cb := usecase.SubscriptionCallback{
		PaymentID:  q.Get("payment_id"),
		GatewayID:  q.Get("paymentId"),
		RedirectTo: safeRedirect(q.Get("redirect_to")),
	}
	ctx := logging.WithPaymentID(r.Context(), cb.PaymentID)
	authenticated := MemberID(ctx) != ""

	out, err := s.reconcile.ReconcileSubscription(ctx, cb)
	if err != nil {
		l := logging.With(ctx, s.log)
		l.Error().Err(err).Str("gateway_id", cb.GatewayID).Msg("subscription callback failed")
		msg := domain.PublicMessage(err)
		if _, code := statusFor(err); code == "internal_error" {
			msg = msgCallbackError
		}
		s.redirect(w, r, "/auth/login", url.Values{"error": {"payment_error"}, "message": {msg}})
		return
	}

	switch {
	case out.State.Succeeded():
		if authenticated {
			s.redirect(w, r, "/member/dashboard/subscriptions", url.Values{"success": {"payment_completed"}, "message": {out.Message}})
			return
		}
		v := url.Values{"success": {"payment_completed"}, "message": {out.Message}}
		if out.RedirectTo != "" {
			v.Set("redirect_to", out.RedirectTo)
		}
		s.redirect(w, r, "/auth/login", v)
	case out.State == model.ReconcileFailed:
		s.redirect(w, r, "/auth/login", url.Values{"error": {"payment_failed"}, "message": {out.Message}})
	default:
		s.redirect(w, r, "/auth/login", url.Values{"error": {"payment_error"}, "message": {out.Message}})
	}
}

func (s *Server) handleEventCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	cb := usecase.EventCallback{
		EventID:   q.Get("event_id"),
		UserID:    q.Get("user_id"),
		PaymentID: q.Get("payment_id"),
		GatewayID: q.Get("paymentId"),
	}
	ctx := logging.WithUserID(r.Context(), cb.UserID)

	out, err := s.reconcile.ReconcileEvent(ctx, cb)
	if err != nil {
		l := logging.With(ctx, s.log)
		l.Error().Err(err).Str("event_id", cb.EventID).Str("gateway_id", cb.GatewayID).Msg("event callback failed")
		if errors.Is(err, domain.ErrNotFound) {
			s.redirect(w, r, "/events", url.Values{"error": {"payment_not_found"}})
			return
		}
		s.redirect(w, r, "/events", url.Values{"error": {"payment_error"}})
		return
	}

	switch {
	case out.State.Succeeded():
		s.redirect(w, r, "/events", url.Values{"success": {"payment_completed"}, "event": {out.EventTitle}})
	case out.State == model.ReconcileFailed:
		s.redirect(w, r, "/events", url.Values{"error": {"payment_failed"}, "message": {out.Message}})
	default:
		s.redirect(w, r, "/events", url.Values{"error": {"payment_error"}, "message": {out.Message}})
	}
}

func (s *Server) redirect(w http.ResponseWriter, r *http.Request, path string, q url.Values) {
	http.Redirect(w, r, path+"?"+q.Encode(), http.StatusSeeOther)
}

// safeRedirect keeps only same-site relative paths.
func safeRedirect(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.IsAbs() || u.Host != "" || len(u.Path) == 0 || u.Path[0] != '/' {
		return ""
	}
	if len(raw) > 1 && (raw[1] == '/' || raw[1] == '\\') {
		return ""
	}
	return raw
}
