package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/amerta-coffee/amerta-coffee-api/api/responses"
	"github.com/amerta-coffee/amerta-coffee-api/api/validators"
	checkoutsvc "github.com/amerta-coffee/amerta-coffee-api/internal/checkout"
	pkgerrors "github.com/amerta-coffee/amerta-coffee-api/pkg/errors"
	"github.com/amerta-coffee/amerta-coffee-api/pkg/logger"
)

type checkoutRequest struct {
	ShippingAddressID uuid.UUID `json:"shipping_address_id" validate:"required"`
}

// Checkout converts the caller's cart into a pending order.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Checkout(r.Context(), userID, payload.ShippingAddressID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}
