package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/amerta-coffee/amerta-coffee-api/api/responses"
	"github.com/amerta-coffee/amerta-coffee-api/api/validators"
	cartsvc "github.com/amerta-coffee/amerta-coffee-api/internal/cart"
	"github.com/amerta-coffee/amerta-coffee-api/pkg/enums"
	pkgerrors "github.com/amerta-coffee/amerta-coffee-api/pkg/errors"
	"github.com/amerta-coffee/amerta-coffee-api/pkg/logger"
)

type cartItemRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  *int      `json:"quantity" validate:"required"`
}

// CartGet returns the caller's cart, creating an empty one on first access.
func CartGet(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}
		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.GetOrCreateCart(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// CartAddItem adds quantity to a cart line, creating it when absent.
func CartAddItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return cartUpsert(svc, enums.UpsertModeIncrement, logg)
}

// CartSetItem overwrites a cart line quantity; zero removes the line.
func CartSetItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return cartUpsert(svc, enums.UpsertModeSet, logg)
}

func cartUpsert(svc cartsvc.Service, mode enums.UpsertMode, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}
		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload cartItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.UpsertItem(r.Context(), userID, cartsvc.UpsertItemInput{
			ProductID: payload.ProductID,
			Quantity:  *payload.Quantity,
			Mode:      mode,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status := http.StatusOK
		if result.Action == cartsvc.ActionCreated {
			status = http.StatusCreated
		}
		responses.WriteSuccessStatus(w, status, result)
	}
}

// CartDeleteItem removes one product from the caller's cart.
func CartDeleteItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}
		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		deleted, err := svc.DeleteItem(r.Context(), userID, productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, deleted)
	}
}
