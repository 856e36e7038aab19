package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/amerta-coffee/amerta-coffee-api/api/middleware"
	pkgerrors "github.com/amerta-coffee/amerta-coffee-api/pkg/errors"
)

func userIDFromRequest(r *http.Request) (uuid.UUID, error) {
	userID := middleware.UserUUIDFromContext(r.Context())
	if userID == uuid.Nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	return userID, nil
}
