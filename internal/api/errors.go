package api

import (
	"context"
	"errors"
	"net/http"

	"paperchat/internal/util"
)

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// toAPIError maps an error onto an HTTP status and a client-safe body. Only invalid input
// echoes the error text back; everything else gets a fixed message.
func toAPIError(err error) (int, apiError) {
	if errors.Is(err, context.Canceled) {
		return 499, apiError{Code: "PC-API-4990", Message: "Request was canceled."}
	}
	switch util.Kind(err) {
	case "invalid_input":
		return http.StatusBadRequest, apiError{Code: "PC-API-4001", Message: err.Error()}
	case "not_found":
		return http.StatusNotFound, apiError{Code: "PC-API-4004", Message: "Requested resource was not found."}
	case "content_policy":
		return http.StatusUnprocessableEntity, apiError{Code: "PC-LLM-4220", Message: "The request was rejected by the model provider's content policy."}
	case "rate_limited":
		return http.StatusTooManyRequests, apiError{Code: "PC-API-4290", Message: "Upstream rate limit reached. Retry shortly."}
	case "generation_failure":
		return http.StatusBadGateway, apiError{Code: "PC-LLM-5020", Message: "Answer generation failed. Retry shortly."}
	case "unavailable":
		return http.StatusServiceUnavailable, apiError{Code: "PC-API-5030", Message: "A dependency is unavailable. Check local services and retry."}
	case "partial_write":
		return http.StatusServiceUnavailable, apiError{Code: "PC-DB-5031", Message: "The write did not complete. Retry the operation."}
	default:
		return http.StatusInternalServerError, apiError{Code: "PC-API-5000", Message: "Internal server error. Please retry or check service logs."}
	}
}
