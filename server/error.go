package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/iconduit/go-iconduit/service/breaker"
	"github.com/iconduit/go-iconduit/service/logger"
	"github.com/iconduit/go-iconduit/service/persist"
	"github.com/iconduit/go-iconduit/util"
	"github.com/iconduit/go-iconduit/validate"
)

// mapError translates a typed error into its stable code, HTTP status, and
// client-facing body. Unrecognized errors become a non-exposed INTERNAL_ERROR
// whose original message stays in the logs only.
func mapError(err error) (status int, body util.ErrorBody) {
	var (
		invalidSize    validate.ErrInvalidSize
		invalidColor   validate.ErrInvalidColor
		invalidParam   validate.ErrInvalidParameter
		invalidFormat  validate.ErrInvalidFormat
		iconNotFound   persist.ErrIconNotFound
		variantMissing persist.ErrVariantNotAvailable
		catNotFound    persist.ErrCategoryNotFound
		srcNotFound    persist.ErrSourceNotFound
		storageErr     persist.ErrStorage
	)

	switch {
	case errors.As(err, &invalidSize):
		return http.StatusBadRequest, util.ErrorBody{Code: "INVALID_SIZE", Message: invalidSize.Error()}
	case errors.As(err, &invalidColor):
		return http.StatusBadRequest, util.ErrorBody{Code: "INVALID_COLOR", Message: invalidColor.Error()}
	case errors.As(err, &invalidFormat):
		return http.StatusBadRequest, util.ErrorBody{Code: "INVALID_FORMAT", Message: invalidFormat.Error()}
	case errors.As(err, &invalidParam):
		return http.StatusBadRequest, util.ErrorBody{Code: "INVALID_PARAMETER", Message: invalidParam.Error()}
	case errors.As(err, &variantMissing):
		return http.StatusBadRequest, util.ErrorBody{Code: "VARIANT_NOT_AVAILABLE", Message: variantMissing.Error()}
	case errors.As(err, &iconNotFound):
		body := util.ErrorBody{Code: "ICON_NOT_FOUND", Message: iconNotFound.Error()}
		if len(iconNotFound.Suggestions) > 0 {
			body.Details = gin.H{"suggestions": iconNotFound.Suggestions}
		}
		return http.StatusNotFound, body
	case errors.As(err, &catNotFound):
		return http.StatusNotFound, util.ErrorBody{Code: "CATEGORY_NOT_FOUND", Message: catNotFound.Error()}
	case errors.As(err, &srcNotFound):
		return http.StatusNotFound, util.ErrorBody{Code: "NOT_FOUND", Message: srcNotFound.Error()}
	case errors.As(err, &storageErr), errors.Is(err, breaker.ErrOpen):
		return http.StatusServiceUnavailable, util.ErrorBody{Code: "STORAGE_ERROR", Message: "Storage backend is unavailable. Please retry shortly."}
	default:
		return http.StatusInternalServerError, util.ErrorBody{Code: "INTERNAL_ERROR", Message: "An unexpected error occurred"}
	}
}

// respondWithError writes the mapped envelope and logs at the level the error
// class calls for.
func respondWithError(c *gin.Context, err error) {
	status, body := mapError(err)

	log := logger.For(c.Request.Context())
	switch {
	case status >= 500:
		log.Errorf("%s: %s", body.Code, err)
	case status == http.StatusTooManyRequests:
		log.Warnf("%s: %s", body.Code, err)
	default:
		log.Infof("%s: %s", body.Code, err)
	}

	util.RespondError(c, status, body, err)
}
