package handler

import (
	"context"
	"errors"
	"net/http"

	"swapengine/internal/model"
	"swapengine/internal/strategy"
)

type ErrorResp struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// ErrorHandler 注册到 httpx.SetErrorHandlerCtx，按错误类型映射状态码
func ErrorHandler(_ context.Context, err error) (int, any) {
	var (
		validation *strategy.ValidationError
		unknown    *strategy.UnknownStrategyError
		all        *strategy.AllStrategiesFailedError
		failed     *strategy.StrategyError
	)

	code := http.StatusInternalServerError
	switch {
	case errors.As(err, &validation), errors.As(err, &unknown):
		code = http.StatusBadRequest
	case errors.Is(err, model.ErrNotFound):
		code = http.StatusNotFound
	case errors.As(err, &all), errors.As(err, &failed):
		code = http.StatusBadGateway
	}
	return code, ErrorResp{Code: code, Message: err.Error()}
}
