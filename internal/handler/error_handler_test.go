package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"swapengine/internal/model"
	"swapengine/internal/strategy"

	"github.com/stretchr/testify/assert"
)

func TestErrorHandlerStatusCodes(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"validation", &strategy.ValidationError{Field: "amount", Reason: "must be greater than zero"}, http.StatusBadRequest},
		{"wrapped validation", &strategy.StrategyError{Strategy: "CowSwap", Err: &strategy.ValidationError{Field: "tokenIn", Reason: "x"}}, http.StatusBadRequest},
		{"unknown strategy", &strategy.UnknownStrategyError{ID: "nope"}, http.StatusBadRequest},
		{"not found", fmt.Errorf("lookup: %w", model.ErrNotFound), http.StatusNotFound},
		{"all failed", &strategy.AllStrategiesFailedError{Attempted: []string{"direct"}, Last: errors.New("reverted")}, http.StatusBadGateway},
		{"strategy", &strategy.StrategyError{Strategy: "Uniswap V3", Message: "reverted", Err: errors.New("reverted")}, http.StatusBadGateway},
		{"other", errors.New("rpc down"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, body := ErrorHandler(context.Background(), tc.err)
			assert.Equal(t, tc.code, code)
			resp, ok := body.(ErrorResp)
			assert.True(t, ok)
			assert.Equal(t, tc.code, resp.Code)
			assert.Equal(t, tc.err.Error(), resp.Message)
		})
	}
}
