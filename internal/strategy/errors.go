package strategy

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoPoolPrice means no pool quote was available, so the swap would have no slippage floor.
var ErrNoPoolPrice = errors.New("no pool price available, refusing to swap without slippage protection")

// ErrSignerRequired is returned when an execution path has no signer.
var ErrSignerRequired = errors.New("signer is required to execute swaps")

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

type ApprovalFailedError struct {
	Token   string
	Spender string
	TxHash  string
	Err     error
}

func (e *ApprovalFailedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("approval of %s for %s failed: %v", e.Token, e.Spender, e.Err)
	}
	return fmt.Sprintf("approval of %s for %s failed in tx %s", e.Token, e.Spender, e.TxHash)
}

func (e *ApprovalFailedError) Unwrap() error { return e.Err }

// SettlementFailedError 交易回滚或订单被取消/过期
type SettlementFailedError struct {
	ID     string
	Status string
	Reason string
}

func (e *SettlementFailedError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.ID, e.Status, e.Reason)
}

type UnknownStrategyError struct {
	ID        string
	Available []string
}

func (e *UnknownStrategyError) Error() string {
	return fmt.Sprintf("unknown strategy %q (available: %s)", e.ID, strings.Join(e.Available, ", "))
}

// AllStrategiesFailedError keeps only the final failure; earlier ones are logged.
type AllStrategiesFailedError struct {
	Attempted []string
	Last      error
}

func (e *AllStrategiesFailedError) Error() string {
	return fmt.Sprintf("all strategies failed (%s): %v", strings.Join(e.Attempted, ", "), e.Last)
}

func (e *AllStrategiesFailedError) Unwrap() error { return e.Last }

// StrategyError attributes a failure to a strategy with a human readable message.
type StrategyError struct {
	Strategy string
	Message  string
	Err      error
}

func (e *StrategyError) Error() string {
	return e.Strategy + ": " + e.Message
}

func (e *StrategyError) Unwrap() error { return e.Err }

type errorRule struct {
	needles []string
	message string
}

var commonRules = []errorRule{
	{[]string{"user rejected", "user denied", "rejected by user"}, "transaction rejected by user"},
	{[]string{"insufficient funds"}, "insufficient funds for gas or value"},
	{[]string{"nonce too low", "replacement transaction underpriced"}, "nonce conflict, a pending transaction exists"},
	{[]string{"transfer amount exceeds balance", "insufficient balance"}, "insufficient token balance"},
}

func matchRules(err error, rules []errorRule) (string, bool) {
	msg := strings.ToLower(err.Error())
	for _, rule := range rules {
		for _, needle := range rule.needles {
			if strings.Contains(msg, needle) {
				return rule.message, true
			}
		}
	}
	return "", false
}

// describeError 先匹配策略特有规则，再匹配通用规则，否则保留原始信息
func describeError(err error, specific []errorRule) string {
	var validation *ValidationError
	if errors.As(err, &validation) {
		return validation.Error()
	}
	var approval *ApprovalFailedError
	if errors.As(err, &approval) {
		if msg, ok := matchRules(err, commonRules); ok {
			return "approval failed: " + msg
		}
		return "token approval failed"
	}
	if msg, ok := matchRules(err, specific); ok {
		return msg
	}
	if msg, ok := matchRules(err, commonRules); ok {
		return msg
	}
	return err.Error()
}
