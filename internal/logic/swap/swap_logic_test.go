package swap

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"swapengine/internal/config"
	"swapengine/internal/model"
	"swapengine/internal/strategy"
	"swapengine/internal/svc"
	"swapengine/internal/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRecordsDao struct {
	records []*model.SwapRecords
	listErr error
	limit   int
}

func (f *fakeRecordsDao) Insert(_ context.Context, data *model.SwapRecords) error {
	f.records = append(f.records, data)
	return nil
}

func (f *fakeRecordsDao) UpdateStatus(_ context.Context, trackingId, status, settlementTx string) error {
	for _, r := range f.records {
		if r.TrackingId == trackingId {
			r.Status = status
			if settlementTx != "" {
				r.SettlementTx = settlementTx
			}
			return nil
		}
	}
	return model.ErrNotFound
}

func (f *fakeRecordsDao) FindOneByTrackingId(_ context.Context, trackingId string) (*model.SwapRecords, error) {
	for _, r := range f.records {
		if r.TrackingId == trackingId {
			return r, nil
		}
	}
	return nil, model.ErrNotFound
}

func (f *fakeRecordsDao) ListByUser(_ context.Context, _ string, limit int) ([]*model.SwapRecords, error) {
	f.limit = limit
	return f.records, f.listErr
}

const user = "0x3333333333333333333333333333333333333333"

func newTestLogic(dao model.SwapRecordsDao) *SwapLogic {
	var c config.Config
	c.Swap = config.SwapConf{
		Chain:           "ETH",
		DefaultStrategy: strategy.DirectStrategyID,
		Fallbacks:       []string{strategy.BatchAuctionStrategyID},
		Uniswap: config.UniswapConf{
			Router: "0x4444444444444444444444444444444444444444",
		},
	}
	svcCtx := &svc.ServiceContext{
		Config:         c,
		SwapRecordsDao: dao,
		Registry:       strategy.DefaultRegistry(),
	}
	return NewSwapLogic(context.Background(), svcCtx)
}

func TestToSwapRequestAppliesDefaults(t *testing.T) {
	req := &types.SwapReq{
		UserAddress: user,
		TokenIn:     "0x1111111111111111111111111111111111111111",
		TokenOut:    "0x2222222222222222222222222222222222222222",
		Amount:      " 1000000000000000000 ",
	}

	out, err := toSwapRequest(req, strategy.DirectStrategyID)
	require.NoError(t, err)
	assert.Equal(t, strategy.DirectStrategyID, out.StrategyID)
	assert.Equal(t, "1000000000000000000", out.Amount.String())
	assert.Nil(t, out.Options)

	req.Strategy = strategy.BatchAuctionStrategyID
	req.SlippageBps = 100
	req.DeadlineSeconds = 600
	out, err = toSwapRequest(req, strategy.DirectStrategyID)
	require.NoError(t, err)
	assert.Equal(t, strategy.BatchAuctionStrategyID, out.StrategyID)
	require.NotNil(t, out.Options)
	assert.Equal(t, 100, out.Options.SlippageBps)
	assert.Equal(t, 10*time.Minute, out.Options.Deadline)
}

func TestToSwapRequestRejectsBadInput(t *testing.T) {
	var validation *strategy.ValidationError

	_, err := toSwapRequest(&types.SwapReq{Amount: "1.5"}, "direct")
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "amount", validation.Field)

	_, err = toSwapRequest(&types.SwapReq{Amount: "10", DeadlineSeconds: -1}, "direct")
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "deadlineSeconds", validation.Field)
}

func TestStrategyDepsCarriesConfig(t *testing.T) {
	c := config.SwapConf{
		ReceiptInterval: 2 * time.Second,
		Uniswap: config.UniswapConf{
			FeeTiers:             []uint32{3000},
			SlippageBps:          30,
			AllowUnprotectedSwap: true,
		},
		CowSwap: config.CowSwapConf{
			ApiUrl:          "https://api.cow.fi/sepolia",
			MaxPollAttempts: 5,
			Timeout:         10 * time.Second,
		},
	}

	deps := strategyDeps(c, 11155111)
	assert.Equal(t, int64(11155111), deps.ChainID)
	assert.Equal(t, 2*time.Second, deps.ReceiptInterval)
	assert.Equal(t, []uint32{3000}, deps.Uniswap.FeeTiers)
	assert.True(t, deps.Uniswap.AllowUnprotectedSwap)
	assert.Equal(t, "https://api.cow.fi/sepolia", deps.CowSwap.ApiUrl)
	assert.Equal(t, 5, deps.CowSwap.MaxPollAttempts)
	require.NotNil(t, deps.CowSwap.HTTPClient)
	assert.Equal(t, 10*time.Second, deps.CowSwap.HTTPClient.Timeout)
	assert.Nil(t, deps.Signer)
}

func TestToQuoteRespFormatsOutput(t *testing.T) {
	q := &strategy.Quote{
		EstimatedOutput:   big.NewInt(1_234_500),
		MinimumOutput:     big.NewInt(1_228_327),
		ExecutionPrice:    decimal.RequireFromString("0.0012345"),
		SlippageBps:       50,
		SlippageProtected: true,
	}

	resp := toQuoteResp("direct", q, 6)
	assert.Equal(t, "1234500", resp.EstimatedOutput)
	assert.Equal(t, "1228327", resp.MinimumOutput)
	assert.Equal(t, "1.2345", resp.FormattedOutput)
	assert.Equal(t, "0.0012345", resp.ExecutionPrice)
	assert.True(t, resp.SlippageProtected)

	assert.Empty(t, toQuoteResp("direct", q, 0).FormattedOutput)
}

func TestToSwapRespUsesConfiguredExplorerForTransactions(t *testing.T) {
	result := &strategy.SwapResult{
		Success:      true,
		Status:       strategy.StatusConfirmed,
		ID:           "0xabc",
		StrategyName: "Uniswap V3",
		ExplorerURL:  "https://etherscan.io/tx/0xabc",
		Timestamp:    time.Unix(1700000000, 0),
		AmountOut:    big.NewInt(42),
		TrackingInfo: strategy.TrackingInfo{CanTrack: true, TrackingMethod: strategy.TrackingTransaction, TrackingID: "0xabc"},
	}

	resp := toSwapResp(result, config.ChainConf{Explorer: "https://scan.local/tx/"})
	assert.Equal(t, "https://scan.local/tx/0xabc", resp.ExplorerUrl)
	assert.Equal(t, int64(1700000000), resp.Timestamp)
	assert.Equal(t, "42", resp.AmountOut)
	assert.Equal(t, strategy.TrackingTransaction, resp.TrackingInfo.TrackingMethod)

	result.TrackingInfo.TrackingMethod = strategy.TrackingOrder
	result.ExplorerURL = "https://explorer.cow.fi/orders/0xabc"
	resp = toSwapResp(result, config.ChainConf{Explorer: "https://scan.local/tx/"})
	assert.Equal(t, "https://explorer.cow.fi/orders/0xabc", resp.ExplorerUrl)
}

func TestUniqueIDs(t *testing.T) {
	assert.Equal(t, []string{"direct", "batch_auction"}, uniqueIDs([]string{"direct", "", "batch_auction", "direct"}))
	assert.Empty(t, uniqueIDs(nil))
}

func TestStrategiesReflectConfiguredAddresses(t *testing.T) {
	l := newTestLogic(&fakeRecordsDao{})

	resp, err := l.Strategies()
	require.NoError(t, err)
	assert.Equal(t, strategy.DirectStrategyID, resp.Default)
	assert.Equal(t, []string{strategy.BatchAuctionStrategyID}, resp.Fallbacks)
	require.Len(t, resp.Strategies, 2)

	byID := map[string]types.StrategyItem{}
	for _, item := range resp.Strategies {
		byID[item.Id] = item
	}
	assert.Equal(t, "0x4444444444444444444444444444444444444444", byID[strategy.DirectStrategyID].ApprovalAddress)
	assert.True(t, byID[strategy.DirectStrategyID].GasRequired)
	assert.Equal(t, strategy.SettlementBatchAuction, byID[strategy.BatchAuctionStrategyID].SettlementModel)
	assert.True(t, byID[strategy.BatchAuctionStrategyID].MevProtected)
}

func TestHistoryMapsRecords(t *testing.T) {
	created := time.Unix(1700000000, 0)
	dao := &fakeRecordsDao{records: []*model.SwapRecords{{
		TrackingId:   "0xorder",
		StrategyName: "CowSwap",
		UserAddress:  user,
		AmountIn:     "1000",
		AmountOut:    "990",
		Status:       strategy.StatusConfirmed,
		SettlementTx: "0xsettle",
		CreatedAt:    created,
	}}}
	l := newTestLogic(dao)

	resp, err := l.History(&types.HistoryReq{UserAddress: user, Limit: 5})
	require.NoError(t, err)
	require.Len(t, resp.Records, 1)
	assert.Equal(t, 5, dao.limit)
	assert.Equal(t, "0xorder", resp.Records[0].TrackingId)
	assert.Equal(t, "CowSwap", resp.Records[0].Strategy)
	assert.Equal(t, "0xsettle", resp.Records[0].SettlementTx)
	assert.Equal(t, created.Unix(), resp.Records[0].CreatedAt)
}

func TestHistoryValidatesAndPropagatesErrors(t *testing.T) {
	l := newTestLogic(&fakeRecordsDao{listErr: errors.New("db down")})

	var validation *strategy.ValidationError
	_, err := l.History(&types.HistoryReq{UserAddress: "nope"})
	require.ErrorAs(t, err, &validation)

	_, err = l.History(&types.HistoryReq{UserAddress: user})
	require.EqualError(t, err, "db down")
}

func TestSaveRecordStoresResult(t *testing.T) {
	dao := &fakeRecordsDao{}
	l := newTestLogic(dao)

	req := &strategy.SwapRequest{
		TokenIn:     "0x1111111111111111111111111111111111111111",
		TokenOut:    "0x2222222222222222222222222222222222222222",
		Amount:      big.NewInt(1000),
		UserAddress: user,
	}
	result := &strategy.SwapResult{
		Status:       strategy.StatusPending,
		ID:           "0xorder",
		StrategyID:   strategy.BatchAuctionStrategyID,
		StrategyName: "CowSwap",
	}
	l.saveRecord(req, result, "https://explorer.cow.fi/orders/0xorder")

	require.Len(t, dao.records, 1)
	rec := dao.records[0]
	assert.Equal(t, strategy.BatchAuctionStrategyID, rec.StrategyId)
	assert.Equal(t, "1000", rec.AmountIn)
	assert.Empty(t, rec.AmountOut)
	assert.Equal(t, strategy.StatusPending, rec.Status)

	require.NoError(t, dao.UpdateStatus(context.Background(), "0xorder", strategy.StatusConfirmed, "0xsettle"))
	assert.Equal(t, "0xsettle", rec.SettlementTx)
}
