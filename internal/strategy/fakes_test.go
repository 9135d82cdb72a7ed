package strategy

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"swapengine/internal/chain"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	evmTypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/stretchr/testify/require"
)

var (
	testTokenIn  = "0x1111111111111111111111111111111111111111"
	testTokenOut = "0x2222222222222222222222222222222222222222"
	testNow      = time.Unix(1_700_000_000, 0)
)

// fakeProvider 按目标地址分派 eth_call，并为任意哈希返回回执
type fakeProvider struct {
	mu sync.Mutex

	allowance      *big.Int
	allowanceErr   error
	allowanceCalls int

	quoter common.Address
	quotes map[uint32]*big.Int

	revertAll    bool
	receiptLogs  []*evmTypes.Log
	missing      map[common.Hash]bool
	receiptErrs  []error // 依次返回后恢复正常
	receiptErr   error   // 持续返回
	receiptCalls int

	journal *journal
}

func (p *fakeProvider) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if msg.To != nil && *msg.To == p.quoter {
		method := quoterABI.Methods["quoteExactInputSingle"]
		args, err := method.Inputs.Unpack(msg.Data[4:])
		if err != nil {
			return nil, err
		}
		params := *abi.ConvertType(args[0], new(quoteExactInputSingleParams)).(*quoteExactInputSingleParams)
		out, ok := p.quotes[uint32(params.Fee.Uint64())]
		if !ok {
			return nil, errors.New("execution reverted")
		}
		return method.Outputs.Pack(out, big.NewInt(0), uint32(0), big.NewInt(0))
	}

	p.allowanceCalls++
	p.journal.add("allowance")
	if p.allowanceErr != nil {
		return nil, p.allowanceErr
	}
	allowance := p.allowance
	if allowance == nil {
		allowance = big.NewInt(0)
	}
	return chain.ERC20ABI.Methods["allowance"].Outputs.Pack(allowance)
}

func (p *fakeProvider) TransactionReceipt(_ context.Context, hash common.Hash) (*evmTypes.Receipt, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.receiptCalls++
	if len(p.receiptErrs) > 0 {
		err := p.receiptErrs[0]
		p.receiptErrs = p.receiptErrs[1:]
		return nil, err
	}
	if p.receiptErr != nil {
		return nil, p.receiptErr
	}
	if p.missing[hash] {
		return nil, ethereum.NotFound
	}
	status := evmTypes.ReceiptStatusSuccessful
	if p.revertAll {
		status = evmTypes.ReceiptStatusFailed
	}
	return &evmTypes.Receipt{
		Status:      status,
		TxHash:      hash,
		BlockNumber: big.NewInt(100),
		GasUsed:     21000,
		Logs:        p.receiptLogs,
	}, nil
}

// fakeSigner 记录发送的交易，签名使用真实私钥
type fakeSigner struct {
	mu      sync.Mutex
	key     *ecdsa.PrivateKey
	chainID *big.Int
	sent    []chain.TxRequest
	sendErr error
	journal *journal
}

func newFakeSigner(t *testing.T, j *journal) *fakeSigner {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return &fakeSigner{key: key, chainID: big.NewInt(1), journal: j}
}

func (s *fakeSigner) Address() common.Address {
	return crypto.PubkeyToAddress(s.key.PublicKey)
}

func (s *fakeSigner) ChainID(context.Context) (*big.Int, error) {
	return new(big.Int).Set(s.chainID), nil
}

func (s *fakeSigner) SendTransaction(_ context.Context, req chain.TxRequest) (common.Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return common.Hash{}, s.sendErr
	}
	s.sent = append(s.sent, req)
	s.journal.add("send:" + req.To.Hex())
	return crypto.Keccak256Hash(req.Data, big.NewInt(int64(len(s.sent))).Bytes()), nil
}

func (s *fakeSigner) SignTypedData(ctx context.Context, data apitypes.TypedData) ([]byte, error) {
	s.journal.add("sign")
	return chain.NewKeySigner(s.key, nil).SignTypedData(ctx, data)
}

func (s *fakeSigner) sentCopy() []chain.TxRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]chain.TxRequest(nil), s.sent...)
}

type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(entry string) {
	if j == nil {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, entry)
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

func testDeps(signer chain.Signer, provider chain.Provider) Deps {
	return Deps{
		Signer:           signer,
		Provider:         provider,
		ChainID:          1,
		ReceiptInterval:  time.Millisecond,
		AllowanceRetries: 3,
		RetryDelay:       time.Millisecond,
		Now:              func() time.Time { return testNow },
	}
}

func testRequest(user common.Address, amount int64) *SwapRequest {
	return &SwapRequest{
		TokenIn:     testTokenIn,
		TokenOut:    testTokenOut,
		Amount:      big.NewInt(amount),
		UserAddress: user.Hex(),
	}
}

func transferLog(token, to common.Address, amount int64) *evmTypes.Log {
	return &evmTypes.Log{
		Address: token,
		Topics: []common.Hash{
			chain.TransferEventSignature,
			common.BytesToHash(common.HexToAddress("0x9999999999999999999999999999999999999999").Bytes()),
			common.BytesToHash(to.Bytes()),
		},
		Data: common.LeftPadBytes(big.NewInt(amount).Bytes(), 32),
	}
}
