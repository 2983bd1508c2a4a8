// internal/handlers/purchase_test.go
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"

	"github.com/mixtapefm/mixtape-backend/internal/models"
	"github.com/mixtapefm/mixtape-backend/internal/repository"
	"github.com/mixtapefm/mixtape-backend/internal/services"
)

var (
	testBuyer       = "0x1111111111111111111111111111111111111111"
	testPaymentHash = "0x" + strings.Repeat("a", 64)
	testMintHash    = "0x" + strings.Repeat("b", 64)
)

type stubPurchaseRepo struct {
	mu      sync.Mutex
	records map[string]*models.Purchase
}

func newStubPurchaseRepo() *stubPurchaseRepo {
	return &stubPurchaseRepo{records: make(map[string]*models.Purchase)}
}

var stubPredecessors = map[models.PurchaseStatus][]models.PurchaseStatus{
	models.PurchaseStatusVerifying: {models.PurchaseStatusPending, models.PurchaseStatusFailed},
	models.PurchaseStatusMinting:   {models.PurchaseStatusVerifying},
	models.PurchaseStatusMinted:    {models.PurchaseStatusMinting},
	models.PurchaseStatusFailed:    {models.PurchaseStatusPending, models.PurchaseStatusVerifying, models.PurchaseStatusMinting},
}

func (r *stubPurchaseRepo) GetOrCreate(ctx context.Context, usdcTxHash, walletAddress string) (*models.Purchase, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.records[usdcTxHash]; ok {
		copied := *existing
		return &copied, false, nil
	}
	record := &models.Purchase{
		WalletAddress: walletAddress,
		USDCTxHash:    usdcTxHash,
		Quantity:      1,
		Status:        models.PurchaseStatusPending,
	}
	r.records[usdcTxHash] = record
	copied := *record
	return &copied, true, nil
}

func (r *stubPurchaseRepo) AdvanceStatus(ctx context.Context, usdcTxHash string, next models.PurchaseStatus, upd repository.StatusUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[usdcTxHash]
	if !ok {
		return repository.ErrStaleTransition
	}
	allowed := false
	for _, pred := range stubPredecessors[next] {
		if record.Status == pred {
			allowed = true
			break
		}
	}
	if !allowed {
		return repository.ErrStaleTransition
	}
	record.Status = next
	record.UpdatedAt = time.Now()
	if upd.MintTxHash != "" {
		record.MintTxHash = upd.MintTxHash
	}
	if upd.AmountUSDC != 0 {
		record.AmountUSDC = upd.AmountUSDC
	}
	if upd.FailureReason != "" {
		record.FailureReason = upd.FailureReason
	}
	return nil
}

func (r *stubPurchaseRepo) GetByTxHash(ctx context.Context, usdcTxHash string) (*models.Purchase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[usdcTxHash]
	if !ok {
		return nil, repository.ErrPurchaseNotFound
	}
	copied := *record
	return &copied, nil
}

func (r *stubPurchaseRepo) FindStuck(ctx context.Context, status models.PurchaseStatus, olderThan time.Duration) ([]models.Purchase, error) {
	return nil, nil
}

type stubVerifier struct {
	err   error
	calls int
}

func (s *stubVerifier) VerifyPayment(ctx context.Context, txHash common.Hash) (*services.VerifiedPayment, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &services.VerifiedPayment{
		Sender: common.HexToAddress(testBuyer),
		Amount: big.NewInt(4200000),
	}, nil
}

type stubMinter struct {
	submitCalls int
}

func (s *stubMinter) SubmitMint(ctx context.Context, to common.Address, quantity int64) (common.Hash, error) {
	s.submitCalls++
	return common.HexToHash(testMintHash), nil
}

func (s *stubMinter) WaitForConfirmation(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return &types.Receipt{Status: types.ReceiptStatusSuccessful, TxHash: txHash}, nil
}

type stubBalanceReader struct {
	balance *big.Int
	err     error
}

func (s *stubBalanceReader) TokenBalance(ctx context.Context, owner common.Address) (*big.Int, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.balance, nil
}

type stubUserStore struct{}

func (s *stubUserStore) GetOrCreateByWallet(ctx context.Context, walletAddress string) (*models.User, error) {
	return &models.User{WalletAddress: strings.ToLower(walletAddress)}, nil
}

func (s *stubUserStore) SetOwnedCount(ctx context.Context, walletAddress string, count int64) error {
	return nil
}

type PurchaseHandlerTestSuite struct {
	suite.Suite
	repo     *stubPurchaseRepo
	verifier *stubVerifier
	minter   *stubMinter
	router   *gin.Engine
}

func (suite *PurchaseHandlerTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)

	suite.repo = newStubPurchaseRepo()
	suite.verifier = &stubVerifier{}
	suite.minter = &stubMinter{}

	settlementService := services.NewSettlementService(
		suite.repo, suite.verifier, suite.minter,
		&stubBalanceReader{balance: big.NewInt(1)}, &stubUserStore{},
	)
	handler := NewPurchaseHandler(settlementService)

	suite.router = gin.New()
	suite.router.POST("/v1/purchase/confirm", handler.ConfirmPurchase)
}

func (suite *PurchaseHandlerTestSuite) confirm(body map[string]interface{}) *httptest.ResponseRecorder {
	jsonData, _ := json.Marshal(body)
	req, _ := http.NewRequest("POST", "/v1/purchase/confirm", bytes.NewBuffer(jsonData))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

func (suite *PurchaseHandlerTestSuite) TestSuccessfulConfirmation() {
	w := suite.confirm(map[string]interface{}{
		"buyerAddress":  testBuyer,
		"paymentTxHash": testPaymentHash,
	})

	suite.Equal(http.StatusOK, w.Code)

	var response ConfirmPurchaseResponse
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &response))
	suite.True(response.Success)
	suite.Equal(testMintHash, response.MintTxHash)
	suite.False(response.AlreadyMinted)
}

func (suite *PurchaseHandlerTestSuite) TestReplayReturnsSameMintHash() {
	first := suite.confirm(map[string]interface{}{
		"buyerAddress":  testBuyer,
		"paymentTxHash": testPaymentHash,
	})
	suite.Require().Equal(http.StatusOK, first.Code)

	second := suite.confirm(map[string]interface{}{
		"buyerAddress":  testBuyer,
		"paymentTxHash": testPaymentHash,
	})
	suite.Require().Equal(http.StatusOK, second.Code)

	var response ConfirmPurchaseResponse
	suite.Require().NoError(json.Unmarshal(second.Body.Bytes(), &response))
	suite.True(response.Success)
	suite.True(response.AlreadyMinted)
	suite.Equal(testMintHash, response.MintTxHash)
	suite.Equal(1, suite.minter.submitCalls)
}

func (suite *PurchaseHandlerTestSuite) TestMissingParameters() {
	w := suite.confirm(map[string]interface{}{
		"buyerAddress": testBuyer,
	})

	suite.Equal(http.StatusBadRequest, w.Code)

	var response pipelineError
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &response))
	suite.Equal("INVALID_REQUEST", response.Code)
}

func (suite *PurchaseHandlerTestSuite) TestMalformedTxHash() {
	w := suite.confirm(map[string]interface{}{
		"buyerAddress":  testBuyer,
		"paymentTxHash": "0xnothex",
	})

	suite.Equal(http.StatusBadRequest, w.Code)

	var response pipelineError
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &response))
	suite.Equal("INVALID_REQUEST", response.Code)
	suite.Zero(suite.verifier.calls)
}

func (suite *PurchaseHandlerTestSuite) TestPaymentNotFound() {
	suite.verifier.err = services.ErrPaymentNotFound

	w := suite.confirm(map[string]interface{}{
		"buyerAddress":  testBuyer,
		"paymentTxHash": testPaymentHash,
	})

	suite.Equal(http.StatusBadRequest, w.Code)

	var response pipelineError
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &response))
	suite.Equal("PAYMENT_NOT_FOUND", response.Code)
}

func (suite *PurchaseHandlerTestSuite) TestInvalidPayment() {
	suite.verifier.err = services.ErrWrongRecipient

	w := suite.confirm(map[string]interface{}{
		"buyerAddress":  testBuyer,
		"paymentTxHash": testPaymentHash,
	})

	suite.Equal(http.StatusBadRequest, w.Code)

	var response pipelineError
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &response))
	suite.Equal("PAYMENT_INVALID", response.Code)
	suite.Zero(suite.minter.submitCalls)
}

func (suite *PurchaseHandlerTestSuite) TestConcurrentSettlementConflict() {
	record := &models.Purchase{
		WalletAddress: testBuyer,
		USDCTxHash:    testPaymentHash,
		Quantity:      1,
		Status:        models.PurchaseStatusMinting,
	}
	suite.repo.records[testPaymentHash] = record

	w := suite.confirm(map[string]interface{}{
		"buyerAddress":  testBuyer,
		"paymentTxHash": testPaymentHash,
	})

	suite.Equal(http.StatusConflict, w.Code)

	var response pipelineError
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &response))
	suite.Equal("SETTLEMENT_IN_PROGRESS", response.Code)
}

func TestPurchaseHandlerSuite(t *testing.T) {
	suite.Run(t, new(PurchaseHandlerTestSuite))
}
