// Package rpc serves a vault Processor over the subset of the Solana JSON RPC
// API that solana.Client uses, so clients can't tell a local ledger apart
// from a cluster running the vault program.
package rpc

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"sync/atomic"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/code-vault/pkg/app"
	"github.com/code-payments/code-vault/pkg/cache"
	"github.com/code-payments/code-vault/pkg/code/vault"
	"github.com/code-payments/code-vault/pkg/ledger"
	"github.com/code-payments/code-vault/pkg/metrics"
	"github.com/code-payments/code-vault/pkg/rent"
	"github.com/code-payments/code-vault/pkg/solana"
)

const (
	metricsStructName = "rpc.server"

	jsonRPCVersion = "2.0"

	parseErrorCode                  = -32700
	invalidRequestCode              = -32600
	methodNotFoundCode              = -32601
	invalidParamsCode               = -32602
	internalErrorCode               = -32603
	transactionSimulationFailedCode = -32002
	rateLimitedCode                 = 429

	// Blockhashes are considered valid for this many slots, matching clusters.
	blockhashValiditySlots = 150

	maxRequestSize = 1 << 20
)

var (
	errMissingParams = errors.New("missing params")
	errAirdropsOff   = errors.New("airdrops are disabled")
)

type request struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      json.RawMessage   `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *rpcError) Error() string {
	return e.Message
}

type rpcContext struct {
	Slot uint64 `json:"slot"`
}

type contextualResult struct {
	Context rpcContext  `json:"context"`
	Value   interface{} `json:"value"`
}

type accountInfo struct {
	Lamports   uint64   `json:"lamports"`
	Owner      string   `json:"owner"`
	Data       []string `json:"data"`
	Executable bool     `json:"executable"`
	RentEpoch  uint64   `json:"rentEpoch"`
}

type signatureStatus struct {
	Slot               uint64      `json:"slot"`
	Confirmations      *int        `json:"confirmations"`
	ConfirmationStatus string      `json:"confirmationStatus"`
	Err                interface{} `json:"err"`
}

type handlerFunc func(ctx context.Context, params []json.RawMessage) (interface{}, error)

// Server is an http.Handler serving JSON RPC requests against a Processor.
// Executed transactions are final immediately.
type Server struct {
	log       *logrus.Entry
	conf      *conf
	processor *vault.Processor
	ledger    ledger.Ledger
	rent      rent.Calculator

	// Statuses of transactions that committed, by signature
	statuses cache.Cache
	slot     atomic.Uint64

	handlers map[string]handlerFunc
}

// NewServer returns a Server for processor, which must execute against l.
func NewServer(processor *vault.Processor, l ledger.Ledger, calculator rent.Calculator, configProvider ConfigProvider) *Server {
	conf := configProvider()

	s := &Server{
		log:       logrus.StandardLogger().WithField("type", "rpc/server"),
		conf:      conf,
		processor: processor,
		ledger:    l,
		rent:      calculator,
		statuses:  cache.NewCache(int(conf.signatureStatusCacheSize.Get(context.Background()))),
	}

	s.handlers = map[string]handlerFunc{
		"getAccountInfo":                    s.getAccountInfo,
		"getBalance":                        s.getBalance,
		"getLatestBlockhash":                s.getLatestBlockhash,
		"getMinimumBalanceForRentExemption": s.getMinimumBalanceForRentExemption,
		"getSignatureStatuses":              s.getSignatureStatuses,
		"requestAirdrop":                    s.requestAirdrop,
		"sendTransaction":                   s.sendTransaction,
	}

	return s
}

// ServeHTTP implements http.Handler.ServeHTTP
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	resp := &response{JSONRPC: jsonRPCVersion}

	var req request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestSize)).Decode(&req); err != nil {
		resp.Error = &rpcError{Code: parseErrorCode, Message: "parse error"}
		s.write(w, resp)
		return
	}
	resp.ID = req.ID

	if req.JSONRPC != jsonRPCVersion || len(req.Method) == 0 {
		resp.Error = &rpcError{Code: invalidRequestCode, Message: "invalid request"}
		s.write(w, resp)
		return
	}

	result, err := s.handle(r.Context(), &req)
	if err != nil {
		resp.Error = s.toRPCError(r.Context(), req.Method, err)
		s.write(w, resp)
		return
	}

	resp.Result, err = json.Marshal(result)
	if err != nil {
		s.requestLog(r.Context(), req.Method).WithError(err).Warn("failure encoding result")
		resp.Error = &rpcError{Code: internalErrorCode, Message: "internal error"}
	}
	s.write(w, resp)
}

func (s *Server) handle(ctx context.Context, req *request) (interface{}, error) {
	handler, ok := s.handlers[req.Method]
	if !ok {
		return nil, &rpcError{Code: methodNotFoundCode, Message: "method not found"}
	}

	tracer := metrics.TraceMethodCall(ctx, metricsStructName, req.Method)
	defer tracer.End()

	result, err := handler(ctx, req.Params)
	if err != nil {
		tracer.OnError(err)
	}
	return result, err
}

func (s *Server) write(w http.ResponseWriter, resp *response) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.WithError(err).Debug("failure writing response")
	}
}

func (s *Server) requestLog(ctx context.Context, method string) *logrus.Entry {
	return s.log.WithFields(logrus.Fields{
		"method":     method,
		"request_id": app.RequestID(ctx),
	})
}

func (s *Server) toRPCError(ctx context.Context, method string, err error) *rpcError {
	log := s.requestLog(ctx, method)

	if rpcErr, ok := err.(*rpcError); ok {
		return rpcErr
	}

	if errors.Is(err, vault.ErrRateLimited) {
		return &rpcError{Code: rateLimitedCode, Message: "too many requests"}
	}

	if txErr := vault.TransactionErrorFromError(err); txErr != nil {
		return &rpcError{
			Code:    transactionSimulationFailedCode,
			Message: "Transaction simulation failed: " + txErr.Error(),
			Data: map[string]interface{}{
				"err":  txErr,
				"logs": []string{err.Error()},
			},
		}
	}

	log.WithError(err).Warn("failure handling request")
	return &rpcError{Code: internalErrorCode, Message: "internal error"}
}

func (s *Server) getAccountInfo(ctx context.Context, params []json.RawMessage) (interface{}, error) {
	address, err := addressParam(params, 0)
	if err != nil {
		return nil, err
	}

	result := &contextualResult{Context: s.context()}

	account, err := s.ledger.GetAccount(ctx, address)
	if err == ledger.ErrAccountNotFound {
		return result, nil
	} else if err != nil {
		return nil, err
	}

	result.Value = &accountInfo{
		Lamports: account.Lamports,
		Owner:    base58.Encode(account.Owner),
		Data:     []string{base64.StdEncoding.EncodeToString(account.Data), "base64"},
	}
	return result, nil
}

func (s *Server) getBalance(ctx context.Context, params []json.RawMessage) (interface{}, error) {
	address, err := addressParam(params, 0)
	if err != nil {
		return nil, err
	}

	balance, err := s.ledger.GetBalance(ctx, address)
	if err != nil {
		return nil, err
	}

	return &contextualResult{
		Context: s.context(),
		Value:   balance,
	}, nil
}

func (s *Server) getLatestBlockhash(ctx context.Context, _ []json.RawMessage) (interface{}, error) {
	blockhash, err := s.processor.GetLatestBlockhash(ctx)
	if err != nil {
		return nil, err
	}

	rpcCtx := s.context()
	return &contextualResult{
		Context: rpcCtx,
		Value: map[string]interface{}{
			"blockhash":            base58.Encode(blockhash[:]),
			"lastValidBlockHeight": rpcCtx.Slot + blockhashValiditySlots,
		},
	}, nil
}

func (s *Server) getMinimumBalanceForRentExemption(ctx context.Context, params []json.RawMessage) (interface{}, error) {
	var size uint64
	if err := decodeParam(params, 0, &size); err != nil {
		return nil, err
	}

	return s.rent.MinimumBalance(ctx, size)
}

func (s *Server) getSignatureStatuses(_ context.Context, params []json.RawMessage) (interface{}, error) {
	var encoded []string
	if err := decodeParam(params, 0, &encoded); err != nil {
		return nil, err
	}

	statuses := make([]*signatureStatus, len(encoded))
	for i, sig := range encoded {
		if cached, ok := s.statuses.Retrieve(sig); ok {
			statuses[i] = cached.(*signatureStatus)
		}
	}

	return &contextualResult{
		Context: s.context(),
		Value:   statuses,
	}, nil
}

func (s *Server) requestAirdrop(ctx context.Context, params []json.RawMessage) (interface{}, error) {
	if s.conf.disableAirdrops.Get(ctx) {
		return nil, &rpcError{Code: invalidRequestCode, Message: errAirdropsOff.Error()}
	}

	address, err := addressParam(params, 0)
	if err != nil {
		return nil, err
	}

	var lamports uint64
	if err := decodeParam(params, 1, &lamports); err != nil {
		return nil, err
	}
	if lamports == 0 || lamports > s.conf.maxAirdropLamports.Get(ctx) {
		return nil, &rpcError{Code: invalidParamsCode, Message: "invalid airdrop amount"}
	}

	if err := s.ledger.Airdrop(ctx, address, lamports); err != nil {
		return nil, err
	}

	var sig solana.Signature
	if _, err := rand.Read(sig[:]); err != nil {
		return nil, errors.Wrap(err, "error generating airdrop signature")
	}
	s.recordCommitted(sig)

	s.log.WithFields(logrus.Fields{
		"method":   "requestAirdrop",
		"address":  base58.Encode(address),
		"lamports": lamports,
	}).Debug("airdropped")

	return base58.Encode(sig[:]), nil
}

func (s *Server) sendTransaction(ctx context.Context, params []json.RawMessage) (interface{}, error) {
	var encoded string
	if err := decodeParam(params, 0, &encoded); err != nil {
		return nil, err
	}

	var config struct {
		Encoding string `json:"encoding"`
	}
	if len(params) > 1 {
		if err := json.Unmarshal(params[1], &config); err != nil {
			return nil, &rpcError{Code: invalidParamsCode, Message: "invalid config"}
		}
	}

	var raw []byte
	var err error
	switch config.Encoding {
	case "", "base58":
		raw, err = base58.Decode(encoded)
	case "base64":
		raw, err = base64.StdEncoding.DecodeString(encoded)
	default:
		return nil, &rpcError{Code: invalidParamsCode, Message: "unsupported encoding"}
	}
	if err != nil {
		return nil, &rpcError{Code: invalidParamsCode, Message: "invalid transaction encoding"}
	}

	var txn solana.Transaction
	if err := txn.Unmarshal(raw); err != nil {
		return nil, &rpcError{Code: invalidParamsCode, Message: "invalid transaction"}
	}

	sig, err := s.processor.SubmitTransaction(ctx, txn)
	if err != nil {
		return nil, err
	}
	s.recordCommitted(sig)

	return base58.Encode(sig[:]), nil
}

func (s *Server) recordCommitted(sig solana.Signature) {
	status := &signatureStatus{
		Slot:               s.slot.Add(1),
		ConfirmationStatus: "finalized",
	}

	// Signatures are unique, a collision means the status was already recorded.
	_ = s.statuses.Insert(base58.Encode(sig[:]), status, 1)
}

func (s *Server) context() rpcContext {
	return rpcContext{Slot: s.slot.Load()}
}

func decodeParam(params []json.RawMessage, index int, out interface{}) error {
	if index >= len(params) {
		return &rpcError{Code: invalidParamsCode, Message: errMissingParams.Error()}
	}
	if err := json.Unmarshal(params[index], out); err != nil {
		return &rpcError{Code: invalidParamsCode, Message: "invalid params"}
	}
	return nil
}

func addressParam(params []json.RawMessage, index int) (ed25519.PublicKey, error) {
	var encoded string
	if err := decodeParam(params, index, &encoded); err != nil {
		return nil, err
	}

	decoded, err := base58.Decode(encoded)
	if err != nil || len(decoded) != ed25519.PublicKeySize {
		return nil, &rpcError{Code: invalidParamsCode, Message: "invalid address"}
	}
	return decoded, nil
}
