package solana

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/ybbus/jsonrpc"

	"github.com/code-payments/code-vault/pkg/retry"
	"github.com/code-payments/code-vault/pkg/retry/backoff"
)

const (
	ticksPerSec  = 160
	ticksPerSlot = 64
	slotsPerSec  = ticksPerSec / ticksPerSlot

	// PollRate is the rate at which signature statuses are polled.
	PollRate = (time.Second / slotsPerSec) / 2

	// ~32 slots at twice the slot rate
	sigStatusPollLimit = 2 * 32

	// DefaultBlockhashTTL is how long a fetched blockhash is reused.
	DefaultBlockhashTTL = 2 * time.Second

	// Reference: https://github.com/solana-labs/solana/blob/71e9958e061493d7545bd28d4ac7a85aaed6ffbb/client/src/rpc_custom_error.rs#L11
	rpcNodeUnhealthyCode = -32005

	invalidParamCode = -32602
)

type Commitment struct {
	Commitment string `json:"commitment"`
}

const (
	confirmationStatusProcessed = "processed"
	confirmationStatusConfirmed = "confirmed"
	confirmationStatusFinalized = "finalized"
)

var (
	CommitmentProcessed = Commitment{Commitment: confirmationStatusProcessed}
	CommitmentConfirmed = Commitment{Commitment: confirmationStatusConfirmed}
	CommitmentFinalized = Commitment{Commitment: confirmationStatusFinalized}
)

var (
	ErrNoAccountInfo     = errors.New("no account info")
	ErrSignatureNotFound = errors.New("signature not found")
	ErrNoBalance         = errors.New("no balance")
)

// AccountInfo is the raw state of an account.
type AccountInfo struct {
	Data       []byte
	Owner      ed25519.PublicKey
	Lamports   uint64
	Executable bool
}

type SignatureStatus struct {
	Slot        uint64
	ErrorResult *TransactionError

	// Confirmations is nil once the transaction has been rooted.
	Confirmations      *int
	ConfirmationStatus string
}

func (s SignatureStatus) Confirmed() bool {
	if s.Finalized() || s.ConfirmationStatus == confirmationStatusConfirmed {
		return true
	}
	return *s.Confirmations >= 1
}

func (s SignatureStatus) Finalized() bool {
	return s.Confirmations == nil || s.ConfirmationStatus == confirmationStatusFinalized
}

// reached reports whether the status satisfies the commitment.
func (s SignatureStatus) reached(commitment Commitment) bool {
	switch commitment {
	case CommitmentConfirmed:
		return s.Confirmed()
	case CommitmentFinalized:
		return s.Finalized()
	default:
		return true
	}
}

// Client is the subset of the Solana JSON RPC API used to operate vaults.
//
// Reference: https://docs.solana.com/api/http
type Client interface {
	GetAccountInfo(ed25519.PublicKey, Commitment) (AccountInfo, error)
	GetBalance(ed25519.PublicKey) (uint64, error)
	GetMinimumBalanceForRentExemption(size uint64) (lamports uint64, err error)
	GetLatestBlockhash() (Blockhash, error)
	GetSignatureStatus(Signature, Commitment) (*SignatureStatus, error)
	GetSignatureStatuses([]Signature) ([]*SignatureStatus, error)
	RequestAirdrop(ed25519.PublicKey, uint64, Commitment) (Signature, error)
	SubmitTransaction(Transaction, Commitment) (Signature, error)
}

// Option configures a Client.
type Option func(c *client)

// WithRPCClientOpts configures the underlying JSON-RPC client.
func WithRPCClientOpts(opts *jsonrpc.RPCClientOpts) Option {
	return func(c *client) {
		c.rpcOpts = opts
	}
}

// WithBlockhashTTL sets how long GetLatestBlockhash reuses a fetched
// blockhash. Zero disables reuse.
func WithBlockhashTTL(ttl time.Duration) Option {
	return func(c *client) {
		c.blockhashTTL = ttl
	}
}

// WithRetrier replaces the retrier applied to rate limited and unhealthy
// node responses.
func WithRetrier(retrier retry.Retrier) Option {
	return func(c *client) {
		c.retrier = retrier
	}
}

var (
	errRateLimited  = errors.New("rate limited")
	errServiceError = errors.New("service error")
)

// contextualResponse is the envelope of methods that report the slot they
// were evaluated at.
type contextualResponse[T any] struct {
	Context struct {
		Slot uint64 `json:"slot"`
	} `json:"context"`
	Value T `json:"value"`
}

type client struct {
	log          *logrus.Entry
	rpcOpts      *jsonrpc.RPCClientOpts
	client       jsonrpc.RPCClient
	retrier      retry.Retrier
	blockhashTTL time.Duration

	blockMu   sync.RWMutex
	blockhash Blockhash
	lastWrite time.Time
}

// New returns a client using the specified endpoint.
func New(endpoint string, opts ...Option) Client {
	c := &client{
		log: logrus.StandardLogger().WithField("type", "solana/client"),
		retrier: retry.NewRetrier(
			retry.RetriableErrors(errRateLimited, errServiceError),
			retry.Limit(3),
			retry.BackoffWithJitter(backoff.BinaryExponential(time.Second), 10*time.Second, 0.1),
		),
		blockhashTTL: DefaultBlockhashTTL,
	}
	for _, o := range opts {
		o(c)
	}

	c.client = jsonrpc.NewClientWithOpts(endpoint, c.rpcOpts)
	return c
}

func (c *client) call(out interface{}, method string, params ...interface{}) error {
	_, err := c.retrier.Retry(func() error {
		err := c.client.CallFor(out, method, params...)
		if err == nil {
			return nil
		}

		return c.classifyError(method, err)
	})

	return err
}

// classifyError maps node side failures worth retrying onto the retriable
// errors. Everything else passes through.
func (c *client) classifyError(method string, err error) error {
	rpcErr, ok := err.(*jsonrpc.RPCError)
	if !ok {
		return err
	}

	switch {
	case rpcErr.Code == 429:
		c.log.WithField("method", method).Warn("rate limited")
		return errRateLimited
	case rpcErr.Code >= 500, rpcErr.Code == rpcNodeUnhealthyCode:
		c.log.WithField("method", method).WithField("code", rpcErr.Code).Debug("node unavailable")
		return errServiceError
	default:
		return err
	}
}

func (c *client) GetMinimumBalanceForRentExemption(dataSize uint64) (lamports uint64, err error) {
	if err := c.call(&lamports, "getMinimumBalanceForRentExemption", dataSize); err != nil {
		return 0, errors.Wrap(err, "getMinimumBalanceForRentExemption() failed to send request")
	}

	return lamports, nil
}

func (c *client) GetLatestBlockhash() (Blockhash, error) {
	if hash, ok := c.cachedBlockhash(); ok {
		return hash, nil
	}

	var resp contextualResponse[struct {
		Blockhash string `json:"blockhash"`
	}]
	if err := c.call(&resp, "getLatestBlockhash"); err != nil {
		return Blockhash{}, errors.Wrap(err, "getLatestBlockhash() failed to send request")
	}

	var hash Blockhash
	if err := decodeFixed(resp.Value.Blockhash, hash[:]); err != nil {
		return Blockhash{}, errors.Wrap(err, "invalid blockhash in response")
	}

	c.blockMu.Lock()
	c.blockhash = hash
	c.lastWrite = time.Now()
	c.blockMu.Unlock()

	return hash, nil
}

// cachedBlockhash returns the last fetched blockhash while it's within a
// jittered TTL, so many callers don't refresh in lockstep.
func (c *client) cachedBlockhash() (Blockhash, bool) {
	if c.blockhashTTL <= 0 {
		return Blockhash{}, false
	}

	ttl := time.Duration(float64(c.blockhashTTL) * (0.8 + 0.4*rand.Float64()))

	c.blockMu.RLock()
	defer c.blockMu.RUnlock()

	if c.blockhash == (Blockhash{}) || time.Since(c.lastWrite) >= ttl {
		return Blockhash{}, false
	}
	return c.blockhash, true
}

func (c *client) GetBalance(account ed25519.PublicKey) (uint64, error) {
	var resp contextualResponse[*uint64]
	if err := c.call(&resp, "getBalance", base58.Encode(account), CommitmentProcessed); err != nil {
		if rpcErr, ok := err.(*jsonrpc.RPCError); ok && rpcErr.Code == invalidParamCode {
			return 0, ErrNoBalance
		}

		return 0, errors.Wrap(err, "getBalance() failed to send request")
	}

	if resp.Value == nil {
		return 0, errors.New("invalid value in response")
	}
	return *resp.Value, nil
}

// SubmitTransaction sends the transaction. Failures reported by the node
// during preflight are returned as *TransactionError.
func (c *client) SubmitTransaction(txn Transaction, commitment Commitment) (Signature, error) {
	sig := txn.Signature()

	config := struct {
		SkipPreflight       bool   `json:"skipPreflight"`
		PreflightCommitment string `json:"preflightCommitment"`
	}{
		PreflightCommitment: commitment.Commitment,
	}

	var sigStr string
	err := c.call(&sigStr, "sendTransaction", base58.Encode(txn.Marshal()), config)
	if err != nil {
		rpcErr, ok := err.(*jsonrpc.RPCError)
		if !ok {
			return sig, errors.Wrap(err, "sendTransaction() failed to send request")
		}

		txErr, parseErr := ParseRPCError(rpcErr)
		if parseErr != nil || txErr == nil {
			return sig, errors.Wrap(err, "sendTransaction() failed")
		}
		return sig, txErr
	}

	var returned Signature
	if err := decodeFixed(sigStr, returned[:]); err != nil {
		return sig, errors.Wrap(err, "invalid signature in response")
	}
	if returned != sig {
		return sig, errors.Errorf("node returned signature %s for %s", sigStr, base58.Encode(sig[:]))
	}
	return sig, nil
}

func (c *client) GetAccountInfo(account ed25519.PublicKey, commitment Commitment) (AccountInfo, error) {
	rpcConfig := struct {
		Commitment string `json:"commitment"`
		Encoding   string `json:"encoding"`
	}{
		Commitment: commitment.Commitment,
		Encoding:   "base64",
	}

	var resp contextualResponse[*struct {
		Lamports   uint64   `json:"lamports"`
		Owner      string   `json:"owner"`
		Data       []string `json:"data"`
		Executable bool     `json:"executable"`
	}]
	if err := c.call(&resp, "getAccountInfo", base58.Encode(account), rpcConfig); err != nil {
		return AccountInfo{}, errors.Wrap(err, "getAccountInfo() failed to send request")
	}

	value := resp.Value
	if value == nil {
		return AccountInfo{}, ErrNoAccountInfo
	}

	info := AccountInfo{
		Owner:      make(ed25519.PublicKey, ed25519.PublicKeySize),
		Lamports:   value.Lamports,
		Executable: value.Executable,
	}
	if err := decodeFixed(value.Owner, info.Owner); err != nil {
		return AccountInfo{}, errors.Wrap(err, "invalid owner in response")
	}

	// Data is encoded as [payload, encoding]
	if len(value.Data) > 0 {
		if len(value.Data) > 1 && value.Data[1] != "base64" {
			return AccountInfo{}, errors.Errorf("unexpected data encoding %s", value.Data[1])
		}

		var err error
		info.Data, err = base64.StdEncoding.DecodeString(value.Data[0])
		if err != nil {
			return AccountInfo{}, errors.Wrap(err, "invalid base64 encoded data")
		}
	}

	return info, nil
}

func (c *client) RequestAirdrop(account ed25519.PublicKey, lamports uint64, commitment Commitment) (Signature, error) {
	var sigStr string
	if err := c.call(&sigStr, "requestAirdrop", base58.Encode(account), lamports, commitment); err != nil {
		return Signature{}, errors.Wrap(err, "requestAirdrop() failed to send request")
	}

	var sig Signature
	if err := decodeFixed(sigStr, sig[:]); err != nil {
		return Signature{}, errors.Wrap(err, "invalid signature in response")
	}
	if sig == (Signature{}) {
		return Signature{}, errors.New("empty signature returned")
	}

	return sig, nil
}

// GetSignatureStatus polls until the transaction reaches the commitment,
// fails, or the poll limit is hit.
func (c *client) GetSignatureStatus(sig Signature, commitment Commitment) (*SignatureStatus, error) {
	var s *SignatureStatus
	errConfirmationsNotReached := errors.New("confirmations not reached")

	_, err := retry.Retry(
		func() error {
			statuses, err := c.GetSignatureStatuses([]Signature{sig})
			if err != nil {
				return err
			}

			s = statuses[0]
			switch {
			case s == nil:
				return ErrSignatureNotFound
			case s.ErrorResult != nil, s.reached(commitment):
				return nil
			default:
				return errConfirmationsNotReached
			}
		},
		retry.RetriableErrors(ErrSignatureNotFound, errConfirmationsNotReached),
		retry.Limit(sigStatusPollLimit),
		retry.Backoff(backoff.Constant(PollRate), PollRate),
	)

	return s, err
}

func (c *client) GetSignatureStatuses(sigs []Signature) ([]*SignatureStatus, error) {
	encoded := make([]string, len(sigs))
	for i := range sigs {
		encoded[i] = base58.Encode(sigs[i][:])
	}

	req := struct {
		SearchTransactionHistory bool `json:"searchTransactionHistory"`
	}{
		SearchTransactionHistory: true,
	}

	var resp contextualResponse[[]*struct {
		Slot               uint64          `json:"slot"`
		Confirmations      *int            `json:"confirmations"`
		ConfirmationStatus string          `json:"confirmationStatus"`
		Err                json.RawMessage `json:"err"`
	}]
	if err := c.call(&resp, "getSignatureStatuses", encoded, req); err != nil {
		return nil, errors.Wrap(err, "getSignatureStatuses() failed to send request")
	}
	if len(resp.Value) > len(sigs) {
		return nil, errors.Errorf("expected at most %d statuses, got %d", len(sigs), len(resp.Value))
	}

	statuses := make([]*SignatureStatus, len(sigs))
	for i, v := range resp.Value {
		if v == nil {
			continue
		}

		txErr, err := parseStatusError(v.Err)
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse transaction result")
		}

		statuses[i] = &SignatureStatus{
			Slot:               v.Slot,
			ErrorResult:        txErr,
			Confirmations:      v.Confirmations,
			ConfirmationStatus: v.ConfirmationStatus,
		}
	}

	return statuses, nil
}

func parseStatusError(raw json.RawMessage) (*TransactionError, error) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	var decoded interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, err
	}
	return ParseTransactionError(decoded)
}

// decodeFixed decodes a base58 value that must fill dst exactly.
func decodeFixed(encoded string, dst []byte) error {
	decoded, err := base58.Decode(encoded)
	if err != nil {
		return err
	}
	if len(decoded) != len(dst) {
		return errors.Errorf("expected %d bytes, got %d", len(dst), len(decoded))
	}
	copy(dst, decoded)
	return nil
}
