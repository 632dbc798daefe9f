/*
rpc.go - JSON-RPC chain reader

PURPOSE:
  Reads the settlement contract over plain JSON-RPC 2.0: eth_blockNumber for
  the head, eth_getBlockByNumber for block timestamps, eth_getBalance for the
  contract balance, eth_getLogs filtered on the settlement event signature
  for the event history.

EVENT LAYOUT:
  topics: [settlement signature, buyer (padded), seller (padded)]
  data:   three 32-byte words - price (wei), fee (wei), unix timestamp

RESILIENCE:
  Every call carries the caller's context plus a per-request timeout, and is
  retried a bounded number of times with linear backoff. A request that
  exhausts its budget returns an error wrapping ledger.ErrChainUnavailable.

UNITS:
  Quantities arrive as hex wei and are converted to base-currency decimals
  (shift by -18) before leaving this package. No binary floating point.
*/
package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/prism/market-ledger/ledger"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// SettlementTopic is the indexed signature of the contract's settlement
// event.
const SettlementTopic = "0x8f2f2c3a6f1f4b9a0d7e5c1b3a9d8e7f6c5b4a3928171605f4e3d2c1b0a99887"

const weiDecimals = 18

// RPCReader implements Reader over an EVM-style JSON-RPC endpoint.
type RPCReader struct {
	endpoint string
	contract string
	client   *http.Client
	retries  int
	backoff  time.Duration
	log      zerolog.Logger
}

// RPCOption customizes an RPCReader.
type RPCOption func(*RPCReader)

// WithHTTPClient overrides the HTTP client (tests).
func WithHTTPClient(c *http.Client) RPCOption {
	return func(r *RPCReader) { r.client = c }
}

// WithRetries sets how many times a failed call is retried.
func WithRetries(n int) RPCOption {
	return func(r *RPCReader) { r.retries = n }
}

// NewRPCReader builds a reader for the settlement contract at the given
// address.
func NewRPCReader(endpoint, contractAddress string, log zerolog.Logger, opts ...RPCOption) *RPCReader {
	r := &RPCReader{
		endpoint: endpoint,
		contract: strings.ToLower(contractAddress),
		client:   &http.Client{Timeout: 10 * time.Second},
		retries:  2,
		backoff:  200 * time.Millisecond,
		log:      log.With().Str("component", "chain").Logger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// =============================================================================
// READER INTERFACE
// =============================================================================

func (r *RPCReader) HeadBlock(ctx context.Context) (uint64, error) {
	var result string
	if err := r.call(ctx, "eth_blockNumber", []any{}, &result); err != nil {
		return 0, err
	}
	n, err := parseHexUint(result)
	if err != nil {
		return 0, fmt.Errorf("malformed block number %q: %w", result, err)
	}
	return n, nil
}

func (r *RPCReader) BlockTime(ctx context.Context, number uint64) (time.Time, error) {
	var result struct {
		Timestamp string `json:"timestamp"`
	}
	if err := r.call(ctx, "eth_getBlockByNumber", []any{hexUint(number), false}, &result); err != nil {
		return time.Time{}, err
	}
	ts, err := parseHexBig(result.Timestamp)
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed block timestamp %q: %w", result.Timestamp, err)
	}
	return time.Unix(ts.Int64(), 0).UTC(), nil
}

func (r *RPCReader) Balance(ctx context.Context) (decimal.Decimal, error) {
	var result string
	if err := r.call(ctx, "eth_getBalance", []any{r.contract, "latest"}, &result); err != nil {
		return decimal.Zero, err
	}
	wei, err := parseHexBig(result)
	if err != nil {
		return decimal.Zero, fmt.Errorf("malformed balance %q: %w", result, err)
	}
	return decimal.NewFromBigInt(wei, -weiDecimals), nil
}

func (r *RPCReader) Events(ctx context.Context, fromBlock, toBlock uint64) ([]Event, error) {
	filter := map[string]any{
		"address":   r.contract,
		"topics":    []any{SettlementTopic},
		"fromBlock": hexUint(fromBlock),
		"toBlock":   hexUint(toBlock),
	}

	var logs []rpcLog
	if err := r.call(ctx, "eth_getLogs", []any{filter}, &logs); err != nil {
		return nil, err
	}

	events := make([]Event, 0, len(logs))
	for _, lg := range logs {
		ev, err := decodeSettlementLog(lg)
		if err != nil {
			// A malformed log is a contract/ABI problem, not an outage.
			// Skip it rather than discard the whole window.
			r.log.Warn().Err(err).Str("tx", lg.TransactionHash).Msg("skipping undecodable settlement log")
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

// =============================================================================
// JSON-RPC PLUMBING
// =============================================================================

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type rpcLog struct {
	Topics          []string `json:"topics"`
	Data            string   `json:"data"`
	BlockNumber     string   `json:"blockNumber"`
	TransactionHash string   `json:"transactionHash"`
}

// call performs one JSON-RPC request with bounded retries. Transport
// failures wrap ledger.ErrChainUnavailable; RPC-level errors (bad params,
// node-side rejection) do not, since retrying cannot fix them.
func (r *RPCReader) call(ctx context.Context, method string, params []any, result any) error {
	payload, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", method, err)
	}

	var lastErr error
	for attempt := 0; attempt <= r.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("%s: %w: %w", method, ledger.ErrChainUnavailable, ctx.Err())
			case <-time.After(time.Duration(attempt) * r.backoff):
			}
		}

		lastErr = r.once(ctx, method, payload, result)
		if lastErr == nil {
			return nil
		}
		var rpcErr *rpcError
		if errors.As(lastErr, &rpcErr) {
			return fmt.Errorf("%s: %w", method, rpcErr)
		}
		r.log.Debug().Err(lastErr).Str("method", method).Int("attempt", attempt+1).Msg("chain call failed")
	}
	return fmt.Errorf("%s after %d attempts: %w: %w", method, r.retries+1, ledger.ErrChainUnavailable, lastErr)
}

func (r *RPCReader) once(ctx context.Context, method string, payload []byte, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var envelope rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	if envelope.Error != nil {
		return envelope.Error
	}
	return json.Unmarshal(envelope.Result, result)
}

// =============================================================================
// DECODING
// =============================================================================

func decodeSettlementLog(lg rpcLog) (Event, error) {
	if len(lg.Topics) != 3 {
		return Event{}, fmt.Errorf("expected 3 topics, got %d", len(lg.Topics))
	}

	data := strings.TrimPrefix(lg.Data, "0x")
	if len(data) != 3*64 {
		return Event{}, fmt.Errorf("expected 3 data words, got %d hex chars", len(data))
	}

	price, err := parseHexBig("0x" + data[0:64])
	if err != nil {
		return Event{}, fmt.Errorf("price word: %w", err)
	}
	fee, err := parseHexBig("0x" + data[64:128])
	if err != nil {
		return Event{}, fmt.Errorf("fee word: %w", err)
	}
	ts, err := parseHexBig("0x" + data[128:192])
	if err != nil {
		return Event{}, fmt.Errorf("timestamp word: %w", err)
	}
	block, err := parseHexUint(lg.BlockNumber)
	if err != nil {
		return Event{}, fmt.Errorf("block number: %w", err)
	}

	return Event{
		Price:       decimal.NewFromBigInt(price, -weiDecimals),
		Fee:         decimal.NewFromBigInt(fee, -weiDecimals),
		Buyer:       topicAddress(lg.Topics[1]),
		Seller:      topicAddress(lg.Topics[2]),
		BlockNumber: block,
		Timestamp:   time.Unix(ts.Int64(), 0).UTC(),
	}, nil
}

// topicAddress extracts the 20-byte address from a 32-byte indexed topic.
func topicAddress(topic string) ledger.Address {
	t := strings.TrimPrefix(strings.ToLower(topic), "0x")
	if len(t) < 40 {
		return ""
	}
	return ledger.Address("0x" + t[len(t)-40:])
}

func parseHexBig(s string) (*big.Int, error) {
	t := strings.TrimPrefix(s, "0x")
	if t == "" {
		return nil, fmt.Errorf("empty quantity")
	}
	n, ok := new(big.Int).SetString(t, 16)
	if !ok {
		return nil, fmt.Errorf("not hex: %q", s)
	}
	return n, nil
}

func parseHexUint(s string) (uint64, error) {
	n, err := parseHexBig(s)
	if err != nil {
		return 0, err
	}
	if !n.IsUint64() {
		return 0, fmt.Errorf("out of uint64 range: %q", s)
	}
	return n.Uint64(), nil
}

func hexUint(n uint64) string {
	return fmt.Sprintf("0x%x", n)
}
