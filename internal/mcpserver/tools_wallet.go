package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/b0ase/path402/apps/zanomcp/internal/amount"
	"github.com/b0ase/path402/apps/zanomcp/internal/format"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const (
	// DefaultFee is the network fee in atomic units (0.01 ZANO).
	DefaultFee = "10000000000"
	// DefaultMixin is the ring size used for normal wallets.
	DefaultMixin = 15
)

// --- Input types ---

type transferInput struct {
	Address   string `json:"address" jsonschema:"recipient Zano address or integrated address"`
	Amount    string `json:"amount" jsonschema:"amount in human units, e.g. \"1.5\""`
	AssetID   string `json:"asset_id,omitempty" jsonschema:"asset to send (defaults to ZANO)"`
	PaymentID string `json:"payment_id,omitempty" jsonschema:"optional payment id"`
	Comment   string `json:"comment,omitempty" jsonschema:"optional comment stored with the transaction"`
	Fee       string `json:"fee,omitempty" jsonschema:"fee in human ZANO (default 0.01)"`
	Mixin     *int   `json:"mixin,omitempty" jsonschema:"mixin count (default 15 normal, 0 auditable)"`
}

type recentTxsInput struct {
	Offset int `json:"offset,omitempty" jsonschema:"offset (default 0)"`
	Count  int `json:"count,omitempty" jsonschema:"number of transactions, 1-100 (default 20)"`
}

type searchTxsInput struct {
	TxID           string `json:"tx_id,omitempty" jsonschema:"transaction id to search for"`
	In             *bool  `json:"in,omitempty" jsonschema:"include incoming transactions"`
	Out            *bool  `json:"out,omitempty" jsonschema:"include outgoing transactions"`
	Pool           *bool  `json:"pool,omitempty" jsonschema:"include pool transactions"`
	FilterByHeight *bool  `json:"filter_by_height,omitempty" jsonschema:"restrict to min_height..max_height"`
	MinHeight      *int64 `json:"min_height,omitempty" jsonschema:"lowest block height"`
	MaxHeight      *int64 `json:"max_height,omitempty" jsonschema:"highest block height"`
}

type signMessageInput struct {
	Message string `json:"message" jsonschema:"plain-text message to sign"`
}

type integratedAddressInput struct {
	PaymentID string `json:"payment_id,omitempty" jsonschema:"payment id (random when omitted)"`
}

type splitAddressInput struct {
	IntegratedAddress string `json:"integrated_address" jsonschema:"integrated address to split"`
}

type miningHistoryInput struct {
	V int `json:"v,omitempty" jsonschema:"version (0)"`
}

type sweepBelowInput struct {
	Address string `json:"address" jsonschema:"destination address for the swept outputs"`
	Amount  string `json:"amount" jsonschema:"sweep outputs below this human ZANO amount"`
	Mixin   *int   `json:"mixin,omitempty" jsonschema:"mixin count (default 15)"`
	Fee     string `json:"fee,omitempty" jsonschema:"fee in human ZANO (default 0.01)"`
}

func (s *MCPServer) registerWalletTools() {
	addTool(s, "get_balance", "Wallet balance for ZANO and every held asset", s.handleBalance)
	addTool(s, "get_address", "The wallet's public address", s.handleAddress)
	addTool(s, "get_wallet_status", "Wallet sync height, watch-only and audit status", s.handleWalletStatus)
	addTool(s, "get_recent_transactions", "Recent incoming and outgoing wallet transactions", s.handleRecentTransactions)
	addTool(s, "search_transactions", "Search wallet transactions by id or height range", s.handleSearchTransactions)
	addTool(s, "sign_message", "Sign a message with the wallet's spend key", s.handleSignMessage)
	addTool(s, "save_wallet", "Persist the wallet state to disk", s.handleSaveWallet)
	addTool(s, "make_integrated_address", "Create an integrated address embedding a payment id", s.handleMakeIntegratedAddress)
	addTool(s, "split_integrated_address", "Split an integrated address into address and payment id", s.handleSplitIntegratedAddress)
	addTool(s, "get_mining_history", "Staking (PoS mining) rewards history", s.handleMiningHistory)

	if s.opts.EnableWrite {
		addTool(s, "transfer", "Send ZANO or an asset to an address. Moves funds.", s.handleTransfer)
		addTool(s, "sweep_below", "Consolidate outputs below an amount into one transfer. Moves funds.", s.handleSweepBelow)
	}
}

// --- Read handlers ---

func (s *MCPServer) handleBalance(ctx context.Context, _ *mcp.CallToolRequest, _ emptyInput) (*mcp.CallToolResult, any, error) {
	raw, err := s.wallet.Call(ctx, "getbalance", nil)
	if err != nil {
		return s.fail("get_balance", err), nil, nil
	}
	res := gjson.ParseBytes(raw)

	var b strings.Builder
	b.WriteString("# Wallet Balance\n\n")
	b.WriteString(balanceLine(amount.NativeTicker, res.Get("balance"), res.Get("unlocked_balance"), amount.NativeDecimals))

	for _, bal := range res.Get("balances").Array() {
		id := bal.Get("asset_id").String()
		if id == amount.NativeAssetID {
			continue
		}
		info := bal.Get("asset_info")
		ticker := str(info.Get("ticker"), format.Prefix(id, 8))
		decimals := amount.NativeDecimals
		if d := info.Get("decimal_point"); d.Exists() && d.Type != gjson.Null {
			decimals = int(d.Int())
		}
		s.observeAsset(id, ticker, decimals)
		b.WriteString(balanceLine(ticker, bal.Get("balance"), bal.Get("unlocked"), decimals))
	}
	return textResult(strings.TrimRight(b.String(), "\n")), nil, nil
}

// balanceLine renders the unlocked amount plus whatever is still locked.
func balanceLine(ticker string, total, unlocked gjson.Result, decimals int) string {
	t := atomicOrZero(total)
	u := atomicOrZero(unlocked)
	locked := new(big.Int).Sub(t, u)
	if locked.Sign() < 0 {
		locked.SetInt64(0)
	}
	return fmt.Sprintf("- **%s:** %s (locked: %s)\n",
		ticker, amount.AtomicToHuman(u, decimals), amount.AtomicToHuman(locked, decimals))
}

func atomicOrZero(v gjson.Result) *big.Int {
	// Raw keeps full precision for numbers beyond float64.
	s := v.Raw
	if v.Type == gjson.String {
		s = v.Str
	}
	n, err := amount.ParseAtomic(s)
	if err != nil {
		return new(big.Int)
	}
	return n
}

func (s *MCPServer) handleAddress(ctx context.Context, _ *mcp.CallToolRequest, _ emptyInput) (*mcp.CallToolResult, any, error) {
	raw, err := s.wallet.Call(ctx, "getaddress", nil)
	if err != nil {
		return s.fail("get_address", err), nil, nil
	}
	return textResult("Wallet address: " + gjson.GetBytes(raw, "address").String()), nil, nil
}

func (s *MCPServer) handleWalletStatus(ctx context.Context, _ *mcp.CallToolRequest, _ emptyInput) (*mcp.CallToolResult, any, error) {
	raw, err := s.wallet.Call(ctx, "get_wallet_info", nil)
	if err != nil {
		return s.fail("get_wallet_status", err), nil, nil
	}
	res := gjson.ParseBytes(raw)

	var b strings.Builder
	b.WriteString("# Wallet Status\n\n")
	fmt.Fprintf(&b, "- **Address:** %s\n", str(res.Get("address"), "N/A"))
	fmt.Fprintf(&b, "- **Current height:** %s\n", str(res.Get("current_height"), "N/A"))
	fmt.Fprintf(&b, "- **Daemon height:** %s\n", str(res.Get("current_daemon_height"), "N/A"))
	// The wallet spells the watch-only flag "whatch".
	fmt.Fprintf(&b, "- **Watch only:** %s\n", format.YesNo(res.Get("is_whatch_only").Bool()))
	fmt.Fprintf(&b, "- **Auditable:** %s\n", format.YesNo(res.Get("is_auditable").Bool()))
	fmt.Fprintf(&b, "- **Min confirmations:** %s\n", val(res.Get("mincounted_transfer_count"), "N/A"))
	fmt.Fprintf(&b, "- **Transfer count:** %s", val(res.Get("transfer_entries_count"), "N/A"))
	return textResult(b.String()), nil, nil
}

func (s *MCPServer) handleRecentTransactions(ctx context.Context, _ *mcp.CallToolRequest, input recentTxsInput) (*mcp.CallToolResult, any, error) {
	count := input.Count
	if count <= 0 {
		count = 20
	}
	count = min(count, 100)

	raw, err := s.wallet.Call(ctx, "get_recent_txs_and_info", map[string]any{
		"offset":                max(input.Offset, 0),
		"count":                 count,
		"update_provision_info": true,
	})
	if err != nil {
		return s.fail("get_recent_transactions", err), nil, nil
	}
	transfers := gjson.GetBytes(raw, "transfers").Array()
	if len(transfers) == 0 {
		return textResult("No recent transactions found."), nil, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Recent Transactions (%d)\n\n", len(transfers))
	for _, tx := range transfers {
		dir := "OUT"
		if tx.Get("is_income").Bool() {
			dir = "IN"
		}
		line := fmt.Sprintf("- [%s] %s | %s | `%s...`", dir,
			feeOr(tx.Get("amount"), "N/A"),
			format.Timestamp(tx.Get("timestamp").Int()),
			format.Prefix(tx.Get("tx_hash").String(), 16))
		if c := tx.Get("comment").String(); c != "" {
			line += fmt.Sprintf(" %q", c)
		}
		b.WriteString(line + "\n")
	}
	return textResult(strings.TrimRight(b.String(), "\n")), nil, nil
}

func (s *MCPServer) handleSearchTransactions(ctx context.Context, _ *mcp.CallToolRequest, input searchTxsInput) (*mcp.CallToolResult, any, error) {
	params := map[string]any{}
	if input.TxID != "" {
		params["tx_id"] = input.TxID
	}
	setIf(params, "in", input.In)
	setIf(params, "out", input.Out)
	setIf(params, "pool", input.Pool)
	setIf(params, "filter_by_height", input.FilterByHeight)
	setIf(params, "min_height", input.MinHeight)
	setIf(params, "max_height", input.MaxHeight)

	raw, err := s.wallet.Call(ctx, "search_for_transactions", params)
	if err != nil {
		return s.fail("search_transactions", err), nil, nil
	}
	return textResult(prettyJSON(raw)), nil, nil
}

func setIf[T any](params map[string]any, key string, v *T) {
	if v != nil {
		params[key] = *v
	}
}

func (s *MCPServer) handleSignMessage(ctx context.Context, _ *mcp.CallToolRequest, input signMessageInput) (*mcp.CallToolResult, any, error) {
	raw, err := s.wallet.Call(ctx, "sign_message", map[string]any{
		"buff": base64.StdEncoding.EncodeToString([]byte(input.Message)),
	})
	if err != nil {
		return s.fail("sign_message", err), nil, nil
	}
	return textResult("Signature: " + gjson.GetBytes(raw, "sig").String()), nil, nil
}

func (s *MCPServer) handleSaveWallet(ctx context.Context, _ *mcp.CallToolRequest, _ emptyInput) (*mcp.CallToolResult, any, error) {
	if _, err := s.wallet.Call(ctx, "store", nil); err != nil {
		return s.fail("save_wallet", err), nil, nil
	}
	return textResult("Wallet state saved."), nil, nil
}

func (s *MCPServer) handleMakeIntegratedAddress(ctx context.Context, _ *mcp.CallToolRequest, input integratedAddressInput) (*mcp.CallToolResult, any, error) {
	params := map[string]any{}
	if input.PaymentID != "" {
		params["payment_id"] = input.PaymentID
	}
	raw, err := s.wallet.Call(ctx, "make_integrated_address", params)
	if err != nil {
		return s.fail("make_integrated_address", err), nil, nil
	}
	res := gjson.ParseBytes(raw)
	return textResult(fmt.Sprintf("Integrated address: %s\nPayment ID: %s",
		res.Get("integrated_address").String(), res.Get("payment_id").String())), nil, nil
}

func (s *MCPServer) handleSplitIntegratedAddress(ctx context.Context, _ *mcp.CallToolRequest, input splitAddressInput) (*mcp.CallToolResult, any, error) {
	if input.IntegratedAddress == "" {
		return errResult("integrated_address is required"), nil, nil
	}
	raw, err := s.wallet.Call(ctx, "split_integrated_address", map[string]any{
		"integrated_address": input.IntegratedAddress,
	})
	if err != nil {
		return s.fail("split_integrated_address", err), nil, nil
	}
	res := gjson.ParseBytes(raw)
	return textResult(fmt.Sprintf("Standard address: %s\nPayment ID: %s",
		res.Get("standard_address").String(), res.Get("payment_id").String())), nil, nil
}

func (s *MCPServer) handleMiningHistory(ctx context.Context, _ *mcp.CallToolRequest, input miningHistoryInput) (*mcp.CallToolResult, any, error) {
	raw, err := s.wallet.Call(ctx, "get_mining_history", map[string]any{"v": input.V})
	if err != nil {
		return s.fail("get_mining_history", err), nil, nil
	}
	entries := gjson.GetBytes(raw, "mined_entries").Array()
	if len(entries) == 0 {
		return textResult("No staking history found."), nil, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Staking History (%d entries)\n\n", len(entries))
	for _, e := range entries {
		fmt.Fprintf(&b, "- %s | %s | Block %s\n",
			format.Timestamp(e.Get("t").Int()), feeOr(e.Get("a"), "N/A"), str(e.Get("h"), "N/A"))
	}
	return textResult(strings.TrimRight(b.String(), "\n")), nil, nil
}

// --- Write handlers ---

func (s *MCPServer) handleTransfer(ctx context.Context, _ *mcp.CallToolRequest, input transferInput) (*mcp.CallToolResult, any, error) {
	if input.Address == "" {
		return errResult("address is required"), nil, nil
	}
	assetID := input.AssetID
	if assetID == "" {
		assetID = amount.NativeAssetID
	}
	decimals, err := s.resolveDecimals(ctx, assetID)
	if err != nil {
		return s.fail("transfer", err), nil, nil
	}
	atomic, err := amount.HumanToAtomic(input.Amount, decimals)
	if err != nil {
		return s.fail("transfer", err), nil, nil
	}
	fee, err := nativeFee(input.Fee)
	if err != nil {
		return s.fail("transfer", err), nil, nil
	}

	dest := map[string]any{"address": input.Address, "amount": atomic}
	if assetID != amount.NativeAssetID {
		dest["asset_id"] = assetID
	}
	params := map[string]any{
		"destinations": []map[string]any{dest},
		"fee":          fee,
		"mixin":        mixinOr(input.Mixin),
	}
	if input.PaymentID != "" {
		params["payment_id"] = input.PaymentID
	}
	if input.Comment != "" {
		params["comment"] = input.Comment
	}

	s.log.Info("sending transfer",
		zap.String("asset_id", assetID), zap.String("amount", atomic), zap.String("to", format.Prefix(input.Address, 12)))
	raw, err := s.wallet.Call(ctx, "transfer", params)
	if err != nil {
		return s.fail("transfer", err), nil, nil
	}
	res := gjson.ParseBytes(raw)

	ticker := amount.NativeTicker
	if a, ok := s.assets.Lookup(assetID); ok {
		ticker = a.Ticker
	}
	return textResult(fmt.Sprintf("Transfer sent: %s %s to %s\nTX hash: %s\nTX size: %s bytes",
		input.Amount, ticker, input.Address, res.Get("tx_hash").String(), str(res.Get("tx_size"), "N/A"))), nil, nil
}

func (s *MCPServer) handleSweepBelow(ctx context.Context, _ *mcp.CallToolRequest, input sweepBelowInput) (*mcp.CallToolResult, any, error) {
	if input.Address == "" {
		return errResult("address is required"), nil, nil
	}
	atomic, err := amount.HumanToAtomic(input.Amount, amount.NativeDecimals)
	if err != nil {
		return s.fail("sweep_below", err), nil, nil
	}
	fee, err := nativeFee(input.Fee)
	if err != nil {
		return s.fail("sweep_below", err), nil, nil
	}

	raw, err := s.wallet.Call(ctx, "sweep_below", map[string]any{
		"address": input.Address,
		"amount":  json.Number(atomic),
		"mixin":   mixinOr(input.Mixin),
		"fee":     fee,
	})
	if err != nil {
		return s.fail("sweep_below", err), nil, nil
	}
	res := gjson.ParseBytes(raw)
	return textResult(fmt.Sprintf("Sweep complete.\nTX hash: %s\nAmount swept: %s",
		res.Get("tx_hash").String(), feeOr(res.Get("amount"), "N/A"))), nil, nil
}

// nativeFee converts a human ZANO fee to an atomic JSON number, using the
// default fee when human is empty.
func nativeFee(human string) (json.Number, error) {
	if human == "" {
		return json.Number(DefaultFee), nil
	}
	atomic, err := amount.HumanToAtomic(human, amount.NativeDecimals)
	if err != nil {
		return "", fmt.Errorf("fee: %w", err)
	}
	return json.Number(atomic), nil
}

func mixinOr(m *int) int {
	if m == nil {
		return DefaultMixin
	}
	return *m
}
