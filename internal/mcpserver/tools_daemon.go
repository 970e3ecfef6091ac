package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/b0ase/path402/apps/zanomcp/internal/amount"
	"github.com/b0ase/path402/apps/zanomcp/internal/format"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// --- Input types ---

type blockByHeightInput struct {
	Height uint64 `json:"height" jsonschema:"block height"`
}

type blockByHashInput struct {
	Hash string `json:"hash" jsonschema:"block hash"`
}

type blockDetailsInput struct {
	ID string `json:"id" jsonschema:"block hash"`
}

type txInput struct {
	TxHash string `json:"tx_hash" jsonschema:"transaction hash"`
}

type txsInput struct {
	TxHashes []string `json:"tx_hashes" jsonschema:"transaction hashes to look up"`
}

type assetIDInput struct {
	AssetID string `json:"asset_id" jsonschema:"asset id (64-char hex)"`
}

type assetsListInput struct {
	Offset int `json:"offset,omitempty" jsonschema:"pagination offset (default 0)"`
	Count  int `json:"count,omitempty" jsonschema:"number of assets to return, 1-100 (default 50)"`
}

type aliasInput struct {
	Alias string `json:"alias" jsonschema:"Zano alias without the leading @"`
}

type addressInput struct {
	Address string `json:"address" jsonschema:"Zano address"`
}

type searchInput struct {
	ID string `json:"id" jsonschema:"hash, alias or address to search for"`
}

type validateSignatureInput struct {
	Buff      string `json:"buff" jsonschema:"message that was signed"`
	Address   string `json:"address" jsonschema:"address of the signer"`
	Signature string `json:"signature" jsonschema:"signature to validate"`
}

func (s *MCPServer) registerDaemonTools() {
	addTool(s, "get_network_info", "Zano network status: height, difficulty, hashrate, connections, pool size", s.handleNetworkInfo)
	addTool(s, "get_height", "Current Zano blockchain height", s.handleHeight)
	addTool(s, "get_block_by_height", "Block header at a specific height", s.handleBlockByHeight)
	addTool(s, "get_block_by_hash", "Block header by its hash", s.handleBlockByHash)
	addTool(s, "get_last_block", "Header of the most recent block", s.handleLastBlock)
	addTool(s, "get_block_details", "Full block details including its transactions", s.handleBlockDetails)
	addTool(s, "get_transaction", "Transaction details by hash", s.handleTransaction)
	addTool(s, "get_transactions", "Batch lookup of multiple transactions by their hashes", s.handleTransactions)
	addTool(s, "get_pool_info", "Transaction pool (mempool) status and pending transactions", s.handlePoolInfo)
	addTool(s, "get_asset_info", "Metadata for a registered asset by its id", s.handleAssetInfo)
	addTool(s, "get_assets_list", "List registered assets on the Zano blockchain", s.handleAssetsList)
	addTool(s, "resolve_alias", "Resolve a Zano alias to its address", s.handleResolveAlias)
	addTool(s, "get_alias_by_address", "Look up the alias registered for a Zano address", s.handleAliasByAddress)
	addTool(s, "search_blockchain", "Search the blockchain by hash, alias or address", s.handleSearch)
	addTool(s, "validate_signature", "Verify a signed message against an address", s.handleValidateSignature)
}

// --- Handlers ---

func (s *MCPServer) handleNetworkInfo(ctx context.Context, _ *mcp.CallToolRequest, _ emptyInput) (*mcp.CallToolResult, any, error) {
	raw, err := s.daemon.Call(ctx, "getinfo", nil)
	if err != nil {
		return s.fail("get_network_info", err), nil, nil
	}
	info := gjson.ParseBytes(raw)

	hashrate := "N/A"
	if h := pick(info, "current_network_hashrate_350", "current_network_hashrate_50"); h.Type == gjson.Number {
		hashrate = format.Hashrate(h.Float())
	}
	network := "mainnet"
	if info.Get("testnet").Bool() {
		network = "testnet"
	}
	synced := info.Get("height").Uint() >= info.Get("max_net_seen_height").Uint()

	var b strings.Builder
	b.WriteString("# Zano Network Status\n\n")
	fmt.Fprintf(&b, "- **Height:** %s\n", info.Get("height").String())
	fmt.Fprintf(&b, "- **Network height:** %s\n", str(info.Get("max_net_seen_height"), "N/A"))
	fmt.Fprintf(&b, "- **Difficulty:** %s\n", info.Get("difficulty").String())
	fmt.Fprintf(&b, "- **PoS difficulty:** %s\n", info.Get("pos_difficulty").String())
	fmt.Fprintf(&b, "- **Hashrate:** %s\n", hashrate)
	fmt.Fprintf(&b, "- **Connections:** %d out / %d in\n",
		info.Get("outgoing_connections_count").Int(), info.Get("incoming_connections_count").Int())
	fmt.Fprintf(&b, "- **TX pool:** %d transactions\n", info.Get("tx_pool_size").Int())
	fmt.Fprintf(&b, "- **Alt blocks:** %d\n", info.Get("alt_blocks_count").Int())
	fmt.Fprintf(&b, "- **Block reward:** %s\n", amount.FormatNative(val(info.Get("block_reward"), "0")))
	fmt.Fprintf(&b, "- **Peerlist:** %d white / %d grey\n",
		info.Get("white_peerlist_size").Int(), info.Get("grey_peerlist_size").Int())
	fmt.Fprintf(&b, "- **Alias count:** %d\n", info.Get("alias_count").Int())
	fmt.Fprintf(&b, "- **Daemon network:** %s\n", network)
	fmt.Fprintf(&b, "- **Synchronized:** %s", format.YesNo(synced))

	return textResult(b.String()), nil, nil
}

func (s *MCPServer) handleHeight(ctx context.Context, _ *mcp.CallToolRequest, _ emptyInput) (*mcp.CallToolResult, any, error) {
	raw, err := s.daemon.Call(ctx, "getheight", nil)
	if err != nil {
		return s.fail("get_height", err), nil, nil
	}
	return textResult(fmt.Sprintf("Current blockchain height: %s", gjson.GetBytes(raw, "height").String())), nil, nil
}

func (s *MCPServer) handleBlockByHeight(ctx context.Context, _ *mcp.CallToolRequest, input blockByHeightInput) (*mcp.CallToolResult, any, error) {
	raw, err := s.daemon.Call(ctx, "getblockheaderbyheight", map[string]any{"height": input.Height})
	if err != nil {
		return s.fail("get_block_by_height", err), nil, nil
	}
	return textResult(formatBlockHeader(gjson.GetBytes(raw, "block_header"))), nil, nil
}

func (s *MCPServer) handleBlockByHash(ctx context.Context, _ *mcp.CallToolRequest, input blockByHashInput) (*mcp.CallToolResult, any, error) {
	if input.Hash == "" {
		return errResult("hash is required"), nil, nil
	}
	raw, err := s.daemon.Call(ctx, "getblockheaderbyhash", map[string]any{"hash": input.Hash})
	if err != nil {
		return s.fail("get_block_by_hash", err), nil, nil
	}
	return textResult(formatBlockHeader(gjson.GetBytes(raw, "block_header"))), nil, nil
}

func (s *MCPServer) handleLastBlock(ctx context.Context, _ *mcp.CallToolRequest, _ emptyInput) (*mcp.CallToolResult, any, error) {
	raw, err := s.daemon.Call(ctx, "getlastblockheader", nil)
	if err != nil {
		return s.fail("get_last_block", err), nil, nil
	}
	return textResult(formatBlockHeader(gjson.GetBytes(raw, "block_header"))), nil, nil
}

func (s *MCPServer) handleBlockDetails(ctx context.Context, _ *mcp.CallToolRequest, input blockDetailsInput) (*mcp.CallToolResult, any, error) {
	if input.ID == "" {
		return errResult("id is required"), nil, nil
	}
	raw, err := s.daemon.Call(ctx, "get_main_block_details", map[string]any{"id": input.ID})
	if err != nil {
		return s.fail("get_block_details", err), nil, nil
	}
	block := firstOf(gjson.ParseBytes(raw), "block_details")
	txs := block.Get("transactions_details").Array()

	var b strings.Builder
	b.WriteString(formatBlockHeader(block))
	fmt.Fprintf(&b, "\n- **Miner info:** %s\n", str(block.Get("miner_text_info"), "N/A"))
	fmt.Fprintf(&b, "- **Transactions:** %d\n", len(txs))
	for _, tx := range txs {
		fmt.Fprintf(&b, "  - `%s` (fee: %s)\n", tx.Get("id").String(), feeOrCoinbase(tx.Get("fee")))
	}
	return textResult(strings.TrimRight(b.String(), "\n")), nil, nil
}

func (s *MCPServer) handleTransaction(ctx context.Context, _ *mcp.CallToolRequest, input txInput) (*mcp.CallToolResult, any, error) {
	if input.TxHash == "" {
		return errResult("tx_hash is required"), nil, nil
	}
	raw, err := s.daemon.Call(ctx, "get_tx_details", map[string]any{"tx_hash": input.TxHash})
	if err != nil {
		return s.fail("get_transaction", err), nil, nil
	}
	return textResult(formatTransaction(firstOf(gjson.ParseBytes(raw), "tx_info"))), nil, nil
}

func (s *MCPServer) handleTransactions(ctx context.Context, _ *mcp.CallToolRequest, input txsInput) (*mcp.CallToolResult, any, error) {
	if len(input.TxHashes) == 0 {
		return errResult("tx_hashes must not be empty"), nil, nil
	}
	raw, err := s.daemon.Call(ctx, "gettransactions", map[string]any{"txs_hashes": input.TxHashes})
	if err != nil {
		return s.fail("get_transactions", err), nil, nil
	}
	res := gjson.ParseBytes(raw)
	txs := res.Get("txs_as_json").Array()
	if len(txs) == 0 {
		txs = res.Get("txs").Array()
	}
	if len(txs) == 0 {
		return textResult("No transactions found for the provided hashes."), nil, nil
	}

	parts := make([]string, 0, len(txs))
	for i, tx := range txs {
		body := tx.String()
		if tx.IsObject() {
			body = prettyJSON([]byte(tx.Raw))
		}
		parts = append(parts, fmt.Sprintf("[%d] %s", i+1, body))
	}
	return textResult(strings.Join(parts, "\n\n")), nil, nil
}

func (s *MCPServer) handlePoolInfo(ctx context.Context, _ *mcp.CallToolRequest, _ emptyInput) (*mcp.CallToolResult, any, error) {
	raw, err := s.daemon.Call(ctx, "get_pool_info", nil)
	if err != nil {
		return s.fail("get_pool_info", err), nil, nil
	}
	res := gjson.ParseBytes(raw)
	txs := res.Get("transactions").Array()

	var b strings.Builder
	b.WriteString("# Transaction Pool\n\n")
	fmt.Fprintf(&b, "- **Pool size:** %s\n", val(res.Get("tx_count"), "N/A"))
	for _, tx := range txs {
		fmt.Fprintf(&b, "- `%s` (size: %d bytes, fee: %s)\n",
			tx.Get("id").String(), tx.Get("blob_size").Int(), feeOr(tx.Get("fee"), "N/A"))
	}
	if len(txs) == 0 && res.Get("tx_count").Int() == 0 {
		b.WriteString("\n(empty pool)\n")
	}
	return textResult(strings.TrimRight(b.String(), "\n")), nil, nil
}

func (s *MCPServer) handleAssetInfo(ctx context.Context, _ *mcp.CallToolRequest, input assetIDInput) (*mcp.CallToolResult, any, error) {
	if input.AssetID == "" {
		return errResult("asset_id is required"), nil, nil
	}
	raw, err := s.daemon.Call(ctx, "get_asset_info", map[string]any{"asset_id": input.AssetID})
	if err != nil {
		return s.fail("get_asset_info", err), nil, nil
	}
	desc := firstOf(gjson.ParseBytes(raw), "asset_descriptor")
	decimals := int(desc.Get("decimal_point").Int())
	if !desc.Get("decimal_point").Exists() {
		decimals = amount.NativeDecimals
	}
	s.observeAsset(input.AssetID, desc.Get("ticker").String(), decimals)

	supply := func(v gjson.Result) string {
		if !truthy(v) {
			return "N/A"
		}
		return amount.FormatAtomic(v.String(), decimals)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Asset: %s\n\n", str(desc.Get("full_name"), str(desc.Get("ticker"), "Unknown")))
	fmt.Fprintf(&b, "- **Ticker:** %s\n", str(desc.Get("ticker"), "N/A"))
	fmt.Fprintf(&b, "- **Asset ID:** `%s`\n", input.AssetID)
	fmt.Fprintf(&b, "- **Decimals:** %d\n", decimals)
	fmt.Fprintf(&b, "- **Max supply:** %s\n", supply(desc.Get("total_max_supply")))
	fmt.Fprintf(&b, "- **Current supply:** %s\n", supply(desc.Get("current_supply")))
	fmt.Fprintf(&b, "- **Owner:** %s\n", str(desc.Get("owner"), "N/A"))
	fmt.Fprintf(&b, "- **Meta info:** %s\n", str(desc.Get("meta_info"), "N/A"))
	fmt.Fprintf(&b, "- **Hidden supply:** %s", format.YesNo(desc.Get("hidden_supply").Bool()))
	return textResult(b.String()), nil, nil
}

func (s *MCPServer) handleAssetsList(ctx context.Context, _ *mcp.CallToolRequest, input assetsListInput) (*mcp.CallToolResult, any, error) {
	count := input.Count
	if count <= 0 {
		count = 50
	}
	if count > 100 {
		count = 100
	}
	offset := max(input.Offset, 0)

	raw, err := s.daemon.Call(ctx, "get_assets_list", map[string]any{"offset": offset, "count": count})
	if err != nil {
		return s.fail("get_assets_list", err), nil, nil
	}
	assets := gjson.GetBytes(raw, "assets").Array()
	if len(assets) == 0 {
		return textResult("No assets found."), nil, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Registered Assets (offset %d, %d shown)\n\n", offset, len(assets))
	b.WriteString("| Ticker | Name | Asset ID | Decimals |\n")
	b.WriteString("|--------|------|----------|----------|\n")
	for _, a := range assets {
		desc := firstOf(a, "asset_descriptor")
		id := a.Get("asset_id").String()
		decimals := amount.NativeDecimals
		if d := desc.Get("decimal_point"); d.Exists() {
			decimals = int(d.Int())
		}
		s.observeAsset(id, desc.Get("ticker").String(), decimals)
		fmt.Fprintf(&b, "| %s | %s | `%s` | %d |\n",
			str(desc.Get("ticker"), "?"), str(desc.Get("full_name"), "Unknown"), format.Prefix(id, 16), decimals)
	}
	return textResult(strings.TrimRight(b.String(), "\n")), nil, nil
}

func (s *MCPServer) handleResolveAlias(ctx context.Context, _ *mcp.CallToolRequest, input aliasInput) (*mcp.CallToolResult, any, error) {
	alias := strings.TrimPrefix(input.Alias, "@")
	if alias == "" {
		return errResult("alias is required"), nil, nil
	}
	raw, err := s.daemon.Call(ctx, "get_alias_details", map[string]any{"alias": alias})
	if err != nil {
		return s.fail("resolve_alias", err), nil, nil
	}
	d := firstOf(gjson.ParseBytes(raw), "alias_details")

	var b strings.Builder
	fmt.Fprintf(&b, "# Alias @%s\n\n", alias)
	fmt.Fprintf(&b, "- **Address:** `%s`\n", str(d.Get("address"), "N/A"))
	fmt.Fprintf(&b, "- **Comment:** %s\n", d.Get("comment").String())
	fmt.Fprintf(&b, "- **Tracking key:** %s", str(d.Get("tracking_key"), "N/A"))
	return textResult(b.String()), nil, nil
}

func (s *MCPServer) handleAliasByAddress(ctx context.Context, _ *mcp.CallToolRequest, input addressInput) (*mcp.CallToolResult, any, error) {
	if input.Address == "" {
		return errResult("address is required"), nil, nil
	}
	raw, err := s.daemon.Call(ctx, "get_alias_by_address", map[string]any{"address": input.Address})
	if err != nil {
		return s.fail("get_alias_by_address", err), nil, nil
	}
	list := gjson.GetBytes(raw, "alias_info_list").Array()
	if len(list) == 0 {
		return textResult(fmt.Sprintf("No alias found for address %s", input.Address)), nil, nil
	}
	a := list[0]
	return textResult(fmt.Sprintf("- **Address:** `%s`\n- **Alias:** @%s\n- **Comment:** %s",
		input.Address, a.Get("alias").String(), a.Get("comment").String())), nil, nil
}

func (s *MCPServer) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, input searchInput) (*mcp.CallToolResult, any, error) {
	if input.ID == "" {
		return errResult("id is required"), nil, nil
	}
	raw, err := s.daemon.Call(ctx, "search_by_id", map[string]any{"id": input.ID})
	if err != nil {
		return s.fail("search_blockchain", err), nil, nil
	}
	return textResult(fmt.Sprintf("Search results for %q:\n%s", input.ID, prettyJSON(raw))), nil, nil
}

func (s *MCPServer) handleValidateSignature(ctx context.Context, _ *mcp.CallToolRequest, input validateSignatureInput) (*mcp.CallToolResult, any, error) {
	raw, err := s.daemon.Call(ctx, "validate_signature", map[string]any{
		"buff":      input.Buff,
		"address":   input.Address,
		"signature": input.Signature,
	})
	if err != nil {
		return s.fail("validate_signature", err), nil, nil
	}
	status := "INVALID"
	if gjson.GetBytes(raw, "valid").Bool() {
		status = "VALID"
	}
	return textResult("Signature validation: " + status), nil, nil
}

// observeAsset records asset metadata seen in a backend reply.
func (s *MCPServer) observeAsset(id, ticker string, decimals int) {
	if id == "" || ticker == "" {
		return
	}
	if err := s.assets.Register(id, ticker, decimals); err != nil {
		s.log.Debug("asset not registered", zap.String("asset_id", id), zap.Error(err))
	}
}

func formatBlockHeader(h gjson.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Block %s\n\n", h.Get("height").String())
	fmt.Fprintf(&b, "- **Hash:** `%s`\n", str(pick(h, "hash", "id"), "N/A"))
	fmt.Fprintf(&b, "- **Previous hash:** `%s`\n", str(h.Get("prev_hash"), "N/A"))
	fmt.Fprintf(&b, "- **Timestamp:** %s\n", format.Timestamp(h.Get("timestamp").Int()))
	fmt.Fprintf(&b, "- **Difficulty:** %s\n", format.Difficulty(h.Get("difficulty").Float()))
	fmt.Fprintf(&b, "- **Reward:** %s\n", feeOr(h.Get("reward"), "N/A"))
	kind := "PoW"
	if h.Get("is_pos").Bool() {
		kind = "PoS"
	}
	fmt.Fprintf(&b, "- **Type:** %s\n", kind)
	fmt.Fprintf(&b, "- **Depth:** %s\n", val(h.Get("depth"), "N/A"))
	fmt.Fprintf(&b, "- **Orphan:** %s\n", format.YesNo(h.Get("orphan_status").Bool()))
	fmt.Fprintf(&b, "- **TX count:** %s", val(pick(h, "num_txes", "tx_count"), "N/A"))
	return b.String()
}

func formatTransaction(tx gjson.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Transaction `%s`\n\n", str(pick(tx, "id", "tx_hash"), "?"))
	fmt.Fprintf(&b, "- **Block:** %s\n", val(tx.Get("keeper_block"), "N/A"))
	fmt.Fprintf(&b, "- **Timestamp:** %s\n", format.Timestamp(tx.Get("timestamp").Int()))
	fmt.Fprintf(&b, "- **Fee:** %s\n", feeOrCoinbase(tx.Get("fee")))
	fmt.Fprintf(&b, "- **Size:** %s bytes\n", str(pick(tx, "blob_size", "size"), "N/A"))
	fmt.Fprintf(&b, "- **Inputs:** %s\n", countOf(tx, "ins_count", "ins"))
	fmt.Fprintf(&b, "- **Outputs:** %s\n", countOf(tx, "outs_count", "outs"))
	fmt.Fprintf(&b, "- **Amount:** %s\n", feeOr(tx.Get("amount"), "N/A"))
	fmt.Fprintf(&b, "- **Confirmations:** %s", val(tx.Get("confirmations"), "N/A"))
	for _, e := range tx.Get("extra").Array() {
		if e.Get("type").String() == "asset_descriptor_operation" {
			op := e.Get("asset_descriptor_operation")
			if !op.Exists() {
				op = e
			}
			fmt.Fprintf(&b, "\n- **Asset operation:** %s", op.Raw)
		}
	}
	return b.String()
}

// feeOr formats a native atomic amount, or fallback when zero or missing.
func feeOr(v gjson.Result, fallback string) string {
	if !truthy(v) {
		return fallback
	}
	return amount.FormatNative(v.String())
}

func feeOrCoinbase(v gjson.Result) string {
	return feeOr(v, "coinbase")
}

func countOf(r gjson.Result, countKey, listKey string) string {
	if v := r.Get(countKey); v.Exists() && v.Type != gjson.Null {
		return v.String()
	}
	if l := r.Get(listKey); l.IsArray() {
		return fmt.Sprint(len(l.Array()))
	}
	return "N/A"
}
