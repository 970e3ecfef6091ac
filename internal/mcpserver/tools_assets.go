package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/b0ase/path402/apps/zanomcp/internal/amount"
	"github.com/b0ase/path402/apps/zanomcp/internal/format"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

type deployAssetInput struct {
	Ticker         string `json:"ticker" jsonschema:"asset ticker symbol, e.g. MYTOKEN"`
	FullName       string `json:"full_name" jsonschema:"full asset name"`
	TotalMaxSupply string `json:"total_max_supply" jsonschema:"maximum supply in human units"`
	CurrentSupply  string `json:"current_supply" jsonschema:"initial supply to mint in human units"`
	DecimalPoint   *int   `json:"decimal_point,omitempty" jsonschema:"decimal places, 0-18 (default 12)"`
	MetaInfo       string `json:"meta_info,omitempty" jsonschema:"JSON metadata string"`
	HiddenSupply   bool   `json:"hidden_supply,omitempty" jsonschema:"hide supply information"`
}

type assetAmountInput struct {
	AssetID string `json:"asset_id" jsonschema:"asset id"`
	Amount  string `json:"amount" jsonschema:"amount in human units"`
}

type updateAssetInput struct {
	AssetID  string `json:"asset_id" jsonschema:"asset id to update"`
	Ticker   string `json:"ticker,omitempty" jsonschema:"new ticker"`
	FullName string `json:"full_name,omitempty" jsonschema:"new full name"`
	MetaInfo string `json:"meta_info,omitempty" jsonschema:"new metadata"`
}

type ownershipInput struct {
	AssetID  string `json:"asset_id" jsonschema:"asset id"`
	NewOwner string `json:"new_owner" jsonschema:"public key of the new owner"`
}

func (s *MCPServer) registerAssetTools() {
	addTool(s, "whitelist_asset", "Add an asset to the wallet's whitelist so its balance is shown", s.handleWhitelistAsset)
	addTool(s, "remove_asset_from_whitelist", "Remove an asset from the wallet's whitelist", s.handleRemoveWhitelistAsset)

	if s.opts.EnableWrite {
		addTool(s, "deploy_asset", "Deploy a new confidential asset. Spends fees.", s.handleDeployAsset)
		addTool(s, "emit_asset", "Mint additional supply of an owned asset", s.handleEmitAsset)
		addTool(s, "burn_asset", "Burn part of an owned asset's supply", s.handleBurnAsset)
		addTool(s, "update_asset", "Update ticker, name or metadata of an owned asset", s.handleUpdateAsset)
		addTool(s, "transfer_asset_ownership", "Hand ownership of an asset to another public key", s.handleTransferOwnership)
	}
}

func (s *MCPServer) handleWhitelistAsset(ctx context.Context, _ *mcp.CallToolRequest, input assetIDInput) (*mcp.CallToolResult, any, error) {
	if input.AssetID == "" {
		return errResult("asset_id is required"), nil, nil
	}
	raw, err := s.wallet.Call(ctx, "assets_whitelist_add", map[string]any{"asset_id": input.AssetID})
	if err != nil {
		return s.fail("whitelist_asset", err), nil, nil
	}
	desc := gjson.GetBytes(raw, "asset_descriptor")
	if d := desc.Get("decimal_point"); d.Exists() {
		s.observeAsset(input.AssetID, desc.Get("ticker").String(), int(d.Int()))
	}
	return textResult(fmt.Sprintf("Asset %s... added to whitelist.", format.Prefix(input.AssetID, 16))), nil, nil
}

func (s *MCPServer) handleRemoveWhitelistAsset(ctx context.Context, _ *mcp.CallToolRequest, input assetIDInput) (*mcp.CallToolResult, any, error) {
	if input.AssetID == "" {
		return errResult("asset_id is required"), nil, nil
	}
	if _, err := s.wallet.Call(ctx, "assets_whitelist_remove", map[string]any{"asset_id": input.AssetID}); err != nil {
		return s.fail("remove_asset_from_whitelist", err), nil, nil
	}
	return textResult(fmt.Sprintf("Asset %s... removed from whitelist.", format.Prefix(input.AssetID, 16))), nil, nil
}

func (s *MCPServer) handleDeployAsset(ctx context.Context, _ *mcp.CallToolRequest, input deployAssetInput) (*mcp.CallToolResult, any, error) {
	if input.Ticker == "" || input.FullName == "" {
		return errResult("ticker and full_name are required"), nil, nil
	}
	decimals := amount.NativeDecimals
	if input.DecimalPoint != nil {
		decimals = *input.DecimalPoint
	}
	maxSupply, err := amount.HumanToAtomic(input.TotalMaxSupply, decimals)
	if err != nil {
		return s.fail("deploy_asset", fmt.Errorf("total_max_supply: %w", err)), nil, nil
	}
	current, err := amount.HumanToAtomic(input.CurrentSupply, decimals)
	if err != nil {
		return s.fail("deploy_asset", fmt.Errorf("current_supply: %w", err)), nil, nil
	}

	raw, err := s.wallet.Call(ctx, "deploy_asset", map[string]any{
		"asset_descriptor": map[string]any{
			"ticker":           input.Ticker,
			"full_name":        input.FullName,
			"total_max_supply": json.Number(maxSupply),
			"current_supply":   json.Number(current),
			"decimal_point":    decimals,
			"meta_info":        input.MetaInfo,
			"hidden_supply":    input.HiddenSupply,
		},
	})
	if err != nil {
		return s.fail("deploy_asset", err), nil, nil
	}
	res := gjson.ParseBytes(raw)
	id := pick(res, "new_asset_id", "asset_id").String()
	s.observeAsset(id, input.Ticker, decimals)
	s.log.Info("asset deployed", zap.String("asset_id", id), zap.String("ticker", input.Ticker))

	return textResult(fmt.Sprintf("Asset deployed!\nAsset ID: %s\nTX hash: %s",
		id, str(res.Get("tx_hash"), "N/A"))), nil, nil
}

func (s *MCPServer) handleEmitAsset(ctx context.Context, _ *mcp.CallToolRequest, input assetAmountInput) (*mcp.CallToolResult, any, error) {
	return s.changeSupply(ctx, "emit_asset", "emitted", input)
}

func (s *MCPServer) handleBurnAsset(ctx context.Context, _ *mcp.CallToolRequest, input assetAmountInput) (*mcp.CallToolResult, any, error) {
	return s.changeSupply(ctx, "burn_asset", "burned", input)
}

// changeSupply backs emit_asset and burn_asset, which share their params.
func (s *MCPServer) changeSupply(ctx context.Context, method, verb string, input assetAmountInput) (*mcp.CallToolResult, any, error) {
	if input.AssetID == "" {
		return errResult("asset_id is required"), nil, nil
	}
	decimals, err := s.resolveDecimals(ctx, input.AssetID)
	if err != nil {
		return s.fail(method, err), nil, nil
	}
	atomic, err := amount.HumanToAtomic(input.Amount, decimals)
	if err != nil {
		return s.fail(method, err), nil, nil
	}
	raw, err := s.wallet.Call(ctx, method, map[string]any{
		"asset_id": input.AssetID,
		"amount":   json.Number(atomic),
	})
	if err != nil {
		return s.fail(method, err), nil, nil
	}
	return textResult(fmt.Sprintf("Asset %s: %s of %s...\nTX hash: %s",
		verb, input.Amount, format.Prefix(input.AssetID, 16), str(gjson.GetBytes(raw, "tx_hash"), "N/A"))), nil, nil
}

func (s *MCPServer) handleUpdateAsset(ctx context.Context, _ *mcp.CallToolRequest, input updateAssetInput) (*mcp.CallToolResult, any, error) {
	if input.AssetID == "" {
		return errResult("asset_id is required"), nil, nil
	}
	desc := map[string]any{}
	if input.Ticker != "" {
		desc["ticker"] = input.Ticker
	}
	if input.FullName != "" {
		desc["full_name"] = input.FullName
	}
	if input.MetaInfo != "" {
		desc["meta_info"] = input.MetaInfo
	}
	raw, err := s.wallet.Call(ctx, "update_asset", map[string]any{
		"asset_id":         input.AssetID,
		"asset_descriptor": desc,
	})
	if err != nil {
		return s.fail("update_asset", err), nil, nil
	}
	if a, ok := s.assets.Lookup(input.AssetID); ok && input.Ticker != "" {
		s.observeAsset(a.ID, input.Ticker, a.Decimals)
	}
	return textResult(fmt.Sprintf("Asset updated: %s...\nTX hash: %s",
		format.Prefix(input.AssetID, 16), str(gjson.GetBytes(raw, "tx_hash"), "N/A"))), nil, nil
}

func (s *MCPServer) handleTransferOwnership(ctx context.Context, _ *mcp.CallToolRequest, input ownershipInput) (*mcp.CallToolResult, any, error) {
	if input.AssetID == "" || input.NewOwner == "" {
		return errResult("asset_id and new_owner are required"), nil, nil
	}
	raw, err := s.wallet.Call(ctx, "transfer_asset_ownership", map[string]any{
		"asset_id":  input.AssetID,
		"new_owner": input.NewOwner,
	})
	if err != nil {
		return s.fail("transfer_asset_ownership", err), nil, nil
	}
	return textResult(fmt.Sprintf("Ownership transferred for %s...\nNew owner: %s\nTX hash: %s",
		format.Prefix(input.AssetID, 16), input.NewOwner, str(gjson.GetBytes(raw, "tx_hash"), "N/A"))), nil, nil
}

// resolveDecimals returns the decimal point of id, asking the daemon for
// assets the registry has not seen yet.
func (s *MCPServer) resolveDecimals(ctx context.Context, id string) (int, error) {
	if a, ok := s.assets.Lookup(id); ok {
		return a.Decimals, nil
	}
	raw, err := s.daemon.Call(ctx, "get_asset_info", map[string]any{"asset_id": id})
	if err != nil {
		return 0, fmt.Errorf("looking up asset %s: %w", format.Prefix(id, 16), err)
	}
	desc := firstOf(gjson.ParseBytes(raw), "asset_descriptor")
	d := desc.Get("decimal_point")
	if !d.Exists() {
		return 0, fmt.Errorf("asset %s has no decimal point", format.Prefix(id, 16))
	}
	s.observeAsset(id, desc.Get("ticker").String(), int(d.Int()))
	return int(d.Int()), nil
}
