package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/b0ase/path402/apps/zanomcp/internal/amount"
	"github.com/b0ase/path402/apps/zanomcp/internal/format"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/tidwall/gjson"
)

// defaultSwapMixins is the ring size used for ionic swap proposals.
const defaultSwapMixins = 10

type swapAsset struct {
	AssetID string `json:"asset_id" jsonschema:"asset id"`
	Amount  string `json:"amount" jsonschema:"amount in human units"`
}

type createSwapInput struct {
	ToFinalizer        []swapAsset `json:"to_finalizer" jsonschema:"assets you send to the finalizer"`
	ToInitiator        []swapAsset `json:"to_initiator" jsonschema:"assets you receive from the finalizer"`
	DestinationAddress string      `json:"destination_address" jsonschema:"finalizer's Zano address"`
	Mixins             *int        `json:"mixins,omitempty" jsonschema:"privacy parameter (default 10)"`
	Fee                string      `json:"fee,omitempty" jsonschema:"fee in human ZANO (default 0.01)"`
	ExpirationTime     int64       `json:"expiration_time,omitempty" jsonschema:"expiration unix timestamp, 0 for none"`
}

type proposalInput struct {
	HexRawProposal string `json:"hex_raw_proposal" jsonschema:"hex-encoded swap proposal"`
}

func (s *MCPServer) registerSwapTools() {
	addTool(s, "get_swap_info", "Decode an ionic swap proposal and show what each side sends", s.handleSwapInfo)

	if s.opts.EnableWrite {
		addTool(s, "create_swap_proposal", "Create an ionic swap proposal for atomic asset exchange", s.handleCreateSwap)
		addTool(s, "accept_swap", "Accept and execute an ionic swap proposal. Moves funds.", s.handleAcceptSwap)
	}
}

func (s *MCPServer) handleSwapInfo(ctx context.Context, _ *mcp.CallToolRequest, input proposalInput) (*mcp.CallToolResult, any, error) {
	if input.HexRawProposal == "" {
		return errResult("hex_raw_proposal is required"), nil, nil
	}
	raw, err := s.wallet.Call(ctx, "ionic_swap_get_proposal_info", map[string]any{
		"hex_raw_proposal": input.HexRawProposal,
	})
	if err != nil {
		return s.fail("get_swap_info", err), nil, nil
	}
	p := gjson.GetBytes(raw, "proposal")

	var b strings.Builder
	b.WriteString("# Swap Proposal Details\n\n")
	b.WriteString("Initiator sends (to finalizer):\n")
	for _, a := range p.Get("to_finalizer").Array() {
		fmt.Fprintf(&b, "- %s\n", s.assets.FormatAssetAmount(a.Get("amount").String(), a.Get("asset_id").String()))
	}
	b.WriteString("\nFinalizer sends (to initiator):\n")
	for _, a := range p.Get("to_initiator").Array() {
		fmt.Fprintf(&b, "- %s\n", s.assets.FormatAssetAmount(a.Get("amount").String(), a.Get("asset_id").String()))
	}

	expiration := "None"
	if exp := p.Get("expiration_time").Int(); exp != 0 {
		expiration = format.Timestamp(exp)
	}
	fmt.Fprintf(&b, "\n- **Fee:** %s\n", feeOr(p.Get("fee_paid_by_a"), "N/A"))
	fmt.Fprintf(&b, "- **Mixins:** %s\n", str(p.Get("mixins"), "N/A"))
	fmt.Fprintf(&b, "- **Expiration:** %s", expiration)
	return textResult(b.String()), nil, nil
}

func (s *MCPServer) handleCreateSwap(ctx context.Context, _ *mcp.CallToolRequest, input createSwapInput) (*mcp.CallToolResult, any, error) {
	if input.DestinationAddress == "" {
		return errResult("destination_address is required"), nil, nil
	}
	if len(input.ToFinalizer) == 0 && len(input.ToInitiator) == 0 {
		return errResult("to_finalizer or to_initiator must list at least one asset"), nil, nil
	}
	toFinalizer, err := s.atomicSwapAssets(ctx, input.ToFinalizer)
	if err != nil {
		return s.fail("create_swap_proposal", err), nil, nil
	}
	toInitiator, err := s.atomicSwapAssets(ctx, input.ToInitiator)
	if err != nil {
		return s.fail("create_swap_proposal", err), nil, nil
	}
	fee, err := nativeFee(input.Fee)
	if err != nil {
		return s.fail("create_swap_proposal", err), nil, nil
	}
	mixins := defaultSwapMixins
	if input.Mixins != nil {
		mixins = *input.Mixins
	}

	raw, err := s.wallet.Call(ctx, "ionic_swap_generate_proposal", map[string]any{
		"proposal": map[string]any{
			"to_finalizer":    toFinalizer,
			"to_initiator":    toInitiator,
			"mixins":          mixins,
			"fee_paid_by_a":   fee,
			"expiration_time": input.ExpirationTime,
		},
		"destination_address": input.DestinationAddress,
	})
	if err != nil {
		return s.fail("create_swap_proposal", err), nil, nil
	}
	hex := gjson.GetBytes(raw, "hex_raw_proposal").String()

	var b strings.Builder
	b.WriteString("# Swap Proposal Created\n\n")
	b.WriteString("You send (to finalizer):\n")
	for _, a := range input.ToFinalizer {
		fmt.Fprintf(&b, "- %s %s\n", a.Amount, s.tickerOf(a.AssetID))
	}
	b.WriteString("\nYou receive (from finalizer):\n")
	for _, a := range input.ToInitiator {
		fmt.Fprintf(&b, "- %s %s\n", a.Amount, s.tickerOf(a.AssetID))
	}
	fmt.Fprintf(&b, "\nHex proposal: %s...\n", format.Prefix(hex, 40))
	fmt.Fprintf(&b, "Full hex length: %d chars\n\n%s", len(hex), hex)
	return textResult(b.String()), nil, nil
}

func (s *MCPServer) handleAcceptSwap(ctx context.Context, _ *mcp.CallToolRequest, input proposalInput) (*mcp.CallToolResult, any, error) {
	if input.HexRawProposal == "" {
		return errResult("hex_raw_proposal is required"), nil, nil
	}
	raw, err := s.wallet.Call(ctx, "ionic_swap_accept_proposal", map[string]any{
		"hex_raw_proposal": input.HexRawProposal,
	})
	if err != nil {
		return s.fail("accept_swap", err), nil, nil
	}
	return textResult("Swap accepted and executed!\nTransaction ID: " + gjson.GetBytes(raw, "result_tx_id").String()), nil, nil
}

// atomicSwapAssets converts human swap amounts with each asset's decimals.
func (s *MCPServer) atomicSwapAssets(ctx context.Context, in []swapAsset) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(in))
	for _, a := range in {
		if a.AssetID == "" {
			return nil, fmt.Errorf("swap entry is missing asset_id")
		}
		decimals, err := s.resolveDecimals(ctx, a.AssetID)
		if err != nil {
			return nil, err
		}
		atomic, err := amount.HumanToAtomic(a.Amount, decimals)
		if err != nil {
			return nil, fmt.Errorf("asset %s: %w", format.Prefix(a.AssetID, 12), err)
		}
		out = append(out, map[string]any{"asset_id": a.AssetID, "amount": atomic})
	}
	return out, nil
}

func (s *MCPServer) tickerOf(id string) string {
	if a, ok := s.assets.Lookup(id); ok {
		return a.Ticker
	}
	return format.Prefix(id, 12)
}
