package mcpserver

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

type pairIDInput struct {
	ID int64 `json:"id" jsonschema:"trading pair id"`
}

type pairInput struct {
	PairID int64 `json:"pairId" jsonschema:"trading pair id"`
}

type dexAuthInput struct {
	Address   string `json:"address" jsonschema:"Zano wallet address"`
	Alias     string `json:"alias,omitempty" jsonschema:"Zano alias"`
	Message   string `json:"message" jsonschema:"message that was signed"`
	Signature string `json:"signature" jsonschema:"signature from sign_message"`
}

type createOrderInput struct {
	Type   string `json:"type" jsonschema:"order type: buy or sell"`
	Price  string `json:"price" jsonschema:"price per unit"`
	Amount string `json:"amount" jsonschema:"amount of the asset"`
	PairID int64  `json:"pairId" jsonschema:"trading pair id"`
}

type orderIDInput struct {
	OrderID int64 `json:"orderId" jsonschema:"order id to cancel"`
}

type applyOrderInput struct {
	ID               string `json:"id" jsonschema:"tip id from applyTips"`
	ConnectedOrderID string `json:"connected_order_id" jsonschema:"your order id the tip matches"`
	HexRawProposal   string `json:"hex_raw_proposal" jsonschema:"encrypted ionic swap proposal hex"`
}

type confirmTradeInput struct {
	TransactionID int64 `json:"transactionId" jsonschema:"transaction id to confirm"`
}

type activeTradeInput struct {
	FirstOrderID  int64 `json:"firstOrderId" jsonschema:"first order id"`
	SecondOrderID int64 `json:"secondOrderId" jsonschema:"second order id"`
}

func (s *MCPServer) registerTradeTools() {
	addTool(s, "get_trading_pair", "Trading pair details from the Zano DEX: rate, 24h range, volume", s.handleTradingPair)
	addTool(s, "get_order_book", "Open orders of a trading pair with spread and best bid/ask", s.handleOrderBook)

	if s.trade.HasToken() || s.opts.EnableWrite {
		addTool(s, "get_my_orders", "Your open DEX orders and pending apply tips (authenticated)", s.handleMyOrders)
		addTool(s, "get_active_trade", "Active trade between two matched orders (authenticated)", s.handleActiveTrade)
	}

	if s.opts.EnableWrite {
		addTool(s, "dex_authenticate", "Open a DEX session with a signed message; stores the session token", s.handleDexAuthenticate)
		addTool(s, "create_order", "Place a limit order on the DEX", s.handleCreateOrder)
		addTool(s, "cancel_order", "Cancel one of your DEX orders", s.handleCancelOrder)
		addTool(s, "apply_order", "Respond to an apply tip with a swap proposal", s.handleApplyOrder)
		addTool(s, "confirm_trade", "Confirm a DEX trade transaction", s.handleConfirmTrade)
	}
}

func (s *MCPServer) handleTradingPair(ctx context.Context, _ *mcp.CallToolRequest, input pairIDInput) (*mcp.CallToolResult, any, error) {
	raw, err := s.trade.Post(ctx, "/api/dex/get-pair", map[string]any{"id": input.ID}, false)
	if err != nil {
		return s.fail("get_trading_pair", err), nil, nil
	}
	p := gjson.ParseBytes(raw)
	first := p.Get("first_currency")
	second := p.Get("second_currency")

	var b strings.Builder
	fmt.Fprintf(&b, "# Trading Pair #%s\n\n", val(p.Get("id"), fmt.Sprint(input.ID)))
	fmt.Fprintf(&b, "- **Pair:** %s / %s\n",
		str(pick(first, "code", "name"), "?"), str(pick(second, "code", "name"), "?"))
	fmt.Fprintf(&b, "- **Rate:** %s\n", val(p.Get("rate"), "N/A"))
	fmt.Fprintf(&b, "- **24h high:** %s\n", val(p.Get("high"), "N/A"))
	fmt.Fprintf(&b, "- **24h low:** %s\n", val(p.Get("low"), "N/A"))
	fmt.Fprintf(&b, "- **Volume:** %s", val(p.Get("volume"), "N/A"))
	return textResult(b.String()), nil, nil
}

type bookEntry struct {
	price decimal.Decimal
	order gjson.Result
}

func (s *MCPServer) handleOrderBook(ctx context.Context, _ *mcp.CallToolRequest, input pairInput) (*mcp.CallToolResult, any, error) {
	raw, err := s.trade.Post(ctx, "/api/orders/get-page", map[string]any{"pairId": input.PairID}, false)
	if err != nil {
		return s.fail("get_order_book", err), nil, nil
	}
	orders := gjson.ParseBytes(raw).Array()
	if len(orders) == 0 {
		return textResult(fmt.Sprintf("No orders found for pair %d.", input.PairID)), nil, nil
	}

	var bids, asks []bookEntry
	for _, o := range orders {
		price, err := decimal.NewFromString(o.Get("price").String())
		if err != nil {
			continue
		}
		switch o.Get("type").String() {
		case "buy":
			bids = append(bids, bookEntry{price, o})
		case "sell":
			asks = append(asks, bookEntry{price, o})
		}
	}
	sort.SliceStable(asks, func(i, j int) bool { return asks[i].price.LessThan(asks[j].price) })
	sort.SliceStable(bids, func(i, j int) bool { return bids[i].price.GreaterThan(bids[j].price) })

	var b strings.Builder
	fmt.Fprintf(&b, "# Order Book for Pair %d (%d orders)\n", input.PairID, len(orders))
	if len(asks) > 0 {
		b.WriteString("\n## Sells (asks)\n\n")
		for _, e := range asks {
			b.WriteString(bookLine(e.order))
		}
	}
	if len(bids) > 0 {
		b.WriteString("\n## Buys (bids)\n\n")
		for _, e := range bids {
			b.WriteString(bookLine(e.order))
		}
	}
	if len(bids) > 0 && len(asks) > 0 {
		bestBid, bestAsk := bids[0].price, asks[0].price
		spread := bestAsk.Sub(bestBid)
		pct := decimal.Zero
		if !bestAsk.IsZero() {
			pct = spread.Div(bestAsk).Mul(decimal.NewFromInt(100))
		}
		fmt.Fprintf(&b, "\n- **Spread:** %s (%s%%)\n", spread.StringFixed(8), pct.StringFixed(2))
		fmt.Fprintf(&b, "- **Best bid:** %s | **Best ask:** %s\n", bestBid.String(), bestAsk.String())
	}
	return textResult(strings.TrimRight(b.String(), "\n")), nil, nil
}

func bookLine(o gjson.Result) string {
	instant := ""
	if o.Get("isInstant").Bool() {
		instant = " [INSTANT]"
	}
	return fmt.Sprintf("- %s | %s remaining (of %s) | %s%s\n",
		o.Get("price").String(), o.Get("left").String(), o.Get("amount").String(),
		str(o.Get("user.alias"), "anon"), instant)
}

func (s *MCPServer) handleMyOrders(ctx context.Context, _ *mcp.CallToolRequest, input pairInput) (*mcp.CallToolResult, any, error) {
	raw, err := s.trade.Post(ctx, "/api/orders/get-user-page", map[string]any{"pairId": input.PairID}, true)
	if err != nil {
		return s.fail("get_my_orders", err), nil, nil
	}
	res := gjson.ParseBytes(raw)
	orders := res.Get("orders").Array()
	tips := res.Get("applyTips").Array()

	var b strings.Builder
	fmt.Fprintf(&b, "# Your Orders for Pair %d\n\n", input.PairID)
	if len(orders) == 0 {
		b.WriteString("No active orders.\n")
	}
	for _, o := range orders {
		instant := ""
		if o.Get("isInstant").Bool() {
			instant = " [INSTANT]"
		}
		fmt.Fprintf(&b, "- #%s %s %s/%s @ %s%s\n",
			o.Get("id").String(), o.Get("type").String(), o.Get("left").String(),
			o.Get("amount").String(), o.Get("price").String(), instant)
	}
	if len(tips) > 0 {
		fmt.Fprintf(&b, "\n## Pending Tips (%d)\n\n", len(tips))
		for _, t := range tips {
			hasTx := ""
			if truthy(t.Get("transaction")) {
				hasTx = " [HAS TX]"
			}
			fmt.Fprintf(&b, "- Tip #%s for order #%s | %s @ %s | %s%s\n",
				t.Get("id").String(), t.Get("connected_order_id").String(), t.Get("left").String(),
				t.Get("price").String(), str(t.Get("user.alias"), "anon"), hasTx)
		}
	}
	return textResult(strings.TrimRight(b.String(), "\n")), nil, nil
}

func (s *MCPServer) handleActiveTrade(ctx context.Context, _ *mcp.CallToolRequest, input activeTradeInput) (*mcp.CallToolResult, any, error) {
	raw, err := s.trade.Post(ctx, "/api/transactions/get-active-tx-by-orders-ids", map[string]any{
		"firstOrderId":  input.FirstOrderID,
		"secondOrderId": input.SecondOrderID,
	}, true)
	if err != nil {
		return s.fail("get_active_trade", err), nil, nil
	}
	d := gjson.ParseBytes(raw)

	var b strings.Builder
	b.WriteString("# Active Trade\n\n")
	fmt.Fprintf(&b, "- **Buy order:** %s\n", val(d.Get("buy_order_id"), "N/A"))
	fmt.Fprintf(&b, "- **Sell order:** %s\n", val(d.Get("sell_order_id"), "N/A"))
	fmt.Fprintf(&b, "- **Amount:** %s\n", val(d.Get("amount"), "N/A"))
	fmt.Fprintf(&b, "- **Status:** %s\n", val(d.Get("status"), "N/A"))
	fmt.Fprintf(&b, "- **Creator:** %s", str(d.Get("creator"), "N/A"))
	if hex := d.Get("hex_raw_proposal").String(); hex != "" {
		fmt.Fprintf(&b, "\n- **Has proposal hex:** Yes (%d chars)", len(hex))
	}
	return textResult(b.String()), nil, nil
}

func (s *MCPServer) handleDexAuthenticate(ctx context.Context, _ *mcp.CallToolRequest, input dexAuthInput) (*mcp.CallToolResult, any, error) {
	if input.Address == "" || input.Signature == "" {
		return errResult("address and signature are required"), nil, nil
	}
	raw, err := s.trade.Post(ctx, "/api/auth", map[string]any{
		"data": map[string]any{
			"address":   input.Address,
			"alias":     input.Alias,
			"message":   input.Message,
			"signature": input.Signature,
		},
		"neverExpires": true,
	}, false)
	if err != nil {
		return s.fail("dex_authenticate", err), nil, nil
	}
	if tok := gjson.ParseBytes(raw); tok.Type == gjson.String && tok.Str != "" {
		s.trade.SetToken(tok.Str)
		s.log.Info("trade session opened")
		return textResult("Authenticated with Trade API. Token stored."), nil, nil
	}
	return textResult("Authentication response: " + string(raw)), nil, nil
}

func (s *MCPServer) handleCreateOrder(ctx context.Context, _ *mcp.CallToolRequest, input createOrderInput) (*mcp.CallToolResult, any, error) {
	if input.Type != "buy" && input.Type != "sell" {
		return errResult(`type must be "buy" or "sell"`), nil, nil
	}
	raw, err := s.trade.Post(ctx, "/api/orders/create", map[string]any{
		"orderData": map[string]any{
			"type":   input.Type,
			"side":   "limit",
			"price":  input.Price,
			"amount": input.Amount,
			"pairId": input.PairID,
		},
	}, true)
	if err != nil {
		return s.fail("create_order", err), nil, nil
	}
	d := gjson.ParseBytes(raw)

	var b strings.Builder
	b.WriteString("# Order Created\n\n")
	fmt.Fprintf(&b, "- **ID:** %s\n", val(d.Get("id"), "N/A"))
	fmt.Fprintf(&b, "- **Type:** %s\n", val(d.Get("type"), input.Type))
	fmt.Fprintf(&b, "- **Price:** %s\n", val(d.Get("price"), input.Price))
	fmt.Fprintf(&b, "- **Amount:** %s\n", val(d.Get("amount"), input.Amount))
	fmt.Fprintf(&b, "- **Status:** %s", val(d.Get("status"), "N/A"))
	return textResult(b.String()), nil, nil
}

func (s *MCPServer) handleCancelOrder(ctx context.Context, _ *mcp.CallToolRequest, input orderIDInput) (*mcp.CallToolResult, any, error) {
	if _, err := s.trade.Post(ctx, "/api/orders/cancel", map[string]any{"orderId": input.OrderID}, true); err != nil {
		return s.fail("cancel_order", err), nil, nil
	}
	return textResult(fmt.Sprintf("Order %d cancelled.", input.OrderID)), nil, nil
}

func (s *MCPServer) handleApplyOrder(ctx context.Context, _ *mcp.CallToolRequest, input applyOrderInput) (*mcp.CallToolResult, any, error) {
	_, err := s.trade.Post(ctx, "/api/orders/apply-order", map[string]any{
		"orderData": map[string]any{
			"id":                 input.ID,
			"connected_order_id": input.ConnectedOrderID,
			"hex_raw_proposal":   input.HexRawProposal,
		},
	}, true)
	if err != nil {
		return s.fail("apply_order", err), nil, nil
	}
	return textResult(fmt.Sprintf("Applied to order. Tip ID: %s, connected to order: %s",
		input.ID, input.ConnectedOrderID)), nil, nil
}

func (s *MCPServer) handleConfirmTrade(ctx context.Context, _ *mcp.CallToolRequest, input confirmTradeInput) (*mcp.CallToolResult, any, error) {
	if _, err := s.trade.Post(ctx, "/api/transactions/confirm", map[string]any{"transactionId": input.TransactionID}, true); err != nil {
		return s.fail("confirm_trade", err), nil, nil
	}
	return textResult(fmt.Sprintf("Trade %d confirmed.", input.TransactionID)), nil, nil
}
