package mcpserver

import (
	"bytes"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

type emptyInput struct{}

// addTool registers one tool and counts it.
func addTool[In any](s *MCPServer, name, description string, h mcp.ToolHandlerFor[In, any]) {
	mcp.AddTool(s.server, &mcp.Tool{Name: name, Description: description}, h)
	s.toolCount++
}

// registerTools adds every tool group the configuration allows.
func (s *MCPServer) registerTools() {
	s.registerDaemonTools()

	if s.wallet != nil {
		s.registerWalletTools()
		s.registerAssetTools()
		s.registerSwapTools()
		s.log.Info("wallet, asset and swap tools registered")
	} else {
		s.log.Info("no wallet URL set, wallet/asset/swap tools disabled")
	}

	if s.trade != nil {
		s.registerTradeTools()
		s.log.Info("trade tools registered", zap.Bool("authenticated", s.trade.HasToken()))
	}

	if s.opts.EnableWrite {
		s.log.Warn("write tools ENABLED, fund-moving operations are active")
	} else {
		s.log.Info("write tools disabled (read-only mode), set ZANO_ENABLE_WRITE_TOOLS=true to enable")
	}
	s.log.Info("tools registered", zap.Int("count", s.toolCount))
}

// --- Helpers ---

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func errResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: msg}},
		IsError: true,
	}
}

// fail logs a failed tool call and turns err into an error result.
func (s *MCPServer) fail(tool string, err error) *mcp.CallToolResult {
	s.log.Warn("tool call failed", zap.String("tool", tool), zap.Error(err))
	return errResult("Error: " + err.Error())
}

// str is v as text when truthy, otherwise fallback.
func str(v gjson.Result, fallback string) string {
	if truthy(v) {
		return v.String()
	}
	return fallback
}

// val is v as text when present and non-null, otherwise fallback.
func val(v gjson.Result, fallback string) string {
	if v.Exists() && v.Type != gjson.Null {
		return v.String()
	}
	return fallback
}

func truthy(v gjson.Result) bool {
	switch v.Type {
	case gjson.True, gjson.JSON:
		return true
	case gjson.Number:
		return v.Num != 0
	case gjson.String:
		return v.Str != ""
	}
	return false
}

// firstOf returns the first truthy member of r among keys, or r itself.
func firstOf(r gjson.Result, keys ...string) gjson.Result {
	for _, k := range keys {
		if v := r.Get(k); truthy(v) {
			return v
		}
	}
	return r
}

// pick returns the first truthy member of r among keys, or an empty result.
func pick(r gjson.Result, keys ...string) gjson.Result {
	for _, k := range keys {
		if v := r.Get(k); truthy(v) {
			return v
		}
	}
	return gjson.Result{}
}

func prettyJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}
