package adapter

import "strings"

// TradingOps is the adapter for trading operations analysis: market trend
// analysis, trade signal generation, risk management, and portfolio
// optimization.
type TradingOps struct{}

// NewTradingOps constructs the trading operations adapter.
func NewTradingOps() *TradingOps { return &TradingOps{} }

// DomainTradingOps is the router domain identifier for the trading adapter.
const DomainTradingOps = "trading_ops"

// Domain returns "trading_ops".
func (*TradingOps) Domain() string { return DomainTradingOps }

// PromptTemplate returns the trading analysis prompt.
func (*TradingOps) PromptTemplate() string {
	return `You are a trading operations expert. Analyze the following market data and provide actionable insights.

Asset: {asset}
Timeframe: {timeframe}
Market Data:
{market_data}

Analysis Type: {analysis_type}

Please provide:
1. Market trend analysis
2. Key support and resistance levels
3. Risk assessment
4. Trading recommendations

Analysis:`
}

// Schema returns the trading operations input/output schemas.
func (*TradingOps) Schema() Schema {
	return Schema{
		Input: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"asset": map[string]any{
					"type":        "string",
					"description": "Trading asset symbol (e.g., BTC/USD, AAPL, EUR/USD)",
				},
				"timeframe": map[string]any{
					"type":        "string",
					"description": "Analysis timeframe (e.g., 1h, 4h, 1d)",
					"default":     "1d",
				},
				"market_data": map[string]any{
					"type":        "object",
					"description": "Market data including price, volume, indicators",
				},
				"analysis_type": map[string]any{
					"type":        "string",
					"description": "Type of analysis (technical, fundamental, sentiment)",
					"default":     "technical",
				},
			},
			"required": []string{"asset", "market_data"},
		},
		Output: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"trend": map[string]any{
					"type":        "string",
					"enum":        []string{"bullish", "bearish", "neutral"},
					"description": "Overall market trend",
				},
				"support_levels": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "number"},
					"description": "Key support price levels",
				},
				"resistance_levels": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "number"},
					"description": "Key resistance price levels",
				},
				"signals": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"type":        map[string]any{"type": "string"},
							"strength":    map[string]any{"type": "string"},
							"description": map[string]any{"type": "string"},
						},
					},
					"description": "Trading signals",
				},
				"risk_score": map[string]any{
					"type":        "number",
					"minimum":     0,
					"maximum":     10,
					"description": "Risk score (0-10)",
				},
				"recommendations": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Trading recommendations",
				},
				"summary": map[string]any{
					"type":        "string",
					"description": "Overall analysis summary",
				},
			},
			"required": []string{"trend", "summary"},
		},
	}
}

// Tools returns the trading operations tools.
func (*TradingOps) Tools() []ToolDefinition {
	return []ToolDefinition{
		{
			Name:        "calculate_indicators",
			Description: "Calculate technical indicators (RSI, MACD, Bollinger Bands, etc.)",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"indicators": map[string]any{
						"type":        "array",
						"items":       map[string]any{"type": "string"},
						"description": "List of indicators to calculate",
					},
					"period": map[string]any{
						"type":        "integer",
						"description": "Period for calculation",
					},
				},
			},
		},
		{
			Name:        "backtest_strategy",
			Description: "Backtest a trading strategy with historical data",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"strategy": map[string]any{
						"type":        "string",
						"description": "Strategy description or identifier",
					},
					"start_date": map[string]any{
						"type":        "string",
						"description": "Start date for backtest",
					},
					"end_date": map[string]any{
						"type":        "string",
						"description": "End date for backtest",
					},
				},
			},
		},
		{
			Name:        "calculate_risk_metrics",
			Description: "Calculate risk metrics (VaR, Sharpe ratio, max drawdown, etc.)",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"metrics": map[string]any{
						"type":        "array",
						"items":       map[string]any{"type": "string"},
						"description": "Risk metrics to calculate",
					},
					"portfolio": map[string]any{
						"type":        "object",
						"description": "Portfolio positions",
					},
				},
			},
		},
		{
			Name:        "optimize_portfolio",
			Description: "Optimize portfolio allocation",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"assets": map[string]any{
						"type":        "array",
						"items":       map[string]any{"type": "string"},
						"description": "Assets to include in optimization",
					},
					"constraints": map[string]any{
						"type":        "object",
						"description": "Portfolio constraints",
					},
					"objective": map[string]any{
						"type":        "string",
						"enum":        []string{"maximize_return", "minimize_risk", "sharpe_ratio"},
						"description": "Optimization objective",
					},
				},
			},
		},
	}
}

// AdaptInput defaults the timeframe and analysis type, and uppercases the
// asset symbol.
func (*TradingOps) AdaptInput(raw map[string]any) map[string]any {
	in := cloneInput(raw)
	if _, ok := in["timeframe"]; !ok {
		in["timeframe"] = "1d"
	}
	if _, ok := in["analysis_type"]; !ok {
		in["analysis_type"] = "technical"
	}
	if asset, ok := in["asset"].(string); ok {
		in["asset"] = strings.ToUpper(asset)
	}
	return in
}

// AdaptOutput fills defaults for every response field so callers always see
// the full trading analysis shape.
func (*TradingOps) AdaptOutput(raw map[string]any) map[string]any {
	return map[string]any{
		"trend":             orDefault(raw, "trend", "neutral"),
		"support_levels":    orDefault(raw, "support_levels", []any{}),
		"resistance_levels": orDefault(raw, "resistance_levels", []any{}),
		"signals":           orDefault(raw, "signals", []any{}),
		"risk_score":        orDefault(raw, "risk_score", 5.0),
		"recommendations":   orDefault(raw, "recommendations", []any{}),
		"summary":           orDefault(raw, "summary", "Analysis completed"),
		"metadata": map[string]any{
			"asset":              orDefault(raw, "asset", "unknown"),
			"timeframe":          orDefault(raw, "timeframe", "1d"),
			"analysis_timestamp": raw["timestamp"],
		},
	}
}
