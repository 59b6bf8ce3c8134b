package engine

// Side 表示成交方向。
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Bar 是引擎的最小输入单元：时间戳 + 收盘价 + 对齐的信号值。
// HasSignal=false 表示该根处于指标预热期，当根禁止开平仓但照常估值。
type Bar struct {
	TS        int64   `json:"ts"`
	Close     float64 `json:"close"`
	Signal    float64 `json:"signal"`
	HasSignal bool    `json:"has_signal"`
}

// Trade 记录一次成交，写入后不可变。
type Trade struct {
	TS       int64   `json:"ts"`
	Side     Side    `json:"side"`
	Price    float64 `json:"price"`
	Quantity int64   `json:"quantity"`
	Cost     float64 `json:"cost"`
}

// EquityPoint 每根 K 线一条：现金 + 持仓市值。
type EquityPoint struct {
	TS     int64   `json:"ts"`
	Equity float64 `json:"equity"`
}

// Result 是一次完整推演的产出。FinalCapital 为裸现金，
// 若序列结束时仍持仓，总市值要看最后一个 EquityPoint。
type Result struct {
	Trades       []Trade       `json:"trades"`
	FinalCapital float64       `json:"final_capital"`
	Equity       []EquityPoint `json:"equity"`
}
