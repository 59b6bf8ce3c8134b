package engine

// Rule 把「何时进、何时出」从引擎里解耦出来，引擎只认谓词。
type Rule interface {
	Enter(signal float64) bool
	Exit(signal float64) bool
}

// 经典震荡指标约定：超卖 30 以下进，超买 70 以上出。
const (
	DefaultEntryThreshold = 30
	DefaultExitThreshold  = 70
)

// ThresholdRule 是双边阈值规则：signal < Entry 进场，signal > Exit 离场。
type ThresholdRule struct {
	Entry     float64
	ExitLevel float64
}

func NewThresholdRule(entry, exit float64) ThresholdRule {
	return ThresholdRule{Entry: entry, ExitLevel: exit}
}

func (r ThresholdRule) Enter(signal float64) bool { return signal < r.Entry }

func (r ThresholdRule) Exit(signal float64) bool { return signal > r.ExitLevel }
