package monitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Init 在 main 和 router 两条路径上都可能被触发，
// 重复注册指标会被 Prometheus 直接 panic，必须幂等
func TestInitIdempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		Init()
		Init()
		InitBusinessMetrics()
		InitBusinessMetrics()
	})
	assert.NotNil(t, Business)
}

// 辅助函数在未 Init 的包里也必须安全 (单元测试不走 Init)
func TestBusinessHelpersAfterInit(t *testing.T) {
	InitBusinessMetrics()

	assert.NotPanics(t, func() {
		IncPayoutCreated()
		IncPayoutCompleted("Pi Testnet", 0.5)
		IncPayoutFailed("submit")
		IncReconcileResolved("cancelled")
		ObserveChainSubmit("Pi Testnet", 1.2)
	})
}
