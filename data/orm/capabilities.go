package orm

// Capability 表示适配器可选支持的能力标识。
// 超出能力的调用应由适配器返回 ErrUnsupported，而非静默降级。
type Capability string

const (
	CapabilityBasicCRUD   Capability = "basic_crud"
	CapabilityQuery       Capability = "query"
	CapabilityBatchWrite  Capability = "batch_write"
	CapabilityTransaction Capability = "transaction"
)

// Capabilities 以集合形式表达适配器支持的能力。
type Capabilities map[Capability]bool

// Supports 判断是否支持指定能力。
func (c Capabilities) Supports(cap Capability) bool {
	return c[cap]
}

// NewCapabilities 便捷构造能力集合。
func NewCapabilities(caps ...Capability) Capabilities {
	set := make(Capabilities, len(caps))
	for _, cap := range caps {
		set[cap] = true
	}
	return set
}
