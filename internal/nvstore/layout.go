package nvstore

// 存储布局常量（与已部署节点的 EEPROM 镜像逐字节兼容，禁止修改）
//
//	0..3   存在标记 'h' 'a' 's' 'u'
//	4..19  16 字节设备标识
//	20..23 配置长度（uint32，小端）
//	24..   配置字节

const (
	// MarkerOffset 存在标记起始地址
	MarkerOffset = 0
	// MarkerLen 存在标记长度
	MarkerLen = 4

	// IdentityOffset 设备标识起始地址
	IdentityOffset = MarkerOffset + MarkerLen
	// IdentityLen 设备标识长度
	IdentityLen = 16

	// LengthOffset 配置长度字段起始地址
	LengthOffset = IdentityOffset + IdentityLen
	// LengthLen 配置长度字段字节数
	LengthLen = 4

	// ConfigOffset 配置内容起始地址
	ConfigOffset = LengthOffset + LengthLen

	// DefaultCapacity 默认存储容量（字节）
	DefaultCapacity = 1024

	// ErasedByte 擦除后的闪存字节值
	ErasedByte byte = 0xFF
)

// Sentinel 存在标记字节序列
var Sentinel = [MarkerLen]byte{'h', 'a', 's', 'u'}

// ConfigCapacity 返回配置区可容纳的最大字节数
func ConfigCapacity(s Store) uint32 {
	c := s.Capacity()
	if c <= ConfigOffset {
		return 0
	}
	return uint32(c - ConfigOffset)
}
