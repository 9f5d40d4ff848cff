package nodeconfig

// Tag 特性/传感器标签。已知标签为封闭枚举，未知标签按原样保留以兼容新版协调端。
type Tag string

const (
	TagBME280Temp  Tag = "BME280_TEMP"
	TagBME280Hygro Tag = "BME280_HYGRO"
	TagBME280Baro  Tag = "BME280_BARO"
	TagBME280Alti  Tag = "BME280_ALTI"
	TagBME280Dew   Tag = "BME280_DEW"

	TagI2CDeviceOnIO13 Tag = "I2C_DEVICE_ON_IO13"
	TagI2CDeviceOnIO0  Tag = "I2C_DEVICE_ON_IO0"
)

var knownTags = map[Tag]struct{}{
	TagBME280Temp:      {},
	TagBME280Hygro:     {},
	TagBME280Baro:      {},
	TagBME280Alti:      {},
	TagBME280Dew:       {},
	TagI2CDeviceOnIO13: {},
	TagI2CDeviceOnIO0:  {},
}

// Known 是否为本固件识别的标签
func (t Tag) Known() bool {
	_, ok := knownTags[t]
	return ok
}

// TagSet 保持顺序的标签集合
type TagSet struct {
	order []Tag
	index map[Tag]struct{}
}

// NewTagSet 按出现顺序构建集合，重复项只保留第一次
func NewTagSet(tags ...string) TagSet {
	s := TagSet{index: make(map[Tag]struct{}, len(tags))}
	for _, raw := range tags {
		t := Tag(raw)
		if _, dup := s.index[t]; dup {
			continue
		}
		s.index[t] = struct{}{}
		s.order = append(s.order, t)
	}
	return s
}

// Has 集合是否包含 t
func (s TagSet) Has(t Tag) bool {
	_, ok := s.index[t]
	return ok
}

// Any 集合是否包含任一标签
func (s TagSet) Any(tags ...Tag) bool {
	for _, t := range tags {
		if s.Has(t) {
			return true
		}
	}
	return false
}

// Len 元素个数
func (s TagSet) Len() int { return len(s.order) }

// Tags 按原始顺序返回标签
func (s TagSet) Tags() []Tag { return append([]Tag(nil), s.order...) }

// Unknown 返回本固件不识别的标签
func (s TagSet) Unknown() []Tag {
	var out []Tag
	for _, t := range s.order {
		if !t.Known() {
			out = append(out, t)
		}
	}
	return out
}

// Strings 转为字符串切片
func (s TagSet) Strings() []string {
	out := make([]string, len(s.order))
	for i, t := range s.order {
		out[i] = string(t)
	}
	return out
}
