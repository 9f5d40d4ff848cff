package nvstore

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Layout 存储头部解析结果，仅用于诊断输出
type Layout struct {
	Marker   [MarkerLen]byte
	Identity [IdentityLen]byte
	Length   uint32
	Valid    bool // 标记匹配且长度未越界
}

// Inspect 解析存储头部
func Inspect(s Store) (Layout, error) {
	var l Layout
	head, err := ReadRange(s, 0, ConfigOffset)
	if err != nil {
		return l, err
	}
	copy(l.Marker[:], head[MarkerOffset:MarkerOffset+MarkerLen])
	copy(l.Identity[:], head[IdentityOffset:IdentityOffset+IdentityLen])
	l.Length = binary.LittleEndian.Uint32(head[LengthOffset : LengthOffset+LengthLen])
	l.Valid = l.Marker == Sentinel && l.Length <= ConfigCapacity(s)
	return l, nil
}

// Dump 以 16 字节一行输出十六进制内容，n<=0 时输出头部 + 已声明的配置长度
func Dump(s Store, n int) (string, error) {
	if n <= 0 {
		l, err := Inspect(s)
		if err != nil {
			return "", err
		}
		n = ConfigOffset
		if l.Valid {
			n += int(l.Length)
		}
	}
	if n > s.Capacity() {
		n = s.Capacity()
	}
	data, err := ReadRange(s, 0, n)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for off := 0; off < len(data); off += 16 {
		end := off + 16
		if end > len(data) {
			end = len(data)
		}
		fmt.Fprintf(&b, "%08x ", off)
		for i := off; i < off+16; i++ {
			if i < end {
				fmt.Fprintf(&b, " %02x", data[i])
			} else {
				b.WriteString("   ")
			}
		}
		b.WriteString("  |")
		for _, c := range data[off:end] {
			if c >= 0x20 && c < 0x7f {
				b.WriteByte(c)
			} else {
				b.WriteByte('.')
			}
		}
		b.WriteString("|\n")
	}
	return b.String(), nil
}
