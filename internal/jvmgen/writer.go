package jvmgen

import "encoding/binary"

// ByteWriter 大端序字节写入器
//
// 写入不会失败；已写入的位置可以回填（跳转偏移、属性长度）。
type ByteWriter struct {
	buf []byte
}

// NewByteWriter 创建新的字节码写入器
func NewByteWriter() *ByteWriter {
	return &ByteWriter{}
}

// WriteU8 写入无符号字节
func (w *ByteWriter) WriteU8(v uint8) {
	w.buf = append(w.buf, v)
}

// WriteU16 写入无符号短整型
func (w *ByteWriter) WriteU16(v uint16) {
	w.buf = binary.BigEndian.AppendUint16(w.buf, v)
}

// WriteU32 写入无符号整型
func (w *ByteWriter) WriteU32(v uint32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, v)
}

// WriteU64 写入 8 字节整数（long/double 常量）
func (w *ByteWriter) WriteU64(v uint64) {
	w.buf = binary.BigEndian.AppendUint64(w.buf, v)
}

// WriteBytes 写入字节数组
func (w *ByteWriter) WriteBytes(b []byte) {
	w.buf = append(w.buf, b...)
}

// PutU16At 覆盖 pos 处的两个字节
func (w *ByteWriter) PutU16At(pos int, v uint16) {
	binary.BigEndian.PutUint16(w.buf[pos:], v)
}

// PutU32At 覆盖 pos 处的四个字节
func (w *ByteWriter) PutU32At(pos int, v uint32) {
	binary.BigEndian.PutUint32(w.buf[pos:], v)
}

// Pad 写入 0 直到长度是 n 的倍数
func (w *ByteWriter) Pad(n int) {
	for len(w.buf)%n != 0 {
		w.buf = append(w.buf, 0)
	}
}

// Bytes 返回字节数组
func (w *ByteWriter) Bytes() []byte {
	return w.buf
}

// Len 返回当前长度
func (w *ByteWriter) Len() int {
	return len(w.buf)
}

// Reset 重置写入器
func (w *ByteWriter) Reset() {
	w.buf = w.buf[:0]
}
