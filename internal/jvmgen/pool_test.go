package jvmgen

import (
	"bytes"
	"errors"
	"math"
	"strconv"
	"testing"
)

func TestConstantPoolDedup(t *testing.T) {
	p := NewConstantPool()
	if got := p.Utf8("a"); got != 1 {
		t.Fatalf("first index %d, want 1", got)
	}
	if got := p.Utf8("a"); got != 1 {
		t.Errorf("duplicate utf8 got new index %d", got)
	}
	if got := p.Long(5); got != 2 {
		t.Errorf("long index %d, want 2", got)
	}
	// long 占两个槽位
	if got := p.Integer(5); got != 4 {
		t.Errorf("int after long index %d, want 4", got)
	}
	if got := p.Double(1); got != 5 || p.Count() != 7 {
		t.Errorf("double index %d count %d", got, p.Count())
	}

	field := p.Fieldref("A", "x", "I")
	if p.Fieldref("A", "x", "I") != field {
		t.Error("fieldref not deduplicated")
	}
	if p.Methodref("A", "x", "I") == field || p.InterfaceMethodref("A", "x", "I") == p.Methodref("A", "x", "I") {
		t.Error("member kinds must not share entries")
	}
	if p.Class("A") != p.Class("A") {
		t.Error("class not deduplicated")
	}

	if p.Float(0) == p.Float(float32(math.Copysign(0, -1))) {
		t.Error("0 and -0 are distinct constants")
	}
	nan := float32(math.NaN())
	if p.Float(nan) != p.Float(nan) {
		t.Error("NaN constants should be deduplicated by bit pattern")
	}
	if err := p.Err(); err != nil {
		t.Errorf("unexpected error %v", err)
	}
}

func TestConstantPoolOverflow(t *testing.T) {
	p := NewConstantPool()
	for i := 0; i < math.MaxUint16/2+1; i++ {
		p.Long(int64(i))
	}
	if !errors.Is(p.Err(), ErrPoolOverflow) {
		t.Errorf("got %v, want ErrPoolOverflow", p.Err())
	}
}

func TestModifiedUTF8(t *testing.T) {
	tests := []struct {
		in   string
		want []byte
	}{
		{"abc", []byte("abc")},
		{"\x00", []byte{0xC0, 0x80}},
		{"é", []byte{0xC3, 0xA9}},
		{"中", []byte{0xE4, 0xB8, 0xAD}},
		{"\U0001F600", []byte{0xED, 0xA0, 0xBD, 0xED, 0xB8, 0x80}},
	}
	for _, tt := range tests {
		t.Run(strconv.Quote(tt.in), func(t *testing.T) {
			if got := modifiedUTF8(tt.in); !bytes.Equal(got, tt.want) {
				t.Errorf("got % x, want % x", got, tt.want)
			}
		})
	}
}

func TestByteWriterPatch(t *testing.T) {
	w := NewByteWriter()
	w.WriteU8(1)
	w.WriteU16(0)
	w.WriteU32(0)
	w.PutU16At(1, 0xBEEF)
	w.PutU32At(3, 0xCAFEBABE)
	w.Pad(4)
	want := []byte{1, 0xBE, 0xEF, 0xCA, 0xFE, 0xBA, 0xBE, 0}
	if !bytes.Equal(w.Bytes(), want) {
		t.Errorf("got % x, want % x", w.Bytes(), want)
	}
	w.Reset()
	if w.Len() != 0 {
		t.Error("Reset should empty the writer")
	}
}
