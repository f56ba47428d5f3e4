package opcode

import (
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestEncodeSplit(t *testing.T) {
	b := Encode(Flow, JZ, VariantCF)
	if b != 0x92 {
		t.Fatalf("expected 0x92, got 0x%02X", b)
	}
	m, s, v := Split(b)
	if m != Flow || s != JZ || v != VariantCF {
		t.Errorf("unexpected split %d %d %d", m, s, v)
	}
}

func TestMnemonic(t *testing.T) {
	tests := []struct {
		b    byte
		want string
	}{
		{Encode(Binary, Add, VariantA), "ADDA"},
		{Encode(Binary, Load, VariantC), "LOADC"},
		{Encode(Binary, Cast, VariantA), "CASTA"},
		{Encode(Unary, Not, VariantA), "NOT"},
		{Encode(Flow, Call, VariantA), "CALL"},
		{Encode(Flow, JZ, VariantA), "JZ"},
		{Encode(Flow, JZ, VariantCI), "JZI"},
		{Encode(Flow, JZ, VariantCF), "JZF"},
		{Encode(Stack, PushF, VariantA), "PUSHF"},
		{Encode(Stack, Pop, VariantA), "POP"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got, err := Mnemonic(tt.b)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestMnemonic_Invalid(t *testing.T) {
	for _, b := range []byte{
		Encode(Binary, 0x0E, VariantA),
		Encode(Unary, 0x02, VariantA),
		Encode(Flow, 0x05, VariantA),
		Encode(Stack, 0x04, VariantA),
		Encode(Binary, Add, VariantCF),
		Encode(Unary, Neg, VariantC),
	} {
		if _, err := Mnemonic(b); err == nil {
			t.Errorf("0x%02X: expected error", b)
		}
	}
}

func TestAddrString(t *testing.T) {
	tests := []struct {
		addr Addr
		want string
	}{
		{Reg(SP), "%SP"},
		{Reg(LPadX), "LPadX"},
		{RegOff(SP, -4, IntValue), "[%SP-4]i"},
		{RegOff(ZR, 0, FloatValue), "[%ZR+0]f"},
		{RegOff(TH, 6, IntValue), "[%TH+6]i"},
		{ConstInt(-3), "-3"},
		{ConstFloat(0.5), "0.5"},
	}
	for _, tt := range tests {
		if got := tt.addr.String(); got != tt.want {
			t.Errorf("expected %s, got %s", tt.want, got)
		}
	}
}

func TestAddrEncoding(t *testing.T) {
	tests := []struct {
		addr Addr
		want []byte
	}{
		{Reg(Hat), []byte{0x07}},
		{RegOff(SP, 4, IntValue), []byte{0x40, 0x04}},
		{RegOff(SP, -4, IntValue), []byte{0x44, 0x04}},
		{RegOff(ZR, 2, FloatValue), []byte{0x68, 0x02}},
		{RegOff(TH, 1023, IntValue), []byte{0x53, 0xFF}},
		{ConstInt(0x1234), []byte{0x34, 0x12}},
		{ConstFloat(1), []byte{0x00, 0x00, 0x80, 0x3F}},
	}
	for _, tt := range tests {
		t.Run(tt.addr.String(), func(t *testing.T) {
			got, err := tt.addr.Append(nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(got) != string(tt.want) {
				t.Errorf("expected % X, got % X", tt.want, got)
			}
			if len(got) != tt.addr.Size() {
				t.Errorf("Size() = %d, encoded %d bytes", tt.addr.Size(), len(got))
			}
		})
	}
}

func TestAddrEncoding_Errors(t *testing.T) {
	tests := []struct {
		name string
		addr Addr
		want error
	}{
		{"offset too large", RegOff(SP, 1024, IntValue), ErrOffsetRange},
		{"offset too small", RegOff(SP, -1024, IntValue), ErrOffsetRange},
		{"negative global", RegOff(ZR, -2, IntValue), ErrOffsetRange},
		{"report register base", RegOff(LPadX, 0, IntValue), ErrInvalidAddr},
		{"unknown register", Reg(NumRegisters), ErrInvalidAddr},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.addr.Append(nil); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestDecodeAddr_Errors(t *testing.T) {
	for _, b := range [][]byte{nil, {0x3F}, {0x40}, {0x70, 0x00}, {0x80}} {
		if _, _, err := DecodeAddr(b); err == nil {
			t.Errorf("% X: expected error", b)
		}
	}
}

func TestLookupRegister(t *testing.T) {
	for r := SP; r < NumRegisters; r++ {
		got, ok := LookupRegister(r.String())
		if !ok || got != r {
			t.Errorf("%s: got %v %v", r, got, ok)
		}
	}
	if _, ok := LookupRegister("Nope"); ok {
		t.Error("unexpected register Nope")
	}
}

func TestProperty_AddrRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("register+offset operands decode to themselves", prop.ForAll(
		func(reg uint8, offset int, float bool) bool {
			r := Register(reg)
			if r == ZR && offset < 0 {
				offset = -offset
			}
			vt := IntValue
			if float {
				vt = FloatValue
			}
			addr := RegOff(r, offset, vt)
			b, err := addr.Append(nil)
			if err != nil {
				return false
			}
			got, n, err := DecodeAddr(b)
			return err == nil && n == 2 && got == addr
		},
		gen.UInt8Range(0, 2),
		gen.IntRange(-MaxOffset, MaxOffset),
		gen.Bool(),
	))

	properties.Property("register operands decode to themselves", prop.ForAll(
		func(reg uint8) bool {
			addr := Reg(Register(reg))
			b, err := addr.Append(nil)
			if err != nil {
				return false
			}
			got, n, err := DecodeAddr(b)
			return err == nil && n == 1 && got == addr
		},
		gen.UInt8Range(0, uint8(NumRegisters)-1),
	))

	properties.Property("int literals decode to themselves", prop.ForAll(
		func(v int16) bool {
			b, _ := ConstInt(v).Append(nil)
			got, n, err := DecodeConst(b, IntValue)
			return err == nil && n == 2 && got.Int == v
		},
		gen.Int16(),
	))

	properties.Property("float literals decode to themselves", prop.ForAll(
		func(v float32) bool {
			b, _ := ConstFloat(v).Append(nil)
			got, n, err := DecodeConst(b, FloatValue)
			return err == nil && n == 4 && got.Float == v
		},
		gen.Float32Range(-1e6, 1e6),
	))

	properties.TestingRun(t)
}

func TestIntLiteral(t *testing.T) {
	if a, err := IntLiteral(-32768); err != nil || a.Int != -32768 {
		t.Errorf("unexpected result %v %v", a, err)
	}
	if _, err := IntLiteral(32768); !errors.Is(err, ErrLiteralRange) {
		t.Errorf("expected ErrLiteralRange, got %v", err)
	}
}
