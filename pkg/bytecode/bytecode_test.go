package bytecode

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/zurustar/padscript/pkg/opcode"
)

func TestAssemble_Encoding(t *testing.T) {
	tests := []struct {
		name string
		ins  Instruction
		want []byte
	}{
		{"add constant to SP", Binary{Op: opcode.Add, Dst: opcode.Reg(opcode.SP), Src: opcode.ConstInt(42)}, []byte{0x01, 0x00, 0x2A, 0x00}},
		{"load stack to report", Binary{Op: opcode.Load, Dst: opcode.Reg(opcode.LPadX), Src: opcode.RegOff(opcode.SP, -2, opcode.IntValue)}, []byte{0x30, 0x03, 0x44, 0x02}},
		{"cast float constant", Binary{Op: opcode.Cast, Dst: opcode.RegOff(opcode.ZR, 0, opcode.IntValue), Src: opcode.ConstFloat(1)}, []byte{0x35, 0x60, 0x00, 0x00, 0x00, 0x80, 0x3F}},
		{"negate", Unary{Op: opcode.Neg, Dst: opcode.RegOff(opcode.TH, 2, opcode.IntValue)}, []byte{0x40, 0x50, 0x02}},
		{"not", Unary{Op: opcode.Not, Dst: opcode.Reg(opcode.Cross)}, []byte{0x44, 0x09}},
		{"ret", Ret{}, []byte{0x84}},
		{"yield", Yield{}, []byte{0x88}},
		{"push int", Push{Src: opcode.ConstInt(-1)}, []byte{0xC0, 0xFF, 0xFF}},
		{"push float", Push{Src: opcode.ConstFloat(2)}, []byte{0xC4, 0x00, 0x00, 0x00, 0x40}},
		{"push register", Push{Src: opcode.Reg(opcode.TH)}, []byte{0xC8, 0x01}},
		{"pop", Pop{Dst: opcode.Reg(opcode.TH)}, []byte{0xCC, 0x01}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			image, err := Assemble(8, []Instruction{tt.ins})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			want := append([]byte{0x08, 0x00}, tt.want...)
			if !bytes.Equal(image, want) {
				t.Errorf("expected % X, got % X", want, image)
			}
		})
	}
}

func TestAssemble_Labels(t *testing.T) {
	prog := []Instruction{
		Label{ID: 0},
		JZ{Cond: opcode.Reg(opcode.Cross), Target: 1},
		Call{Target: 2},
		Jump{Target: 0},
		Label{ID: 1},
		Yield{},
		Label{ID: 2},
		Ret{},
	}
	image, err := Assemble(4, prog)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []byte{
		0x04, 0x00,
		0x90, 0x09, 0x0A, 0x00, // JZ Cross, 10
		0x80, 0x0B, 0x00, // CALL 11
		0x8C, 0x00, 0x00, // JUMP 0
		0x88, // YIELD
		0x84, // RET
	}
	if !bytes.Equal(image, want) {
		t.Errorf("expected % X, got % X", want, image)
	}
}

func TestAssemble_Errors(t *testing.T) {
	tests := []struct {
		name string
		prog []Instruction
		want error
	}{
		{"unknown label", []Instruction{Jump{Target: 7}}, ErrUnknownLabel},
		{"duplicate label", []Instruction{Label{ID: 1}, Label{ID: 1}}, ErrDuplicateLabel},
		{"constant destination", []Instruction{Binary{Op: opcode.Add, Dst: opcode.ConstInt(1), Src: opcode.ConstInt(1)}}, ErrOperand},
		{"mismatched constant", []Instruction{Binary{Op: opcode.Load, Dst: opcode.RegOff(opcode.SP, -4, opcode.FloatValue), Src: opcode.ConstInt(1)}}, ErrOperand},
		{"pop into report", []Instruction{Pop{Dst: opcode.Reg(opcode.LPadX)}}, ErrOperand},
		{"offset out of range", []Instruction{Push{Src: opcode.RegOff(opcode.SP, -2000, opcode.IntValue)}}, opcode.ErrOffsetRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Assemble(0, tt.prog); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
	if _, err := Assemble(70000, nil); !errors.Is(err, ErrTooLarge) {
		t.Errorf("expected ErrTooLarge, got %v", err)
	}
}

func TestDecode_RoundTrip(t *testing.T) {
	prog := []Instruction{
		Binary{Op: opcode.Add, Dst: opcode.Reg(opcode.SP), Src: opcode.ConstInt(6)},
		Label{ID: 3},
		Binary{Op: opcode.Load, Dst: opcode.RegOff(opcode.SP, -4, opcode.FloatValue), Src: opcode.ConstFloat(0.25)},
		Binary{Op: opcode.Cast, Dst: opcode.RegOff(opcode.SP, -6, opcode.IntValue), Src: opcode.RegOff(opcode.SP, -4, opcode.FloatValue)},
		Binary{Op: opcode.CLT, Dst: opcode.RegOff(opcode.SP, -6, opcode.IntValue), Src: opcode.Reg(opcode.L2Value)},
		JZ{Cond: opcode.RegOff(opcode.SP, -6, opcode.IntValue), Target: 4},
		JZ{Cond: opcode.ConstFloat(0), Target: 3},
		JZ{Cond: opcode.ConstInt(1), Target: 3},
		Push{Src: opcode.RegOff(opcode.ZR, 0, opcode.IntValue)},
		Call{Target: 4},
		Label{ID: 4},
		Unary{Op: opcode.Neg, Dst: opcode.Reg(opcode.LPadY)},
		Yield{},
		Jump{Target: 3},
	}
	image, err := Assemble(6, prog)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stackSize, code, err := ParseHeader(image)
	if err != nil || stackSize != 6 {
		t.Fatalf("unexpected header %d %v", stackSize, err)
	}
	decoded, err := Decode(code)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var want []Instruction
	for _, ins := range prog {
		if _, ok := ins.(Label); !ok {
			want = append(want, ins)
		}
	}
	if len(decoded) != len(want) {
		t.Fatalf("expected %d instructions, got %d", len(want), len(decoded))
	}
	for i, d := range decoded {
		// Label names differ from decoded offsets; compare without targets.
		expected := strings.TrimPrefix(want[i].String(), "\t")
		got := d.Mnemonic
		if len(d.Operands) > 0 {
			var ops []string
			for _, a := range d.Operands {
				ops = append(ops, a.String())
			}
			got += "\t" + strings.Join(ops, ", ")
		}
		if d.HasTarget {
			if i := strings.LastIndex(expected, "L"); i >= 0 {
				expected = strings.TrimSuffix(strings.TrimSuffix(expected[:i], " "), ",")
				expected = strings.TrimSuffix(expected, "\t")
			}
		}
		if got != expected {
			t.Errorf("instruction %d: expected %q, got %q", i, expected, got)
		}
	}
	if decoded[5].Target != 4 || decoded[6].Target != 4 {
		t.Errorf("jumps to L3 should target offset 4, got %d and %d", decoded[5].Target, decoded[6].Target)
	}
	if decoded[4].Target != 43 || decoded[8].Target != 43 {
		t.Errorf("jumps to L4 should target offset 43, got %d and %d", decoded[4].Target, decoded[8].Target)
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		code []byte
	}{
		{"invalid opcode", []byte{0x38}},
		{"truncated operand", []byte{0x01}},
		{"truncated literal", []byte{0x01, 0x00, 0x2A}},
		{"truncated target", []byte{0x80, 0x01}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(tt.code); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
	if _, _, err := ParseHeader([]byte{1}); !errors.Is(err, ErrTruncated) {
		t.Errorf("expected ErrTruncated, got %v", err)
	}
}

func TestDisassemble(t *testing.T) {
	image, err := Assemble(2, []Instruction{
		Binary{Op: opcode.Add, Dst: opcode.Reg(opcode.SP), Src: opcode.ConstInt(2)},
		Label{ID: 0},
		Yield{},
		Jump{Target: 0},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var out strings.Builder
	if err := Disassemble(&out, image); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %q", out.String())
	}
	if !strings.HasPrefix(lines[1], "0000\tADDC\t%SP, 2") {
		t.Errorf("unexpected line %q", lines[1])
	}
	if !strings.HasPrefix(lines[3], "0005\tJUMP\t4") || !strings.HasSuffix(lines[3], "; 8C 04 00") {
		t.Errorf("unexpected line %q", lines[3])
	}
}

func TestProperty_ImmediateAdd(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("ADD %SP, C(n) decodes to the same operands", prop.ForAll(
		func(n int16) bool {
			image, err := Assemble(0, []Instruction{Binary{Op: opcode.Add, Dst: opcode.Reg(opcode.SP), Src: opcode.ConstInt(n)}})
			if err != nil {
				return false
			}
			d, err := DecodeOne(image[HeaderSize:], 0)
			return err == nil && d.Mnemonic == "ADDC" && d.Operands[0] == opcode.Reg(opcode.SP) && d.Operands[1].Int == n
		},
		gen.Int16(),
	))

	properties.Property("JZ literal conditions keep their type", prop.ForAll(
		func(v float32, float bool) bool {
			cond := opcode.ConstInt(int16(v))
			if float {
				cond = opcode.ConstFloat(v)
			}
			image, err := Assemble(0, []Instruction{Label{ID: 0}, JZ{Cond: cond, Target: 0}})
			if err != nil {
				return false
			}
			d, err := DecodeOne(image[HeaderSize:], 0)
			return err == nil && d.Operands[0] == cond && d.HasTarget && d.Target == 0
		},
		gen.Float32Range(-1000, 1000),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
