package vm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/zurustar/padscript/pkg/opcode"
)

// Report is the controller state an action reads and rewrites each tick.
// Every field maps onto a register of the same name.
type Report struct {
	LPadX, LPadY, RPadX, RPadY int16

	// Hat is the d-pad direction, 0 (north) clockwise to 7, 8 when released.
	Hat int16

	Square, Cross, Circle, Triangle int16
	L1, L2, R1, R2                  int16
	Share, Options, L3, R3, PS      int16
	TPad                            int16
	L2Value, R2Value                int16

	// Integrated orientation in degrees and the time since the previous
	// report. Read-only to actions.
	IMUX, IMUY, IMUZ float32
	DELTA            int16

	// Raw accelerometer. Read-only to actions.
	ACCELX, ACCELY, ACCELZ int16
}

// NewReport returns a report with centred sticks and a released hat.
func NewReport() *Report {
	return &Report{LPadX: 128, LPadY: 128, RPadX: 128, RPadY: 128, Hat: 8}
}

func (r *Report) intField(reg opcode.Register) *int16 {
	switch reg {
	case opcode.LPadX:
		return &r.LPadX
	case opcode.LPadY:
		return &r.LPadY
	case opcode.RPadX:
		return &r.RPadX
	case opcode.RPadY:
		return &r.RPadY
	case opcode.Hat:
		return &r.Hat
	case opcode.Square:
		return &r.Square
	case opcode.Cross:
		return &r.Cross
	case opcode.Circle:
		return &r.Circle
	case opcode.Triangle:
		return &r.Triangle
	case opcode.L1:
		return &r.L1
	case opcode.L2:
		return &r.L2
	case opcode.R1:
		return &r.R1
	case opcode.R2:
		return &r.R2
	case opcode.Share:
		return &r.Share
	case opcode.Options:
		return &r.Options
	case opcode.L3:
		return &r.L3
	case opcode.R3:
		return &r.R3
	case opcode.PS:
		return &r.PS
	case opcode.TPad:
		return &r.TPad
	case opcode.L2Value:
		return &r.L2Value
	case opcode.R2Value:
		return &r.R2Value
	case opcode.DELTA:
		return &r.DELTA
	case opcode.ACCELX:
		return &r.ACCELX
	case opcode.ACCELY:
		return &r.ACCELY
	case opcode.ACCELZ:
		return &r.ACCELZ
	}
	return nil
}

func (r *Report) floatField(reg opcode.Register) *float32 {
	switch reg {
	case opcode.IMUX:
		return &r.IMUX
	case opcode.IMUY:
		return &r.IMUY
	case opcode.IMUZ:
		return &r.IMUZ
	}
	return nil
}

// ReadOnly reports whether actions may not write reg.
func ReadOnly(reg opcode.Register) bool {
	switch reg {
	case opcode.ZR, opcode.IMUX, opcode.IMUY, opcode.IMUZ, opcode.DELTA,
		opcode.ACCELX, opcode.ACCELY, opcode.ACCELZ:
		return true
	}
	return false
}

// clamp limits a value written to reg to what the report can carry.
func clamp(reg opcode.Register, v int16) int16 {
	switch reg {
	case opcode.LPadX, opcode.LPadY, opcode.RPadX, opcode.RPadY, opcode.L2Value, opcode.R2Value:
		return min(max(v, 0), 255)
	case opcode.Hat:
		return min(max(v, 0), 8)
	case opcode.Square, opcode.Cross, opcode.Circle, opcode.Triangle,
		opcode.L1, opcode.L2, opcode.R1, opcode.R2,
		opcode.Share, opcode.Options, opcode.L3, opcode.R3, opcode.PS, opcode.TPad:
		if v <= 0 {
			return 0
		}
		return 1
	}
	return v
}

// FieldNames returns the report fields in register order.
func FieldNames() []string {
	names := make([]string, 0, opcode.NumRegisters-opcode.FirstReportRegister)
	for reg := opcode.FirstReportRegister; reg < opcode.NumRegisters; reg++ {
		names = append(names, reg.String())
	}
	return names
}

func fieldRegister(name string) (opcode.Register, error) {
	reg, ok := opcode.LookupRegister(name)
	if !ok || reg < opcode.FirstReportRegister {
		return 0, fmt.Errorf("unknown report field %q", name)
	}
	return reg, nil
}

// Field returns the value of the named field.
func (r *Report) Field(name string) (float64, error) {
	reg, err := fieldRegister(name)
	if err != nil {
		return 0, err
	}
	if f := r.floatField(reg); f != nil {
		return float64(*f), nil
	}
	return float64(*r.intField(reg)), nil
}

// SetField sets the named field, clamping it like a write from an action.
// Read-only fields can be set; they are the inputs of a tick.
func (r *Report) SetField(name string, v float64) error {
	reg, err := fieldRegister(name)
	if err != nil {
		return err
	}
	if f := r.floatField(reg); f != nil {
		*f = float32(v)
		return nil
	}
	*r.intField(reg) = clamp(reg, toInt(v))
	return nil
}

// String lists every field as name=value.
func (r *Report) String() string {
	var b strings.Builder
	for i, name := range FieldNames() {
		if i > 0 {
			b.WriteByte(' ')
		}
		v, _ := r.Field(name)
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(strconv.FormatFloat(v, 'g', -1, 32))
	}
	return b.String()
}
