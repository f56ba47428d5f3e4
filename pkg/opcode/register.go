package opcode

import "fmt"

// Register is a 6-bit register index. The first three are machine registers,
// the rest map onto fields of the input report.
type Register byte

const (
	SP Register = iota // stack pointer
	TH                 // address of the current struct instance
	ZR                 // always zero, base of the global frame

	LPadX
	LPadY
	RPadX
	RPadY
	Hat
	Square
	Cross
	Circle
	Triangle
	L1
	L2
	R1
	R2
	Share
	Options
	L3
	R3
	PS
	TPad
	L2Value
	R2Value
	IMUX
	IMUY
	IMUZ
	DELTA
	ACCELX
	ACCELY
	ACCELZ

	NumRegisters
)

// FirstReportRegister is the index of the first report-mapped register.
const FirstReportRegister = LPadX

var registerNames = [NumRegisters]string{
	SP:       "%SP",
	TH:       "%TH",
	ZR:       "%ZR",
	LPadX:    "LPadX",
	LPadY:    "LPadY",
	RPadX:    "RPadX",
	RPadY:    "RPadY",
	Hat:      "Hat",
	Square:   "Square",
	Cross:    "Cross",
	Circle:   "Circle",
	Triangle: "Triangle",
	L1:       "L1",
	L2:       "L2",
	R1:       "R1",
	R2:       "R2",
	Share:    "Share",
	Options:  "Options",
	L3:       "L3",
	R3:       "R3",
	PS:       "PS",
	TPad:     "TPad",
	L2Value:  "L2Value",
	R2Value:  "R2Value",
	IMUX:     "IMUX",
	IMUY:     "IMUY",
	IMUZ:     "IMUZ",
	DELTA:    "DELTA",
	ACCELX:   "ACCELX",
	ACCELY:   "ACCELY",
	ACCELZ:   "ACCELZ",
}

func (r Register) String() string {
	if r < NumRegisters {
		return registerNames[r]
	}
	return fmt.Sprintf("R%d", byte(r))
}

// Valid reports whether r is a known register index.
func (r Register) Valid() bool {
	return r < NumRegisters
}

// IsFloat reports whether the register holds a float value.
func (r Register) IsFloat() bool {
	return r == IMUX || r == IMUY || r == IMUZ
}

// LookupRegister returns the register with the given name. Report fields
// are named as in the DSL, machine registers with their % prefix.
func LookupRegister(name string) (Register, bool) {
	for i, n := range registerNames {
		if n == name {
			return Register(i), true
		}
	}
	return 0, false
}
