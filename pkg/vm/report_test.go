package vm

import (
	"strings"
	"testing"
)

func TestNewReport(t *testing.T) {
	r := NewReport()
	for _, name := range []string{"LPadX", "LPadY", "RPadX", "RPadY"} {
		if v, _ := r.Field(name); v != 128 {
			t.Errorf("%s = %v, want 128", name, v)
		}
	}
	if r.Hat != 8 {
		t.Errorf("Hat = %d, want 8", r.Hat)
	}
}

func TestReport_SetField(t *testing.T) {
	tests := []struct {
		name  string
		field string
		value float64
		want  float64
	}{
		{"axis in range", "LPadX", 200, 200},
		{"axis above range", "RPadY", 300, 255},
		{"axis below range", "LPadY", -5, 0},
		{"trigger value", "R2Value", 1000, 255},
		{"hat above range", "Hat", 12, 8},
		{"button pressed", "Cross", 5, 1},
		{"button released", "Square", -1, 0},
		{"fraction truncates", "L2Value", 12.9, 12},
		{"float input", "IMUX", 12.5, 12.5},
		{"read-only int input", "DELTA", 16, 16},
		{"accelerometer keeps sign", "ACCELZ", -300, -300},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReport()
			if err := r.SetField(tt.field, tt.value); err != nil {
				t.Fatalf("SetField: %v", err)
			}
			got, err := r.Field(tt.field)
			if err != nil {
				t.Fatalf("Field: %v", err)
			}
			if got != tt.want {
				t.Errorf("%s = %v, want %v", tt.field, got, tt.want)
			}
		})
	}
}

func TestReport_UnknownField(t *testing.T) {
	r := NewReport()
	for _, name := range []string{"Nope", "SP", "ZR", ""} {
		if _, err := r.Field(name); err == nil {
			t.Errorf("Field(%q): expected error", name)
		}
		if err := r.SetField(name, 1); err == nil {
			t.Errorf("SetField(%q): expected error", name)
		}
	}
}

func TestReport_String(t *testing.T) {
	r := NewReport()
	r.IMUX = 1.5
	s := r.String()
	for _, want := range []string{"LPadX=128", "Hat=8", "Cross=0", "IMUX=1.5"} {
		if !strings.Contains(s, want) {
			t.Errorf("String() = %q, missing %q", s, want)
		}
	}
	if got := len(strings.Fields(s)); got != len(FieldNames()) {
		t.Errorf("String() has %d fields, want %d", got, len(FieldNames()))
	}
}

func TestReadOnly(t *testing.T) {
	for _, name := range FieldNames() {
		reg, _ := fieldRegister(name)
		want := strings.HasPrefix(name, "IMU") || strings.HasPrefix(name, "ACCEL") || name == "DELTA"
		if ReadOnly(reg) != want {
			t.Errorf("ReadOnly(%s) = %v, want %v", name, ReadOnly(reg), want)
		}
	}
}
