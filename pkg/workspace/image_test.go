package workspace

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestImage_Encode(t *testing.T) {
	img := &Image{Configurations: []Configuration{
		{Name: "a", Actions: []Action{
			{Name: "x", Bytecode: []byte{0x04, 0x00, 0x10}},
			{Name: "y", Bytecode: []byte{0x00, 0x00}},
		}},
		{Name: "b", Actions: []Action{
			{Name: "z", Bytecode: []byte{0x02, 0x00, 0x20, 0x21}},
		}},
	}}

	got, err := img.Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	want := []byte{
		0xFE, 0xCA,
		0x09, 0x00,
		0x03, 0x00, 0x04, 0x00, 0x10,
		0x02, 0x00, 0x00, 0x00,
		0x06, 0x00,
		0x04, 0x00, 0x02, 0x00, 0x20, 0x21,
		0x00, 0x00,
	}
	if !bytes.Equal(got, want) {
		t.Errorf("Encode() =\n% x\nwant\n% x", got, want)
	}
	if img.Size() != len(want) {
		t.Errorf("Size() = %d, want %d", img.Size(), len(want))
	}

	size, err := img.Configurations[0].Actions[0].StackSize()
	if err != nil || size != 4 {
		t.Errorf("StackSize() = %d, %v; want 4", size, err)
	}
}

func TestImage_EncodeErrors(t *testing.T) {
	tests := []struct {
		name string
		img  *Image
	}{
		{"empty configuration", &Image{Configurations: []Configuration{{Name: "a"}}}},
		{"headerless action", &Image{Configurations: []Configuration{{Name: "a", Actions: []Action{{Bytecode: []byte{1}}}}}}},
		{"oversized configuration", &Image{Configurations: []Configuration{{Name: "a", Actions: []Action{{Bytecode: make([]byte, 70000)}}}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.img.Encode(); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestDecodeImage_Errors(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{"empty", nil, ErrTruncated},
		{"bad magic", []byte{0xAD, 0xDE, 0x00, 0x00}, ErrBadMagic},
		{"no terminator", []byte{0xFE, 0xCA}, ErrTruncated},
		{"short action", []byte{0xFE, 0xCA, 0x05, 0x00, 0x03, 0x00, 0x00}, ErrTruncated},
		{"action beyond configuration", []byte{0xFE, 0xCA, 0x04, 0x00, 0x03, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}, nil},
		{"action without header", []byte{0xFE, 0xCA, 0x03, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00}, nil},
		{"trailing bytes", []byte{0xFE, 0xCA, 0x00, 0x00, 0x01}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeImage(tt.data)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDecodeImage_Empty(t *testing.T) {
	img, err := DecodeImage([]byte{0xFE, 0xCA, 0x00, 0x00})
	if err != nil {
		t.Fatalf("DecodeImage() error = %v", err)
	}
	if len(img.Configurations) != 0 {
		t.Errorf("expected no configurations, got %d", len(img.Configurations))
	}
}

func genAction() gopter.Gen {
	return gen.SliceOf(gen.UInt8()).Map(func(code []uint8) Action {
		return Action{Bytecode: append([]byte{0x10, 0x00}, code...)}
	})
}

func genConfiguration() gopter.Gen {
	return gen.SliceOfN(3, genAction()).Map(func(actions []Action) Configuration { return Configuration{Actions: actions} })
}

func TestProperty_ImageRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("DecodeImage inverts Encode", prop.ForAll(
		func(confs []Configuration) bool {
			img := &Image{Configurations: confs}
			data, err := img.Encode()
			if err != nil {
				return false
			}
			if len(data) != img.Size() {
				return false
			}
			back, err := DecodeImage(data)
			if err != nil {
				return false
			}
			if len(confs) == 0 {
				return len(back.Configurations) == 0
			}
			return reflect.DeepEqual(back, img)
		},
		gen.SliceOf(genConfiguration()),
	))

	properties.TestingRun(t)
}
