package bytesize

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		input string
		want  ByteSize
	}{
		{"0", 0},
		{"1024", 1024},
		{"1B", 1},
		{"64KiB", 64 * KiB},
		{"64Ki", 64 * KiB},
		{"100KB", 100 * KB},
		{"100K", 100 * KB},
		{"5MB", 5 * MB},
		{"128MiB", 128 * MiB},
		{"2GiB", 2 * GiB},
		{"1TB", 1 * TB},
		{"1.5KiB", ByteSize(1536)},
		{"0.5GiB", 512 * MiB},
		{" 64KiB ", 64 * KiB},
		{"64kib", 64 * KiB},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse(%q) error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, input := range []string{
		"",
		"   ",
		"KiB",
		"12XB",
		"twelve",
		"-5MB",
	} {
		t.Run(input, func(t *testing.T) {
			if _, err := Parse(input); err == nil {
				t.Errorf("Parse(%q) = nil error, want failure", input)
			}
		})
	}
}

func TestUnmarshalText(t *testing.T) {
	var b ByteSize
	if err := b.UnmarshalText([]byte("64KiB")); err != nil {
		t.Fatalf("UnmarshalText error: %v", err)
	}
	if b != 64*KiB {
		t.Errorf("UnmarshalText = %d, want %d", b, 64*KiB)
	}

	if err := b.UnmarshalText([]byte("bogus")); err == nil {
		t.Error("UnmarshalText(bogus) = nil error, want failure")
	}
}

func TestString(t *testing.T) {
	tests := []struct {
		size ByteSize
		want string
	}{
		{512, "512B"},
		{64 * KiB, "64.00KiB"},
		{5 * MiB, "5.00MiB"},
		{2 * GiB, "2.00GiB"},
		{3 * TiB, "3.00TiB"},
	}

	for _, tt := range tests {
		if got := tt.size.String(); got != tt.want {
			t.Errorf("ByteSize(%d).String() = %q, want %q", tt.size, got, tt.want)
		}
	}
}
