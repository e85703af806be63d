package identity

import (
	"strings"
	"testing"
)

func TestDerive(t *testing.T) {
	tests := []struct {
		name       string
		project    string
		hardwareID uint64
		want       string
	}{
		{"Short", "MyApp", 0x123456, "MyApp-123456"},
		{"LongProjectTruncated", "MyApp-LongNameThatExceedsLimit", 0xabc123456789, "MyApp-LongNameThatExceeds-456789"},
		{"ExactLimit", strings.Repeat("a", 25), 0x000001, strings.Repeat("a", 25) + "-000001"},
		{"ZeroID", "Device", 0, "Device-000000"},
		{"LowBitsOnly", "Device", 0xffff000000, "Device-000000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := Derive(tt.project, tt.hardwareID)

			if id.Name != tt.want {
				t.Errorf("Derive(%q, %#x).Name = %q, want %q", tt.project, tt.hardwareID, id.Name, tt.want)
			}
			if len(id.Name) > MaxNameLength {
				t.Errorf("len(Name) = %d, want <= %d", len(id.Name), MaxNameLength)
			}
			if id.ProjectName != tt.project {
				t.Errorf("ProjectName = %q, want untruncated %q", id.ProjectName, tt.project)
			}
		})
	}
}

func TestDeriveDeterministic(t *testing.T) {
	a := Derive("MyApp", 0xabc123456789)
	b := Derive("MyApp", 0xabc123456789)

	if a != b {
		t.Errorf("Derive is not deterministic: %+v != %+v", a, b)
	}
}
