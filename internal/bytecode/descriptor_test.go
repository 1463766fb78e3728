package bytecode

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseMethodDescriptor(t *testing.T) {
	tests := []struct {
		desc string
		args []string
		ret  string
	}{
		{"()V", nil, "V"},
		{"(I)I", []string{"I"}, "I"},
		{"(ILjava/lang/String;[J)V", []string{"I", "Ljava/lang/String;", "[J"}, "V"},
		{"([[Ljava/lang/Object;D)[B", []string{"[[Ljava/lang/Object;", "D"}, "[B"},
	}
	for _, tt := range tests {
		args, ret, err := ParseMethodDescriptor(tt.desc)
		if err != nil {
			t.Errorf("%s: %v", tt.desc, err)
			continue
		}
		if diff := cmp.Diff(tt.args, args); diff != "" || ret != tt.ret {
			t.Errorf("%s: args diff %s, ret %s", tt.desc, diff, ret)
		}
	}

	for _, bad := range []string{"", "V", "()", "(I", "(Q)V", "(L;)V", "(Ljava/lang/String)V", "()II", "()[", "(I)VV"} {
		if _, _, err := ParseMethodDescriptor(bad); !errors.Is(err, ErrBadDescriptor) {
			t.Errorf("%q: got %v, want ErrBadDescriptor", bad, err)
		}
	}
}

func TestFieldDescriptors(t *testing.T) {
	for desc, want := range map[string]bool{
		"I": true, "[I": true, "Ljava/io/PrintStream;": true, "[[D": true,
		"": false, "V": false, "[": false, "L;": false, "Ljava/lang/String": false, "II": false,
	} {
		if got := ValidFieldDescriptor(desc); got != want {
			t.Errorf("ValidFieldDescriptor(%q) = %v", desc, got)
		}
	}
}

func TestDescriptorSizes(t *testing.T) {
	sizes := map[string]int{"V": 0, "I": 1, "J": 2, "D": 2, "Ljava/lang/Object;": 1, "[J": 1}
	for desc, want := range sizes {
		if got := DescriptorSize(desc); got != want {
			t.Errorf("DescriptorSize(%q) = %d, want %d", desc, got, want)
		}
	}
	args := map[string]int{"()V": 0, "(IJ)V": 3, "(DLjava/lang/String;[D)J": 4, "(bad": 0}
	for desc, want := range args {
		if got := ArgumentsSize(desc); got != want {
			t.Errorf("ArgumentsSize(%q) = %d, want %d", desc, got, want)
		}
	}
}
