package spoofer

import (
	"errors"
	"reflect"
	"testing"
)

func TestForwarding(t *testing.T) {
	sysctlErr := errors.New("exit status 255")

	tests := []struct {
		name       string
		previous   string
		sysctlErr  error
		wantCalls  []string
		wantErr    error
		wantEnable bool
	}{
		{"disabled before", "0\n", nil, []string{"1", "0"}, nil, true},
		{"already enabled", "1\n", nil, nil, nil, false},
		{"sysctl fails", "0\n", sysctlErr, []string{"1"}, sysctlErr, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls []string
			f := NewForwarding(testLogger())
			f.goos = "linux"
			f.readFile = func(name string) ([]byte, error) {
				if name != ipForwardPath {
					t.Errorf("read %s, want %s", name, ipForwardPath)
				}
				return []byte(tt.previous), nil
			}
			f.sysctl = func(value string) error {
				calls = append(calls, value)
				return tt.sysctlErr
			}

			err := f.Enable()
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Enable err = %v, want %v", err, tt.wantErr)
			}
			if f.enabled != tt.wantEnable {
				t.Errorf("enabled = %v, want %v", f.enabled, tt.wantEnable)
			}
			if err := f.Restore(); err != nil {
				t.Fatalf("Restore: %v", err)
			}
			if !reflect.DeepEqual(calls, tt.wantCalls) {
				t.Errorf("sysctl calls = %q, want %q", calls, tt.wantCalls)
			}
		})
	}
}

func TestForwardingUnsupportedOS(t *testing.T) {
	f := NewForwarding(testLogger())
	f.goos = "plan9"
	f.sysctl = func(string) error {
		t.Error("sysctl called on an unsupported OS")
		return nil
	}

	if err := f.Enable(); err == nil {
		t.Fatal("Enable succeeded on plan9")
	}
}

func TestForwardingRestoreWithoutEnable(t *testing.T) {
	f := NewForwarding(testLogger())
	if err := f.Restore(); err != nil {
		t.Fatalf("Restore before Enable: %v", err)
	}
}
