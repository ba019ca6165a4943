package safety

import "testing"

func TestCheck(t *testing.T) {
	t.Parallel()

	validator := NewValidator()

	tests := []struct {
		name    string
		command string
		allow   bool
	}{
		{"recursive delete of root", "rm -rf /", false},
		{"recursive delete of subtree of root", "rm -rf /var/log", false},
		{"recursive delete wildcard", "rm -rf *", false},
		{"block device write", "echo data > /dev/sda", false},
		{"block device write no space", "cat img >/dev/sdb1", false},
		{"mkfs", "mkfs.ext4 /dev/sdb1", false},
		{"dd imaging", "dd if=/dev/zero of=out.img", false},
		{"denied pattern mid-command", "cd /tmp && rm -rf / --no-preserve-root", false},
		{"plain listing", "ls -la", true},
		{"relative recursive delete", "rm -rf build", true},
		{"rm without force flags", "rm /tmp/file.txt", true},
		{"echo mentioning rm", "echo 'rm is dangerous'", true},
		{"empty command", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := validator.Check(tt.command)
			if decision.Allow != tt.allow {
				t.Errorf("Check(%q).Allow = %v, want %v (reason %q)",
					tt.command, decision.Allow, tt.allow, decision.Reason)
			}
			if !decision.Allow && decision.Reason == "" {
				t.Errorf("Check(%q) denied without a reason", tt.command)
			}
		})
	}
}
