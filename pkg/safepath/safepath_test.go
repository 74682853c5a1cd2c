package safepath

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	cases := []struct {
		path    string
		wantErr bool
	}{
		{"../etc/passwd", true},
		{"a/../../b", true},
		{"..", true},
		{"data/../secret", true},
		{"..\\windows\\system32", true},
		{"a\\..\\b", true},
		{"/etc/../passwd", true},
		{"a/b/c.bin", false},
		{"game.zip", false},
		{"./a/b", false},
		{"a/b../c", false},
		{"a/..b/c", false},
		{"nested\\dir\\file.rom", false},
		{"", false},
	}

	for _, c := range cases {
		t.Run(c.path, func(t *testing.T) {
			err := Validate(c.path)
			if c.wantErr {
				assert.ErrorIs(t, err, ErrTraversal)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestJoin(t *testing.T) {
	base := t.TempDir()

	cases := []struct {
		name    string
		entry   string
		wantErr bool
	}{
		{"simple", "file.rom", false},
		{"nested", "disc1/track02.bin", false},
		{"backslash", "disc1\\track02.bin", false},
		{"dotdot", "../escape.rom", true},
		{"dotdot middle", "a/../../escape.rom", true},
		{"dotdot windows", "..\\escape.rom", true},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			target, err := Join(base, c.entry)
			if c.wantErr {
				assert.ErrorIs(t, err, ErrTraversal)
				return
			}

			assert.NoError(t, err)
			rel, err := filepath.Rel(base, target)
			assert.NoError(t, err)
			assert.NotContains(t, rel, "..")
		})
	}
}
