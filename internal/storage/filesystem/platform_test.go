package filesystem

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestValidateRelativePath 测试相对路径校验
func TestValidateRelativePath(t *testing.T) {
	testCases := []struct {
		input string
		valid bool
	}{
		// 正常路径
		{"avatars/avatar_1_abc.jpg", true},
		{"avatar.png", true},
		{"a/b/c.gif", true},

		// 路径遍历
		{"../file.png", false},
		{"avatars/../../file.png", false},
		{"..", false},

		// 绝对路径
		{"/etc/passwd", false},
		{"C:/Windows/file.png", false},
		{`avatars\file.png`, false},

		// 空片段与控制字符
		{"", false},
		{"avatars//file.png", false},
		{"avatars/", false},
		{"file\x00name.png", false},
		{"file\nname.png", false},

		// 超长路径
		{strings.Repeat("a", 2000), false},
	}

	for _, tc := range testCases {
		err := ValidateRelativePath(tc.input)
		if tc.valid {
			assert.NoError(t, err, "Input: %q", tc.input)
		} else {
			assert.ErrorIs(t, err, ErrInvalidPath, "Input: %q", tc.input)
		}
	}
}
