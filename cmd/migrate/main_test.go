package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitStatements(t *testing.T) {
	t.Run("忽略注释与字符串中的分号", func(t *testing.T) {
		script := "-- header\nCREATE TABLE a (v VARCHAR(10) DEFAULT ';');\n\n-- next\nDROP TABLE b;\n"

		stmts := splitStatements(script)
		require.Len(t, stmts, 2)
		assert.Equal(t, "CREATE TABLE a (v VARCHAR(10) DEFAULT ';')", stmts[0])
		assert.Equal(t, "DROP TABLE b", stmts[1])
	})

	t.Run("末尾缺少分号", func(t *testing.T) {
		stmts := splitStatements("SELECT 1")
		assert.Equal(t, []string{"SELECT 1"}, stmts)
	})
}

func TestLoadStatements(t *testing.T) {
	for _, dbType := range []string{"mysql", "postgres", "pgx"} {
		t.Run(dbType, func(t *testing.T) {
			up, err := loadStatements(dbType, "up")
			require.NoError(t, err)
			require.NotEmpty(t, up)
			assert.True(t, strings.HasPrefix(up[0], "CREATE TABLE IF NOT EXISTS faculties"))

			down, err := loadStatements(dbType, "down")
			require.NoError(t, err)
			assert.Len(t, down, 3)
			assert.Equal(t, "DROP TABLE IF EXISTS avatars", down[0])
		})
	}

	_, err := loadStatements("mysql", "sideways")
	assert.Error(t, err)
}
