package cmd

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateFormat(t *testing.T) {
	allowed := []string{FormatTable, FormatJSON, FormatYAML}

	tests := []struct {
		input   string
		wantErr string
	}{
		{"table", ""},
		{"JSON", ""},
		{"yaml", ""},
		{"yml", `did you mean "yaml"?`},
		{"tabel", `did you mean "table"?`},
		{"csv", "must be one of: table, json, yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			err := ValidateFormat(tt.input, allowed)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestFormatFlag(t *testing.T) {
	c := &cobra.Command{Use: "test", RunE: func(*cobra.Command, []string) error { return nil }}
	format := AddFormatFlag(c, FormatTable, FormatTable, FormatJSON)

	assert.Equal(t, FormatTable, format.String())
	assert.Equal(t, "format", format.Type())

	require.NoError(t, c.Flags().Parse([]string{"-f", "JSON"}))
	assert.Equal(t, FormatJSON, format.String())

	assert.Error(t, c.Flags().Parse([]string{"--format", "yaml"}))
}

func TestValidateWorkers(t *testing.T) {
	assert.NoError(t, ValidateWorkers("1"))
	assert.NoError(t, ValidateWorkers("64"))
	assert.Error(t, ValidateWorkers("0"))
	assert.Error(t, ValidateWorkers("-3"))
	assert.Error(t, ValidateWorkers("four"))
}

func TestAddFlagValidation(t *testing.T) {
	c := &cobra.Command{Use: "test"}
	c.Flags().Int("workers", 10, "")
	AddFlagValidation(c, "workers", ValidateWorkers)
	AddFlagValidation(c, "missing", ValidateWorkers)

	assert.Error(t, c.Flags().Set("workers", "0"))
	require.NoError(t, c.Flags().Set("workers", "3"))

	n, err := c.Flags().GetInt("workers")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
