package isa

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRevision(t *testing.T) {
	p, err := Revision("rev1")
	require.NoError(t, err)
	assert.Equal(t, Rev1, p)
	assert.Equal(t, uint32(12), p.AddSubImmBits)
	assert.Zero(t, p.SmallMulBits)

	p, err = Revision("rev2")
	require.NoError(t, err)
	assert.Equal(t, uint32(14), p.AddSubImmBits)
	assert.Equal(t, uint32(4), p.SmallMulBits)
	assert.Equal(t, "rev1", Rev1.Name, "deriving rev2 must not alter rev1")

	_, err = Revision("rev9")
	assert.ErrorIs(t, err, ErrUnknownRevision)
}

func TestValidate(t *testing.T) {
	for _, p := range Revisions() {
		assert.NoError(t, p.Validate(), p.Name)
	}

	p := Rev1
	p.CmpImmBits = 0
	assert.ErrorIs(t, p.Validate(), ErrInvalidParams)

	p = Rev1
	p.LargeImmBits = 64
	assert.ErrorIs(t, p.Validate(), ErrInvalidParams)
}

func TestFingerprint(t *testing.T) {
	renamed := Rev1
	renamed.Name = "copy"
	assert.Equal(t, Rev1.Fingerprint(), renamed.Fingerprint())
	assert.NotEqual(t, Rev1.Fingerprint(), Rev2.Fingerprint())
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
		check   func(t *testing.T, p Params)
		wantErr bool
	}{
		{
			name:    "partial file keeps rev1 defaults",
			content: "name: wide\nadd_sub_imm_bits: 16\n",
			check: func(t *testing.T, p Params) {
				assert.Equal(t, "wide", p.Name)
				assert.Equal(t, uint32(16), p.AddSubImmBits)
				assert.Equal(t, Rev1.LargeImmBits, p.LargeImmBits)
			},
		},
		{
			name:    "unknown key",
			content: "add_sub_bits: 16\n",
			wantErr: true,
		},
		{
			name:    "zero width",
			content: "cmp_imm_bits: 0\n",
			wantErr: true,
		},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, string(rune('a'+i))+".yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			p, err := Load(path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, p)
		})
	}

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
