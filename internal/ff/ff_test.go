package ff

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mm3Line(label string, values ...float64) string {
	line := fmt.Sprintf("%-23s", label)
	for _, v := range values {
		line += fmt.Sprintf("%10.4f", v)
	}
	return line
}

// writeTestMM3 writes a small force field and returns its path. Rows 3-5 are
// inside the OPT substructure; row 7 is not.
func writeTestMM3(t *testing.T) string {
	t.Helper()
	lines := []string{
		" MM3* test force field",
		" C  test substructure OPT",
		mm3Line(" 1  C1  C2", 1.5, 4.4, 0.0),
		mm3Line(" 2  C1  C2  H3", 109.5, 0.45),
		mm3Line(" 4  C1  C2  C3  C4", 0.2, -0.3, 0.1),
		" 9  end of substructure",
		mm3Line(" 1  O1  H2", 0.96, 7.6),
	}
	path := filepath.Join(t.TempDir(), "mm3.fld")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644))
	return path
}

func TestMM3Import(t *testing.T) {
	m := NewMM3(writeTestMM3(t))
	require.NoError(t, m.Import())
	require.Len(t, m.Params, 8)

	want := []struct {
		row, col int
		ptype    string
		value    float64
	}{
		{3, 1, PTypeBondEq, 1.5},
		{3, 2, PTypeBondForce, 4.4},
		{3, 3, PTypeCharge, 0.0},
		{4, 1, PTypeAngleEq, 109.5},
		{4, 2, PTypeAngleForce, 0.45},
		{5, 1, PTypeTorsion, 0.2},
		{5, 2, PTypeTorsion, -0.3},
		{5, 3, PTypeTorsion, 0.1},
	}
	for i, w := range want {
		p := m.Params[i]
		assert.Equal(t, w.row, p.Row, "param %d row", i)
		assert.Equal(t, w.col, p.Col, "param %d col", i)
		assert.Equal(t, w.ptype, p.PType, "param %d ptype", i)
		assert.InDelta(t, w.value, p.Value, 1e-9, "param %d value", i)
	}
}

func TestMM3ExportRoundTrip(t *testing.T) {
	path := writeTestMM3(t)
	m := NewMM3(path)
	require.NoError(t, m.Import())

	params := CloneParams(m.Params)
	params[1].Value = 5.125
	params[6].Value = -0.75
	require.NoError(t, m.Export(params))

	reread := NewMM3(path)
	require.NoError(t, reread.Import())
	require.Len(t, reread.Params, 8)
	assert.InDelta(t, 5.125, reread.Params[1].Value, 1e-9)
	assert.InDelta(t, -0.75, reread.Params[6].Value, 1e-9)
	assert.InDelta(t, 1.5, reread.Params[0].Value, 1e-9)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), " MM3* test force field")
	assert.Contains(t, string(raw), mm3Line(" 1  O1  H2", 0.96, 7.6))
}

func TestMM3ExportNotImported(t *testing.T) {
	m := NewMM3(filepath.Join(t.TempDir(), "missing.fld"))
	assert.Error(t, m.Export(nil))
	assert.Error(t, m.Import())
}

func TestMM3ExportOutOfRange(t *testing.T) {
	m := NewMM3(writeTestMM3(t))
	require.NoError(t, m.Import())
	err := m.Export([]Parameter{{Row: 99, Col: 1, Value: 1}})
	assert.Error(t, err)
}

func TestCopyAttributes(t *testing.T) {
	m := NewMM3(writeTestMM3(t))
	require.NoError(t, m.Import())
	m.SetX2(3.2)
	m.Method = MethodInitial

	c := m.CopyAttributes()
	assert.Equal(t, m.Path, c.Path)
	assert.Empty(t, c.Params)
	assert.False(t, c.Evaluated)

	c.Params = CloneParams(m.Params)
	c.Params[0].Value = 2.0
	require.NoError(t, c.Export(nil))

	reread := NewMM3(m.Path)
	require.NoError(t, reread.Import())
	assert.InDelta(t, 2.0, reread.Params[0].Value, 1e-9)
}

func TestCheckValue(t *testing.T) {
	tests := []struct {
		name    string
		param   Parameter
		wantErr bool
	}{
		{"positive", Parameter{PType: PTypeBondForce, Value: 1}, false},
		{"zero", Parameter{PType: PTypeBondForce, Value: 0}, false},
		{"negative force", Parameter{PType: PTypeBondForce, Value: -1}, true},
		{"negative allowed by flag", Parameter{PType: PTypeBondForce, Value: -1, AllowNegative: true}, false},
		{"negative torsion", Parameter{PType: PTypeTorsion, Value: -1}, false},
		{"negative charge", Parameter{PType: PTypeCharge, Value: -0.2}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.param.CheckValue()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var neg *UnallowedNegativeError
			require.True(t, errors.As(err, &neg))
			assert.Equal(t, tt.param, neg.Param)
		})
	}
}

func TestCloneParamsIndependent(t *testing.T) {
	base := []Parameter{{Row: 1, Col: 1, Value: 1}, {Row: 1, Col: 2, Value: 2}}
	clone := CloneParams(base)
	clone[0].Value = 10
	clone[1].Step.Size = 0.5

	assert.Equal(t, 1.0, base[0].Value)
	assert.Equal(t, 0.0, base[1].Step.Size)
	assert.Nil(t, CloneParams(nil))
}

func TestReadParamFile(t *testing.T) {
	input := `# row col flags
3 1
3 2 allowneg   # bond force may flip
5 1 neg

4 2 negative extra
`
	sels, err := ReadParamFile(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []Selection{
		{Row: 3, Col: 1},
		{Row: 3, Col: 2, AllowNegative: true},
		{Row: 5, Col: 1, AllowNegative: true},
		{Row: 4, Col: 2, AllowNegative: true},
	}, sels)

	_, err = ReadParamFile(strings.NewReader("3\n"))
	assert.Error(t, err)
	_, err = ReadParamFile(strings.NewReader("x 1\n"))
	assert.Error(t, err)
}

func TestStepString(t *testing.T) {
	assert.Equal(t, "0.1", Step{Size: 0.1}.String())
	assert.Equal(t, "0.05x", Step{Size: 0.05, Relative: true}.String())
}
