package calculator

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func engineOutputFixture() map[string]any {
	return map[string]any{
		"descripcion":             "Supuesto A",
		"importe_mensual":         725.0,
		"requisitos_adicionales":  "informe médico",
		"supuesto":                "A",
		"tiene_derecho_potencial": true,
		"errores":                 []any{},
		"advertencias":            []any{"convivencia"},
		"_regla":                  "supuesto_a",
		"_normativa":              "ayuda-excedencia@2025.1",
	}
}

func TestReshape(t *testing.T) {
	raw := map[string]any{
		"input": map[string]any{
			"parentesco":           "madre",
			"situacion":            "enfermedad",
			"familia_monoparental": false,
		},
		"output":            engineOutputFixture(),
		"parentesco_valido": true,
	}

	resp, err := Reshape(raw)
	require.NoError(t, err)

	assert.Equal(t, Outcome{
		Description:             "Supuesto A",
		MonthlyAmount:           725,
		AdditionalRequirements:  "informe médico",
		CaseLabel:               "A",
		HasPotentialEntitlement: true,
		Errors:                  []string{},
		Warnings:                []string{"convivencia"},
	}, resp.Output)
	require.NotNil(t, resp.Input)
	assert.Equal(t, "madre", resp.Input.Relationship)
	require.NotNil(t, resp.RelationshipValid)
	assert.True(t, *resp.RelationshipValid)
}

func TestReshapeWireFormat(t *testing.T) {
	out := engineOutputFixture()
	delete(out, "errores")

	resp, err := Reshape(map[string]any{"output": out})
	require.NoError(t, err)

	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var wire map[string]any
	require.NoError(t, json.Unmarshal(data, &wire))
	assert.NotContains(t, wire, "input")
	assert.NotContains(t, wire, "parentesco_valido")

	output := wire["output"].(map[string]any)
	assert.Equal(t, []any{}, output["errores"])
	assert.NotContains(t, output, "_regla")
	assert.Len(t, output, 7)
}

func TestReshapeMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
	}{
		{name: "no output", raw: map[string]any{"input": map[string]any{}}},
		{name: "output not an object", raw: map[string]any{"output": "A"}},
		{name: "missing amount", raw: func() map[string]any {
			out := engineOutputFixture()
			delete(out, "importe_mensual")
			return map[string]any{"output": out}
		}()},
		{name: "fractional amount", raw: func() map[string]any {
			out := engineOutputFixture()
			out["importe_mensual"] = 725.5
			return map[string]any{"output": out}
		}()},
		{name: "missing label", raw: func() map[string]any {
			out := engineOutputFixture()
			delete(out, "supuesto")
			return map[string]any{"output": out}
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Reshape(tt.raw)
			var encErr *EncodingError
			require.ErrorAs(t, err, &encErr)
			assert.Equal(t, OutcomeEncoding, Kind(err))
		})
	}
}

func TestReport(t *testing.T) {
	validation := &ValidationError{Issues: []ValidationIssue{
		{Message: `"hermano" is not one of ["padre"]`, Path: "/input/parentesco"},
		{Message: "expected boolean", Path: "/input/familia_monoparental"},
	}}
	assert.Equal(t,
		"Errores de validación:\n"+
			"  - Campo '/input/parentesco': \"hermano\" is not one of [\"padre\"]\n"+
			"  - Campo '/input/familia_monoparental': expected boolean\n",
		Report(validation))

	assert.Equal(t, "Error interno: boom", Report(&InternalError{Err: assertErr("boom")}))
	assert.Equal(t, "Error al evaluar: Error del motor de decisión: cel", Report(&EngineError{Err: assertErr("cel")}))
	assert.Equal(t, "Parámetros no válidos: numero_hijos: invalid number string: abc",
		Report(&DecodeError{Field: FieldChildCount, Reason: "invalid number string: abc"}))
}

func TestKind(t *testing.T) {
	assert.Equal(t, OutcomeSuccess, Kind(nil))
	assert.Equal(t, OutcomeValidation, Kind(&ValidationError{}))
	assert.Equal(t, OutcomeEngine, Kind(&EngineError{Err: assertErr("x")}))
	assert.Equal(t, OutcomeInternal, Kind(&InternalError{Err: assertErr("x")}))
	assert.Equal(t, OutcomeDecode, Kind(&DecodeError{Reason: "x"}))
	assert.Equal(t, OutcomeEncoding, Kind(&EncodingError{Err: &DecodeError{Reason: "x"}}))
	assert.Equal(t, "unknown", Kind(assertErr("x")))
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
