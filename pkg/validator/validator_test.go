package validator

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testProduct struct {
	Name      string `json:"name" validate:"required,min=2"`
	Packaging string `json:"packaging" validate:"required,oneof=pet can glass tetrapak"`
	Deposit   int    `json:"deposit" validate:"gt=0"`
	Volume    int    `json:"volume" validate:"gt=0,lte=5000"`
	Internal  string `json:"-"`
}

func validProduct() testProduct {
	return testProduct{Name: "Cola", Packaging: "pet", Deposit: 15, Volume: 500}
}

func TestValidate_Success(t *testing.T) {
	assert.NoError(t, Validate(validProduct()))
}

func TestValidate_FieldMessages(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *testProduct)
		field  string
		msg    string
	}{
		{"missing name", func(p *testProduct) { p.Name = "" }, "name", "is required"},
		{"short name", func(p *testProduct) { p.Name = "C" }, "name", "must be at least 2 characters"},
		{"bad packaging", func(p *testProduct) { p.Packaging = "box" }, "packaging", "must be one of: pet can glass tetrapak"},
		{"zero deposit", func(p *testProduct) { p.Deposit = 0 }, "deposit", "must be a positive number"},
		{"negative volume", func(p *testProduct) { p.Volume = -1 }, "volume", "must be a positive number"},
		{"volume too large", func(p *testProduct) { p.Volume = 5001 }, "volume", "must be at most 5000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validProduct()
			tt.mutate(&p)

			err := Validate(p)
			require.Error(t, err)

			var valErr *ValidationError
			require.ErrorAs(t, err, &valErr)
			assert.Equal(t, tt.msg, valErr.Fields()[tt.field])
		})
	}
}

func TestValidate_VolumeBoundary(t *testing.T) {
	p := validProduct()
	p.Volume = 5000
	assert.NoError(t, Validate(p))
}

func TestValidate_MultipleErrors(t *testing.T) {
	err := Validate(testProduct{})
	require.Error(t, err)

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	fields := valErr.Fields()
	assert.Len(t, fields, 4)
	assert.Contains(t, fields, "name")
	assert.Contains(t, fields, "packaging")
	assert.Contains(t, fields, "deposit")
	assert.Contains(t, fields, "volume")
}

func TestValidationError_ErrorString(t *testing.T) {
	p := validProduct()
	p.Name = ""
	err := Validate(p)
	require.Error(t, err)
	assert.Equal(t, "field 'name' is required", err.Error())
}

func TestValidate_NonStruct(t *testing.T) {
	err := Validate("not a struct")
	require.Error(t, err)

	var valErr *ValidationError
	assert.NotErrorAs(t, err, &valErr)
}

func TestDecodeAndValidate_Success(t *testing.T) {
	body := `{"name":"Cola","packaging":"can","deposit":15,"volume":330}`
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))

	var dst testProduct
	require.NoError(t, DecodeAndValidate(req, &dst))
	assert.Equal(t, "Cola", dst.Name)
	assert.Equal(t, 330, dst.Volume)
}

func TestDecodeAndValidate_InvalidJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{not json"))

	var dst testProduct
	err := DecodeAndValidate(req, &dst)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode request body")
}

func TestDecodeAndValidate_UnknownField(t *testing.T) {
	body := `{"name":"Cola","packaging":"can","deposit":15,"volume":330,"active":true}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))

	var dst testProduct
	err := DecodeAndValidate(req, &dst)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown field")
}

func TestDecodeAndValidate_ValidationFails(t *testing.T) {
	body := `{"name":"C","packaging":"can","deposit":15,"volume":330}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))

	var dst testProduct
	err := DecodeAndValidate(req, &dst)
	require.Error(t, err)

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Contains(t, valErr.Fields(), "name")
}
