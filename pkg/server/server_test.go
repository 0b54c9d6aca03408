package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"niftiverify/pkg/nifti"
	"niftiverify/pkg/report"
	"niftiverify/pkg/synth"
)

func newTestEcho(maxBody int64) *echo.Echo {
	e := echo.New()
	NewServer(Options{MaxBodyBytes: maxBody}).Register(e)
	return e
}

func do(t *testing.T, e *echo.Echo, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEOctetStream)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func encodedFixture(t *testing.T, name string) []byte {
	t.Helper()
	f, err := synth.NewGenerator(synth.Options{Seed: 9, Shape: []int{5, 4, 3}}).Fixture(name)
	require.NoError(t, err)
	b, err := nifti.Encode(f.Volume)
	require.NoError(t, err)
	return b
}

type errorResponse struct {
	Error report.ErrorBody `json:"error"`
}

func TestDatatypes(t *testing.T) {
	e := newTestEcho(0)
	rec := do(t, e, http.MethodGet, "/v1/datatypes", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Datatypes []report.DatatypeRow `json:"datatypes"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Datatypes, 11)
	assert.Equal(t, "bit8", body.Datatypes[0].Name)
	assert.NotEmpty(t, rec.Header().Get(HeaderRequestID))
}

func TestRequestIDIsPropagated(t *testing.T) {
	e := newTestEcho(0)
	req := httptest.NewRequest(http.MethodGet, "/v1/datatypes", nil)
	req.Header.Set(HeaderRequestID, "abc-123")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(HeaderRequestID))
}

func TestRequestIDIsGenerated(t *testing.T) {
	e := newTestEcho(0)
	first := do(t, e, http.MethodGet, "/v1/datatypes", nil).Header().Get(HeaderRequestID)
	second := do(t, e, http.MethodGet, "/v1/datatypes", nil).Header().Get(HeaderRequestID)

	_, err := uuid.Parse(first)
	require.NoError(t, err, first)
	assert.NotEqual(t, first, second)
}

func TestRoundTripEveryFixture(t *testing.T) {
	e := newTestEcho(0)
	for _, name := range synth.NewGenerator(synth.Options{}).Names() {
		t.Run(name, func(t *testing.T) {
			body := encodedFixture(t, name)
			rec := do(t, e, http.MethodPost, "/v1/roundtrip", body)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var resp RoundTripResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.True(t, resp.Report.Identical(), "%+v", resp.Report)
			assert.True(t, resp.BytesIdentical)
			assert.Equal(t, []int{5, 4, 3}, resp.Shape)
			assert.Equal(t, len(body), resp.InputBytes)
			assert.Equal(t, len(body), resp.Bytes)
			assert.Nil(t, resp.Fidelity)
		})
	}
}

func TestRoundTripIgnoresTrailingBytes(t *testing.T) {
	e := newTestEcho(0)
	body := append(encodedFixture(t, "int16"), 0xde, 0xad)
	rec := do(t, e, http.MethodPost, "/v1/roundtrip", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp RoundTripResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Report.Identical())
	assert.False(t, resp.BytesIdentical)
	assert.Equal(t, len(body)-2, resp.Bytes)
}

func TestInspect(t *testing.T) {
	e := newTestEcho(0)
	rec := do(t, e, http.MethodPost, "/v1/inspect", encodedFixture(t, "complex64"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var in report.Inspection
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &in))
	assert.Equal(t, "complex64", in.Header.Datatype)
	assert.Equal(t, 60, in.Header.Voxels)
	assert.Len(t, in.Summary.Channels, 2)
}

func TestCodecErrors(t *testing.T) {
	valid := encodedFixture(t, "gray16")

	badMagic := bytes.Clone(valid)
	copy(badMagic[344:], "ni1\x00")

	badCode := bytes.Clone(valid)
	badCode[70], badCode[71] = 0x10, 0x00 // datatype 16 with bitpix 16

	tests := []struct {
		name string
		body []byte
		kind nifti.ErrorKind
	}{
		{"empty", nil, nifti.KindTruncatedData},
		{"bad magic", badMagic, nifti.KindBadMagic},
		{"bitpix mismatch", badCode, nifti.KindUnsupportedDatatype},
		{"truncated", valid[:len(valid)-1], nifti.KindTruncatedData},
	}

	e := newTestEcho(0)
	for _, path := range []string{"/v1/inspect", "/v1/roundtrip"} {
		for _, tt := range tests {
			t.Run(path+"/"+tt.name, func(t *testing.T) {
				rec := do(t, e, http.MethodPost, path, tt.body)
				require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

				var resp errorResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
				assert.Equal(t, tt.kind, resp.Error.Kind)
				assert.Equal(t, report.Message(tt.kind), resp.Error.Message)
			})
		}
	}
}

func TestBodyLimit(t *testing.T) {
	e := newTestEcho(400)
	rec := do(t, e, http.MethodPost, "/v1/roundtrip", encodedFixture(t, "float64"))
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code, rec.Body.String())

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error.Message, "400 bytes")
}
