package rpcerr

import "testing"

func TestErrorMessagesIncludeCode(t *testing.T) {
	cases := []struct {
		err  *Error
		code Code
	}{
		{ParseError("bad json"), CodeParseError},
		{MethodNotFound("frobnicate"), CodeMethodNotFound},
		{InvalidParams("bad opacity", nil), CodeInvalidParams},
		{Internal("capability unavailable"), CodeInternal},
		{EntityNotFound("surface", 7), CodeEntityNotFound},
	}
	for _, c := range cases {
		if c.err.Code != c.code {
			t.Errorf("Code = %d, want %d", c.err.Code, c.code)
		}
		if c.err.Error() == "" {
			t.Error("Error() returned an empty string")
		}
	}
}

func TestInvalidParamsCarriesData(t *testing.T) {
	err := InvalidParams("bad param", map[string]string{"param": "x"})
	if err.Data == nil {
		t.Fatal("expected Data to be set")
	}
}
