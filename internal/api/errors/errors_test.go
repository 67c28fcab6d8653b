package errors

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// TestWriteError проверяет формат тела и заголовки ответа ошибки.
func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, http.StatusConflict, CodeConflict, "Идентификатор занят")

	if rec.Code != http.StatusConflict {
		t.Errorf("ожидался статус 409, получен %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: ожидалось application/json, получено %q", ct)
	}

	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("ошибка десериализации: %v", err)
	}
	if body.Error.Code != CodeConflict {
		t.Errorf("code: ожидалось %q, получено %q", CodeConflict, body.Error.Code)
	}
	if body.Error.Message != "Идентификатор занят" {
		t.Errorf("message: ожидалось %q, получено %q", "Идентификатор занят", body.Error.Message)
	}
}

// TestConstructors проверяет статус-коды конструкторов.
func TestConstructors(t *testing.T) {
	cases := []struct {
		name string
		fn   func(http.ResponseWriter, string)
		want int
	}{
		{"ValidationError", ValidationError, http.StatusBadRequest},
		{"Unauthorized", Unauthorized, http.StatusUnauthorized},
		{"Conflict", Conflict, http.StatusConflict},
		{"NotFound", NotFound, http.StatusNotFound},
		{"FileMissing", FileMissing, http.StatusNotFound},
		{"FileTooLarge", FileTooLarge, http.StatusRequestEntityTooLarge},
		{"InternalError", InternalError, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		rec := httptest.NewRecorder()
		tc.fn(rec, "сообщение")
		if rec.Code != tc.want {
			t.Errorf("%s: ожидался статус %d, получен %d", tc.name, tc.want, rec.Code)
		}
	}
}
