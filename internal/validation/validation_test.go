package validation

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func strPtr(s string) *string { return &s }

func TestValidate(t *testing.T) {
	errors := Validate(
		MaxLength("title", strPtr("Полный"), 10),
		MaxLength("subtitle", nil, 1),
		NoNullBytes("name", strPtr("M")),
	)
	if len(errors) != 0 {
		t.Errorf("Expected no errors, got %v", errors)
	}

	errors = Validate(
		MaxLength("title", strPtr("abcdef"), 5),
		NoNullBytes("name", strPtr("M\x00")),
	)
	if len(errors) != 2 {
		t.Fatalf("Expected 2 errors, got %d", len(errors))
	}
	if errors.Error() != "title: exceeds maximum length" {
		t.Errorf("Error() = %q", errors.Error())
	}
}

func TestMaxLengthCountsCharacters(t *testing.T) {
	// 6 Cyrillic letters are 12 bytes
	if err := MaxLength("title", strPtr("Тариф1"), 6)(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidationErrorsEmpty(t *testing.T) {
	var errs ValidationErrors
	if errs.Error() != "validation failed" {
		t.Errorf("Error() = %q", errs.Error())
	}
}

func TestRequestSizeMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(RequestSizeMiddleware(16))
	router.POST("/echo", func(c *gin.Context) {
		var body map[string]string
		if err := c.ShouldBindJSON(&body); err != nil {
			c.Status(http.StatusBadRequest)
			return
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("POST", "/echo", strings.NewReader(`{"a":"b"}`)))
	if w.Code != http.StatusOK {
		t.Errorf("small body status = %d", w.Code)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("POST", "/echo", strings.NewReader(`{"title":"`+strings.Repeat("x", 64)+`"}`)))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("large body status = %d, want 413", w.Code)
	}
}

func TestAbort(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	Abort(c, ValidationErrors{{Field: "price", Message: "exceeds maximum length"}})

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"validation_failed"`) {
		t.Errorf("body = %s", w.Body.String())
	}
}
