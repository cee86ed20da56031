package transport

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/viesti/telia-gateway/internal/domain"
	"go.uber.org/zap"
)

func TestErrorHandlerStatusMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantHidden bool
	}{
		{"fiber error", fiber.NewError(fiber.StatusTeapot, "teapot"), fiber.StatusTeapot, false},
		{"validation", fmt.Errorf("%w: bad input", domain.ErrValidation), fiber.StatusBadRequest, false},
		{"not found", domain.ErrNotFound, fiber.StatusNotFound, false},
		{"forbidden", domain.ErrForbidden, fiber.StatusForbidden, false},
		{"unknown", fmt.Errorf("database exploded"), fiber.StatusInternalServerError, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(zap.NewNop())})
			app.Get("/boom", func(c *fiber.Ctx) error {
				return tt.err
			})

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/boom", nil), -1)
			if err != nil {
				t.Fatalf("app.Test() error = %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}

			body, _ := io.ReadAll(resp.Body)
			var payload map[string]string
			if err := json.Unmarshal(body, &payload); err != nil {
				t.Fatalf("body %q is not JSON: %v", body, err)
			}
			if tt.wantHidden && payload["error"] != "internal server error" {
				t.Fatalf("error = %q, internals must not leak", payload["error"])
			}
		})
	}
}
