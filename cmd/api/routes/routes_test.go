package routes

import (
	"testing"

	"github.com/gridlens/inspector/cmd/api/handlers"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestRegisterRouteTable(t *testing.T) {
	e := echo.New()
	Register(e,
		handlers.NewPhotoHandler(nil, nil, nil),
		handlers.NewRunHandler(nil, nil),
	)

	registered := map[string]bool{}
	for _, r := range e.Routes() {
		registered[r.Method+" "+r.Path] = true
	}

	for _, route := range []string{
		"POST /photos/upload",
		"GET /photos",
		"GET /photos/:id",
		"GET /photos/:id/runs",
		"POST /photos/:id/run",
		"POST /photos/:id/feedback",
		"GET /runs/:id",
		"GET /runs/:id/feedback",
		"GET /runs/:id/overlay",
	} {
		assert.True(t, registered[route], route)
	}
}
