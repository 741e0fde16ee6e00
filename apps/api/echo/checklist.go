package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/eicr/core/inspection"
)

type checklistApi struct {
	svc inspection.ServiceInterface
}

func registerChecklistAPI(g *echo.Group, svc inspection.ServiceInterface) {
	api := checklistApi{svc: svc}
	g.GET("/checklist", api.retrieve)
}

// retrieve returns the schedule of inspections every inspection is checked against.
func (api *checklistApi) retrieve(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, api.svc.Catalogue().Document())
}
