package echoapi

import (
	"net/http"
	"net/url"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/eicr/core/inspection"
	"github.com/trezcool/eicr/core/user"
)

var errInspNotFoundInCtx = errors.New("inspection object not found in echo.Context")

type inspectionApi struct {
	svc      inspection.ServiceInterface
	usrSvc   user.ServiceInterface
	validate *validator.Validate
}

func registerInspectionAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc inspection.ServiceInterface,
	usrSvc user.ServiceInterface,
	validate *validator.Validate,
) {
	api := inspectionApi{
		svc:      svc,
		usrSvc:   usrSvc,
		validate: validate,
	}

	ig := g.Group("/inspections", jwt)
	ig.POST("", api.create, inspectorMiddleware())
	ig.GET("", api.query)

	// detail endpoints
	dg := ig.Group("/:id", inspectionMiddleware(svc, usrSvc))
	dg.GET("", api.retrieve)
	dg.DELETE("", api.destroy, adminMiddleware())
	dg.GET("/stats", api.stats)
	dg.POST("/complete", api.complete)

	// checklist edits
	dg.PUT("/items/:item/outcome", api.changeOutcome)
	dg.PUT("/items/:item/notes", api.updateNotes)
	dg.GET("/items/:item/observations", api.viewObservations)
	dg.POST("/sections/:section/bulk", api.bulkAction)
}

// Handlers

func (api *inspectionApi) create(ctx echo.Context) error {
	var data inspection.NewInspection
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewInspection")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	insp, err := api.svc.Create(ctx.Request().Context(), data, ctxUsr.ID)
	if err != nil {
		return errors.Wrap(err, "creating inspection")
	}
	return ctx.JSON(http.StatusCreated, insp)
}

// query lists inspections without their records. Inspectors only see their own.
func (api *inspectionApi) query(ctx echo.Context) error {
	filter := new(inspection.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []inspection.Inspection{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx, inspection.OrderingFields)

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if !canSeeAll(ctxUsr) {
		filter.InspectorID = ctxUsr.ID
	}

	insps, err := api.svc.Query(ctx.Request().Context(), *filter, ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying inspections")
	}
	if insps == nil {
		insps = []inspection.Inspection{}
	}
	return ctx.JSON(http.StatusOK, insps)
}

func (api *inspectionApi) retrieve(ctx echo.Context) error {
	insp, err := getContextInspection(ctx)
	if err != nil {
		return errors.Wrap(err, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, insp)
}

func (api *inspectionApi) destroy(ctx echo.Context) error {
	insp, err := getContextInspection(ctx)
	if err != nil {
		return errors.Wrap(err, "retrieving object from context")
	}
	if err = api.svc.Delete(ctx.Request().Context(), insp.ID); err != nil {
		return errors.Wrap(err, "deleting inspection")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *inspectionApi) stats(ctx echo.Context) error {
	insp, err := getContextInspection(ctx)
	if err != nil {
		return errors.Wrap(err, "retrieving object from context")
	}
	rctx := ctx.Request().Context()

	stats, err := api.svc.Stats(rctx, insp.ID)
	if err != nil {
		return errors.Wrap(err, "computing stats")
	}
	suggested, err := api.svc.SuggestedAssessment(rctx, insp.ID)
	if err != nil {
		return errors.Wrap(err, "suggesting assessment")
	}
	return ctx.JSON(http.StatusOK, StatsResponse{Stats: stats, SuggestedAssessment: suggested})
}

func (api *inspectionApi) complete(ctx echo.Context) error {
	insp, err := getContextInspection(ctx)
	if err != nil {
		return errors.Wrap(err, "retrieving object from context")
	}

	var data inspection.Completion
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Completion")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	insp, err = api.svc.Complete(ctx.Request().Context(), insp.ID, inspection.Assessment(data.Assessment))
	if err != nil {
		return errors.Wrap(err, "completing inspection")
	}
	return ctx.JSON(http.StatusOK, insp)
}

// changeOutcome toggles the outcome of one item: sending its current outcome clears it.
func (api *inspectionApi) changeOutcome(ctx echo.Context) error {
	insp, err := getContextInspection(ctx)
	if err != nil {
		return errors.Wrap(err, "retrieving object from context")
	}

	var data inspection.OutcomeChange
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to OutcomeChange")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	r, err := api.svc.ChangeOutcome(ctx.Request().Context(), insp.ID, ctx.Param("item"), inspection.Outcome(data.Outcome))
	if err != nil {
		return errors.Wrap(err, "changing outcome")
	}
	return ctx.JSON(http.StatusOK, r)
}

func (api *inspectionApi) updateNotes(ctx echo.Context) error {
	insp, err := getContextInspection(ctx)
	if err != nil {
		return errors.Wrap(err, "retrieving object from context")
	}

	var data inspection.NotesChange
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NotesChange")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	r, err := api.svc.UpdateNotes(ctx.Request().Context(), insp.ID, ctx.Param("item"), data.Notes)
	if err != nil {
		return errors.Wrap(err, "updating notes")
	}
	return ctx.JSON(http.StatusOK, r)
}

// viewObservations redirects to the observations of a C1, C2 or C3 item.
func (api *inspectionApi) viewObservations(ctx echo.Context) error {
	insp, err := getContextInspection(ctx)
	if err != nil {
		return errors.Wrap(err, "retrieving object from context")
	}
	itemID := ctx.Param("item")

	navigate, err := api.svc.ViewObservations(ctx.Request().Context(), insp.ID, itemID)
	if err != nil {
		return errors.Wrap(err, "viewing observations")
	}
	if !navigate {
		return errHttpNotFound
	}
	v := url.Values{"item": []string{itemID}}
	return ctx.Redirect(http.StatusSeeOther, "/v1/inspections/"+url.PathEscape(insp.ID)+"/observations?"+v.Encode())
}

func (api *inspectionApi) bulkAction(ctx echo.Context) error {
	insp, err := getContextInspection(ctx)
	if err != nil {
		return errors.Wrap(err, "retrieving object from context")
	}

	var data inspection.SectionAction
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SectionAction")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	records, err := api.svc.BulkAction(ctx.Request().Context(), insp.ID, ctx.Param("section"), inspection.BulkAction(data.Action))
	if err != nil {
		return errors.Wrap(err, "applying bulk action")
	}
	return ctx.JSON(http.StatusOK, records)
}

type StatsResponse struct {
	inspection.Stats
	SuggestedAssessment inspection.Assessment `json:"suggested_assessment"`
}
