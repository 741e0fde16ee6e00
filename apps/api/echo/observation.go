package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/eicr/core/inspection"
	"github.com/trezcool/eicr/core/observation"
	"github.com/trezcool/eicr/core/user"
)

var errObsNotFoundInCtx = errors.New("observation object not found in echo.Context")

type observationApi struct {
	svc      observation.ServiceInterface
	validate *validator.Validate
}

func registerObservationAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc observation.ServiceInterface,
	inspSvc inspection.ServiceInterface,
	usrSvc user.ServiceInterface,
	validate *validator.Validate,
) {
	api := observationApi{
		svc:      svc,
		validate: validate,
	}

	og := g.Group("/inspections/:id/observations", jwt, inspectionMiddleware(inspSvc, usrSvc))
	og.GET("", api.query)
	og.POST("", api.create)

	dg := og.Group("/:obs", api.observationMiddleware)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy)
}

// observationMiddleware loads the `:obs` observation of the context inspection.
func (api *observationApi) observationMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		insp, err := getContextInspection(ctx)
		if err != nil {
			return errors.Wrap(err, "retrieving inspection from context")
		}
		obs, err := api.svc.Get(ctx.Request().Context(), insp.ID, ctx.Param("obs"))
		if err != nil {
			if errors.Cause(err) == observation.ErrNotFound {
				return errHttpNotFound
			}
			return errors.Wrap(err, "finding observation by ID")
		}
		ctx.Set(ctxObjectKey, obs)
		return next(ctx)
	}
}

// Handlers

func (api *observationApi) query(ctx echo.Context) error {
	insp, err := getContextInspection(ctx)
	if err != nil {
		return errors.Wrap(err, "retrieving inspection from context")
	}

	filter := new(observation.QueryFilter)
	if err = ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []observation.Observation{})
	}
	filter.Clean()
	filter.InspectionID = insp.ID

	obs, err := api.svc.Query(ctx.Request().Context(), *filter)
	if err != nil {
		return errors.Wrap(err, "querying observations")
	}
	if obs == nil {
		obs = []observation.Observation{}
	}
	return ctx.JSON(http.StatusOK, obs)
}

func (api *observationApi) create(ctx echo.Context) error {
	insp, err := getContextInspection(ctx)
	if err != nil {
		return errors.Wrap(err, "retrieving inspection from context")
	}

	var data observation.NewObservation
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewObservation")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	obs, err := api.svc.Create(ctx.Request().Context(), insp.ID, data)
	if err != nil {
		return errors.Wrap(err, "creating observation")
	}
	return ctx.JSON(http.StatusCreated, obs)
}

func (api *observationApi) update(ctx echo.Context) error {
	obs, ok := ctx.Get(ctxObjectKey).(observation.Observation)
	if !ok {
		return errors.Wrap(errObsNotFoundInCtx, "retrieving object from context")
	}

	var data observation.UpdateObservation
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateObservation")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	obs, err := api.svc.Update(ctx.Request().Context(), obs, data)
	if err != nil {
		return errors.Wrap(err, "updating observation")
	}
	return ctx.JSON(http.StatusOK, obs)
}

func (api *observationApi) destroy(ctx echo.Context) error {
	obs, ok := ctx.Get(ctxObjectKey).(observation.Observation)
	if !ok {
		return errors.Wrap(errObsNotFoundInCtx, "retrieving object from context")
	}
	if err := api.svc.Delete(ctx.Request().Context(), obs.ID); err != nil {
		return errors.Wrap(err, "deleting observation")
	}
	return ctx.NoContent(http.StatusNoContent)
}
