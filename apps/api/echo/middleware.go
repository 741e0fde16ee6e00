package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/eicr/core/inspection"
	"github.com/trezcool/eicr/core/user"
)

var ctxInspectionKey = "inspection"

func adminMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.IsAdmin && contextHasAnyRole(ctx, roles) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// inspectorMiddleware lets inspectors and admins through.
func inspectorMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.IsInspector || claims.IsAdmin {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// canSeeAll reports whether the user may access every inspection, not only their own.
func canSeeAll(usr user.User) bool {
	return usr.IsAdmin() || usr.IsSupervisor()
}

// inspectionMiddleware loads the `:id` inspection into the context.
// Inspectors only reach their own inspections; admins and supervisors reach all of them.
func inspectionMiddleware(svc inspection.ServiceInterface, usrSvc user.ServiceInterface) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			ctxUsr, err := getContextUser(ctx, usrSvc)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}

			insp, err := svc.Get(ctx.Request().Context(), ctx.Param("id"))
			if err != nil {
				if errors.Cause(err) == inspection.ErrNotFound {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding inspection by ID")
			}
			if insp.InspectorID != ctxUsr.ID && !canSeeAll(ctxUsr) {
				return errHttpNotFound
			}
			ctx.Set(ctxInspectionKey, insp)
			return next(ctx)
		}
	}
}

func getContextInspection(ctx echo.Context) (inspection.Inspection, error) {
	insp, ok := ctx.Get(ctxInspectionKey).(inspection.Inspection)
	if !ok {
		return inspection.Inspection{}, errInspNotFoundInCtx
	}
	return insp, nil
}
