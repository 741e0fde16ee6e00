package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/eicr/core"
	"github.com/trezcool/eicr/core/user"
)

const ctxObjectKey = "object"

var (
	errUsrNotFoundInCtx  = errors.New("user object not found in echo.Context")
	errNoPermsToSetRoles = "not enough rights to set these roles"

	passwordResetSent = "If the email address supplied is associated with an active account on this system, " +
		"an email will arrive in your inbox shortly with instructions to reset your password."
)

type userApi struct {
	svc      user.ServiceInterface
	conf     *core.Config
	validate *validator.Validate
}

func registerUserAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc user.ServiceInterface,
	conf *core.Config,
	validate *validator.Validate,
) {
	api := userApi{svc: svc, conf: conf, validate: validate}
	ug := g.Group("/users")

	// TODO: rate limit `/login`, `/password-reset` & `/password-reset-confirm`
	ug.POST("/login", api.login)
	ug.POST("/password-reset", api.requestPasswordReset)
	ug.POST("/password-reset-confirm", api.confirmPasswordReset)

	ag := ug.Group("", jwt)
	ag.POST("/token-refresh", api.refreshToken)
	ag.GET("/me", api.me)
	ag.GET("/roles", api.roles, adminMiddleware())
	ag.POST("/register", api.create, adminMiddleware())
	ag.GET("", api.query, adminMiddleware())
	ag.DELETE("", api.destroyMultiple, adminMiddleware())

	dg := ag.Group("/:id", selfOrAdminMiddleware(api.svc))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy, adminMiddleware())
}

// canAssignRoles refuses roles ranking above the actor's own.
func canAssignRoles(actor user.User, roles []string) error {
	if user.MaxRolePriority(roles) > user.MaxRolePriority(actor.Roles) {
		return core.NewValidationError(nil, core.FieldError{Field: "roles", Error: errNoPermsToSetRoles})
	}
	return nil
}

func getObjectUser(ctx echo.Context) (user.User, error) {
	usr, ok := ctx.Get(ctxObjectKey).(user.User)
	if !ok {
		return user.User{}, errors.Wrap(errUsrNotFoundInCtx, "retrieving object from context")
	}
	return usr, nil
}

func (api *userApi) login(ctx echo.Context) error {
	var req LoginRequest
	if err := ctx.Bind(&req); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := req.Validate(api.validate); err != nil {
		return err
	}

	claims, err := authenticate(ctx.Request().Context(), api.conf, req.Username, req.Password, api.svc)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}
	token, err := GenerateToken(api.conf, claims)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *userApi) refreshToken(ctx echo.Context) error {
	token, err := refreshToken(ctx, api.conf, api.svc)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

// me returns the authenticated user; the web app reads it to show the inspector's name and roles.
func (api *userApi) me(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) requestPasswordReset(ctx echo.Context) error {
	var req PasswordResetRequest
	if err := ctx.Bind(&req); err != nil {
		return errors.Wrap(err, "binding to PasswordResetRequest")
	}
	if err := req.Validate(api.validate); err != nil {
		return err
	}

	// unknown emails answer the same as known ones
	if err := api.svc.RequestPasswordReset(ctx.Request().Context(), req.Email); err != nil && errors.Cause(err) != user.ErrNotFound {
		ctx.Logger().Errorf("%+v", errors.Wrap(err, "requesting password reset"))
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: passwordResetSent})
}

func (api *userApi) confirmPasswordReset(ctx echo.Context) error {
	var req user.ResetUserPassword
	if err := ctx.Bind(&req); err != nil {
		return errors.Wrap(err, "binding to ResetUserPassword")
	}
	if err := req.Validate(api.validate); err != nil {
		return err
	}
	if err := api.svc.ResetPassword(ctx.Request().Context(), req); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Password has been reset with the new password."})
}

func (api *userApi) roles(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, user.Roles)
}

func (api *userApi) create(ctx echo.Context) error {
	var nu user.NewUser
	if err := ctx.Bind(&nu); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	rctx := ctx.Request().Context()
	if err := nu.Validate(rctx, api.validate, api.svc); err != nil {
		return err
	}

	actor, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err = canAssignRoles(actor, nu.Roles); err != nil {
		return err
	}

	usr, err := api.svc.Create(rctx, nu)
	if err != nil {
		return errors.Wrap(err, "creating user")
	}
	return ctx.JSON(http.StatusCreated, usr)
}

func (api *userApi) query(ctx echo.Context) error {
	var filter user.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []user.User{})
	}
	filter.Clean()
	var ordering Ordering
	ordering.Bind(ctx, user.OrderingFields)

	users, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	if users == nil {
		users = []user.User{}
	}
	return ctx.JSON(http.StatusOK, users)
}

func (api *userApi) retrieve(ctx echo.Context) error {
	usr, err := getObjectUser(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) update(ctx echo.Context) error {
	usr, err := getObjectUser(ctx)
	if err != nil {
		return err
	}
	var uu user.UpdateUser
	if err = ctx.Bind(&uu); err != nil {
		return errors.Wrap(err, "binding to UpdateUser")
	}

	actor, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	// account fields are admin-managed: inspectors may only edit their name and password
	adminOnly := uu.IsActive != nil || uu.Roles != nil || uu.Username != "" || uu.Email != ""
	if adminOnly && !actor.IsAdmin() {
		return errHttpForbidden
	}

	rctx := ctx.Request().Context()
	if err = uu.Validate(rctx, usr, api.validate, api.svc); err != nil {
		return err
	}
	if err = canAssignRoles(actor, uu.Roles); err != nil {
		return err
	}

	if usr, err = api.svc.Update(rctx, usr, uu); err != nil {
		return errors.Wrap(err, "updating user")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) destroy(ctx echo.Context) error {
	usr, err := getObjectUser(ctx)
	if err != nil {
		return err
	}
	return api.delete(ctx, usr.ID)
}

func (api *userApi) destroyMultiple(ctx echo.Context) error {
	var req DestroyMultipleRequest
	if err := ctx.Bind(&req); err != nil {
		return errors.Wrap(err, "binding to DestroyMultipleRequest")
	}
	if len(req.IDs) == 0 {
		return ctx.NoContent(http.StatusNoContent)
	}
	return api.delete(ctx, req.IDs...)
}

// delete removes users; nobody can delete their own account.
// Their inspections stay, unassigned.
func (api *userApi) delete(ctx echo.Context, ids ...string) error {
	actor, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	for _, id := range ids {
		if id == actor.ID {
			return errHttpForbidden
		}
	}
	if err = api.svc.Delete(ctx.Request().Context(), ids...); err != nil {
		return errors.Wrap(err, "deleting users")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// selfOrAdminMiddleware loads the `:id` user for themselves or an admin; anyone else gets a 404.
func selfOrAdminMiddleware(svc user.ServiceInterface) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			actor, err := getContextUser(ctx, svc)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			id := ctx.Param("id")
			if id != actor.ID && !actor.IsAdmin() {
				return errHttpNotFound
			}

			usr, err := svc.GetByID(ctx.Request().Context(), id)
			switch {
			case errors.Cause(err) == user.ErrNotFound:
				return errHttpNotFound
			case err != nil:
				return errors.Wrap(err, "finding user by ID")
			}
			ctx.Set(ctxObjectKey, usr)
			return next(ctx)
		}
	}
}

type (
	LoginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string `json:"token"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}

	DestroyMultipleRequest struct {
		IDs []string `query:"id"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Username = core.CleanString(lr.Username, true /* lower */)
	return validate.Struct(lr)
}

func (pr *PasswordResetRequest) Validate(validate *validator.Validate) error {
	pr.Email = core.CleanString(pr.Email, true /* lower */)
	return validate.Struct(pr)
}
