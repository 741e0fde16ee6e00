package user

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/eicr/core"
)

type uniqueFunc func(ctx context.Context, uname, email string, exclUsers ...User) error

func (f uniqueFunc) CheckUniqueness(ctx context.Context, uname, email string, exclUsers ...User) error {
	return f(ctx, uname, email, exclUsers...)
}

func newValidator() *validator.Validate {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)
	return validate
}

func fieldErrors(t *testing.T, err error) map[string]string {
	t.Helper()
	vErrs, ok := err.(validator.ValidationErrors)
	require.True(t, ok, "want validator.ValidationErrors, got %T: %v", err, err)
	fldErrs := make(map[string]string, len(vErrs))
	for _, vErr := range vErrs {
		fldErrs[vErr.Field()] = vErr.Tag()
	}
	return fldErrs
}

func TestNewUser_Validate(t *testing.T) {
	validate := newValidator()
	unique := uniqueFunc(func(context.Context, string, string, ...User) error { return nil })

	valid := func() NewUser {
		return NewUser{
			Name:            "Jane Sparks",
			Username:        "jsparks",
			Email:           "jane@test.com",
			Password:        "Volt&Amp3re",
			PasswordConfirm: "Volt&Amp3re",
			Roles:           []string{RoleInspector},
		}
	}
	withPwd := func(pwd string) NewUser {
		nu := valid()
		nu.Password, nu.PasswordConfirm = pwd, pwd
		return nu
	}

	tests := []struct {
		name    string
		nu      NewUser
		wantErr map[string]string
	}{
		{name: "valid", nu: valid()},
		{
			name:    "no username nor email",
			nu:      func() NewUser { nu := valid(); nu.Username, nu.Email = "", ""; return nu }(),
			wantErr: map[string]string{"username": usernameOrEmailTag, "email": usernameOrEmailTag},
		},
		{
			name:    "unknown role",
			nu:      func() NewUser { nu := valid(); nu.Roles = []string{RoleInspector, "student:"}; return nu }(),
			wantErr: map[string]string{"roles": allRolesTag},
		},
		{
			name:    "password mismatch",
			nu:      func() NewUser { nu := valid(); nu.PasswordConfirm = "Volt&Amp3rf"; return nu }(),
			wantErr: map[string]string{"password_confirm": "eqfield"},
		},
		{name: "too short", nu: withPwd("V&1a"), wantErr: map[string]string{"password": pwdMinLenTag}},
		{name: "whitespace", nu: withPwd("Volt Amp3re!"), wantErr: map[string]string{"password": pwdNoSpaceTag}},
		{name: "all numeric", nu: withPwd("1234567890"), wantErr: map[string]string{"password": pwdNotAllNumTag}},
		{name: "not complex", nu: withPwd("voltampere1"), wantErr: map[string]string{"password": pwdComplexityTag}},
		{name: "similar to username", nu: withPwd("Jsparks1!"), wantErr: map[string]string{"password": pwdAttrSimTag}},
		{name: "common", nu: withPwd("P@ssw0rd!"), wantErr: map[string]string{"password": pwdNoCommonTag}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.nu.Validate(context.Background(), validate, unique)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.wantErr, fieldErrors(t, err))
		})
	}
}

func TestNewUser_Validate_cleans(t *testing.T) {
	validate := newValidator()
	var gotUname, gotEmail string
	unique := uniqueFunc(func(_ context.Context, uname, email string, _ ...User) error {
		gotUname, gotEmail = uname, email
		return ErrEmailExists
	})

	nu := NewUser{
		Name:            "  Jane Sparks ",
		Username:        " JSparks",
		Email:           "JANE@test.com ",
		Password:        "Volt&Amp3re",
		PasswordConfirm: "Volt&Amp3re",
	}
	err := nu.Validate(context.Background(), validate, unique)
	assert.Equal(t, ErrEmailExists, err)
	assert.Equal(t, "Jane Sparks", nu.Name)
	assert.Equal(t, "jsparks", gotUname)
	assert.Equal(t, "jane@test.com", gotEmail)
}

func TestUpdateUser_Validate(t *testing.T) {
	validate := newValidator()
	orig := User{ID: "u1", Name: "Jane", Username: "jsparks", Email: "jane@test.com"}
	var excluded []User
	unique := uniqueFunc(func(_ context.Context, _, _ string, exclUsers ...User) error {
		excluded = exclUsers
		return nil
	})

	uu := UpdateUser{Name: " "}
	require.NoError(t, uu.Validate(context.Background(), orig, validate, unique))
	assert.Equal(t, "Jane", uu.Name)
	assert.Equal(t, "jsparks", uu.Username)
	assert.Equal(t, "jane@test.com", uu.Email)
	assert.Equal(t, []User{orig}, excluded)

	uu = UpdateUser{Password: "Volt&Amp3re"}
	err := uu.Validate(context.Background(), orig, validate, unique)
	assert.Equal(t, map[string]string{"password_confirm": "required_with"}, fieldErrors(t, err))
}

func TestRoles(t *testing.T) {
	assert.ElementsMatch(t, []string{RoleAdmin, RoleAdminOwner, RoleSupervisor, RoleInspector}, AllRoles)
	assert.Equal(t, 30, MaxRolePriority([]string{RoleInspector, RoleAdminOwner}))
	assert.Equal(t, 0, MaxRolePriority(nil))

	usr := User{Roles: []string{RoleAdminOwner, RoleSupervisor}}
	assert.True(t, usr.IsAdmin())
	assert.True(t, usr.IsSupervisor())
	assert.False(t, usr.IsInspector())
}
