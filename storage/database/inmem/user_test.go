package inmemdb_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/eicr/core"
	"github.com/trezcool/eicr/core/user"
	inmemdb "github.com/trezcool/eicr/storage/database/inmem"
	"github.com/trezcool/eicr/tests"
)

func ids(users []user.User) []string {
	res := make([]string, 0, len(users))
	for _, u := range users {
		res = append(res, u.ID)
	}
	return res
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := inmemdb.NewUserRepository(inmemdb.NewDB())

	t1 := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	ada := testutil.CreateUser(t, repo, "Ada Inspector", "ada", "ada@test.com", "s3cret!", []string{user.RoleInspector}, true, t1)
	sam := testutil.CreateUser(t, repo, "Sam Supervisor", "sam", "sam@test.com", "", []string{user.RoleSupervisor}, true, t1.Add(time.Hour))
	off := testutil.CreateUser(t, repo, "Off Duty", "off", "off@test.com", "", []string{user.RoleInspector}, false, t1.Add(2*time.Hour))

	t.Run("get", func(t *testing.T) {
		tests := []struct {
			name    string
			filter  user.GetFilter
			wantID  string
			wantErr error
		}{
			{name: "by id", filter: user.GetFilter{ID: ada.ID}, wantID: ada.ID},
			{name: "by username", filter: user.GetFilter{Username: "sam"}, wantID: sam.ID},
			{name: "by email", filter: user.GetFilter{Email: "off@test.com"}, wantID: off.ID},
			{name: "username or email", filter: user.GetFilter{UsernameOrEmail: "ada@test.com"}, wantID: ada.ID},
			{name: "unknown id", filter: user.GetFilter{ID: "nope"}, wantErr: user.ErrNotFound},
			{name: "empty filter", filter: user.GetFilter{}, wantErr: user.ErrNotFound},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got, err := repo.GetUser(ctx, tt.filter)
				if tt.wantErr != nil {
					assert.Equal(t, tt.wantErr, err)
					return
				}
				require.NoError(t, err)
				assert.Equal(t, tt.wantID, got.ID)
			})
		}
	})

	t.Run("returned users are copies", func(t *testing.T) {
		got, err := repo.GetUser(ctx, user.GetFilter{ID: ada.ID})
		require.NoError(t, err)
		got.Roles[0] = user.RoleAdminOwner
		again, err := repo.GetUser(ctx, user.GetFilter{ID: ada.ID})
		require.NoError(t, err)
		assert.Equal(t, []string{user.RoleInspector}, again.Roles)
	})

	t.Run("uniqueness", func(t *testing.T) {
		assert.Equal(t, user.ErrUsernameExists, repo.CheckUsernameUniqueness(ctx, "ada", "new@test.com"))
		assert.Equal(t, user.ErrEmailExists, repo.CheckUsernameUniqueness(ctx, "new", "sam@test.com"))
		assert.NoError(t, repo.CheckUsernameUniqueness(ctx, "ada", "ada@test.com", ada))
	})

	t.Run("query", func(t *testing.T) {
		active := true
		tests := []struct {
			name     string
			filter   user.QueryFilter
			ordering []core.DBOrdering
			want     []string
		}{
			{name: "newest first", want: []string{off.ID, sam.ID, ada.ID}},
			{name: "by name", ordering: []core.DBOrdering{{Field: "name", Ascending: true}}, want: []string{ada.ID, off.ID, sam.ID}},
			{name: "search", filter: user.QueryFilter{Search: "SUPER"}, want: []string{sam.ID}},
			{name: "role prefix", filter: user.QueryFilter{Roles: []string{user.RoleInspector}}, want: []string{off.ID, ada.ID}},
			{name: "active", filter: user.QueryFilter{IsActive: &active}, want: []string{sam.ID, ada.ID}},
			{name: "created range", filter: user.QueryFilter{CreatedFrom: t1.Add(time.Minute), CreatedTo: t1.Add(time.Hour)}, want: []string{sam.ID}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got, err := repo.QueryUsers(ctx, tt.filter, tt.ordering...)
				require.NoError(t, err)
				assert.Equal(t, tt.want, ids(got))
			})
		}
	})

	t.Run("update and delete", func(t *testing.T) {
		usr := ada
		usr.Name = "Ada L."
		updated, err := repo.UpdateUser(ctx, usr)
		require.NoError(t, err)
		assert.Equal(t, "Ada L.", updated.Name)

		_, err = repo.UpdateUser(ctx, user.User{ID: "nope"})
		assert.Equal(t, user.ErrNotFound, err)

		require.NoError(t, repo.DeleteUsersByID(ctx, ada.ID, off.ID))
		left, err := repo.QueryUsers(ctx, user.QueryFilter{})
		require.NoError(t, err)
		assert.Equal(t, []string{sam.ID}, ids(left))
	})
}
