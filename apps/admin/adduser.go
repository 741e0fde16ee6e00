package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/eicr/core"
	"github.com/trezcool/eicr/core/user"
)

type newUserArgs struct {
	name, uname, email, pwd string
	admin, supervisor       bool
}

// addUser updates or creates an active user.User. New users without a role flag are inspectors.
func (cli *commandLine) addUser(args newUserArgs) error {
	ctx := context.Background()
	uname := core.CleanString(args.uname, true /* lower */)
	email := core.CleanString(args.email, true /* lower */)

	lookup := uname
	if lookup == "" {
		lookup = email
	}
	now := time.Now().UTC()
	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: lookup})
	exists := err == nil
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return err
		}
		usr = user.User{
			Username:  uname,
			Email:     email,
			Roles:     []string{user.RoleInspector},
			CreatedAt: now,
		}
	}

	if name := core.CleanString(args.name); name != "" {
		usr.Name = name
	} else if usr.Name == "" {
		usr.Name = uname
	}
	switch {
	case args.admin:
		usr.Roles = user.AllRoles
	case args.supervisor:
		usr.Roles = user.SupervisorRoles
	}
	usr.IsActive = true
	usr.UpdatedAt = now
	if err = usr.SetPassword(args.pwd); err != nil {
		return err
	}

	if exists {
		_, err = cli.usrRepo.UpdateUser(ctx, usr)
	} else {
		_, err = cli.usrRepo.CreateUser(ctx, usr)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "user %q saved with roles %v\n", lookup, usr.Roles)
	return nil
}
