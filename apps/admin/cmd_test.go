package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/eicr/core"
	"github.com/trezcool/eicr/core/inspection"
	"github.com/trezcool/eicr/core/observation"
	"github.com/trezcool/eicr/core/user"
	emailsvc "github.com/trezcool/eicr/services/email"
	sqlxrepos "github.com/trezcool/eicr/storage/database/sqlx"
	"github.com/trezcool/eicr/tests"
)

var usrRepo user.Repository

func setup(t *testing.T) (*commandLine, *bytes.Buffer) {
	conf := &core.Config{TestMode: true}
	logger := testutil.NewLogger()

	// set up DB & repos
	db := testutil.PrepareDB(t)
	usrRepo = sqlxrepos.NewUserRepository(db)

	cat := testutil.Catalogue(t)
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)
	obsSvc := observation.NewService(cat, sqlxrepos.NewObservationRepository(db), user.NewService(usrRepo, mailSvc, conf), mailSvc, logger, conf)
	inspSvc := inspection.NewService(cat, sqlxrepos.NewInspectionRepository(db), obsSvc, logger, conf)
	t.Cleanup(inspSvc.Close)

	// start CLI
	var out bytes.Buffer
	return &commandLine{
		db:      db,
		cat:     cat,
		usrRepo: usrRepo,
		inspSvc: inspSvc,
		out:     &out,
	}, &out
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func checkErr(t *testing.T, tt cliTest, err error) {
	t.Helper()
	switch {
	case tt.wantErr != nil:
		assert.ErrorIs(t, err, tt.wantErr)
	case tt.wantErrStr != "":
		assert.EqualError(t, err, tt.wantErrStr)
	default:
		assert.NoError(t, err)
	}
}

func mockPassword(pwd string) {
	readPasswordFunc = func(fd int) ([]byte, error) {
		return []byte(pwd), nil
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _ := setup(t)

	runMigrationFunc = func(db *sqlx.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "create", args: []string{"migrate", "create", "readings", "sql"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			checkErr(t, tt, cli.run(args))
		})
	}
}

func Test_commandLine_addUser(t *testing.T) {
	cli, _ := setup(t)
	ctx := context.Background()

	existing := testutil.CreateUser(t, usrRepo, "Awe", "awe", "awe@test.cd", "mdr", user.InspectorRoles, false)

	t.Run("usage", func(t *testing.T) {
		mockPassword("")
		tests := []cliTest{
			{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
			{name: "no password", args: []string{"adduser", "-username", "jd"}, wantErr: errHelp},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				checkErr(t, tt, cli.run(append([]string{"admin"}, tt.args...)))
			})
		}
	})

	tests := []struct {
		name      string
		args      []string
		lookup    string
		wantName  string
		wantRoles []string
	}{
		{
			name:      "new inspector",
			args:      []string{"-username", " JD ", "-email", "jd@test.cd"},
			lookup:    "jd",
			wantName:  "jd",
			wantRoles: user.InspectorRoles,
		},
		{
			name:      "new supervisor",
			args:      []string{"-username", "sup", "-email", "sup@test.cd", "-name", "Sue Pervisor", "-supervisor"},
			lookup:    "sup@test.cd",
			wantName:  "Sue Pervisor",
			wantRoles: user.SupervisorRoles,
		},
		{
			name:      "existing user made admin and activated",
			args:      []string{"-email", existing.Email, "-admin"},
			lookup:    existing.Username,
			wantName:  existing.Name,
			wantRoles: user.AllRoles,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockPassword("s3cret-pwd")
			require.NoError(t, cli.run(append([]string{"admin", "adduser"}, tt.args...)))

			usr, err := usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: tt.lookup})
			require.NoError(t, err)
			assert.True(t, usr.IsActive)
			assert.Equal(t, tt.wantName, usr.Name)
			assert.ElementsMatch(t, tt.wantRoles, usr.Roles)
			assert.NoError(t, usr.CheckPassword("s3cret-pwd"))
		})
	}

	usr, err := usrRepo.GetUser(ctx, user.GetFilter{ID: existing.ID})
	require.NoError(t, err)
	assert.Equal(t, existing.CreatedAt.Unix(), usr.CreatedAt.Unix())
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli, _ := setup(t)

	usr := testutil.CreateUser(t, usrRepo, "User", "awe", "awe@test.cd", "mdr", nil, true)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "-username", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-username", "lol"}, extra: extra{pwd: "lol"}, wantErr: user.ErrNotFound},
		{name: "reset with username", args: []string{"resetpassword", "-username", usr.Username}, extra: extra{pwd: "lol"}},
		{name: "reset with email", args: []string{"resetpassword", "-username", usr.Email}, extra: extra{pwd: "lmao"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		pwd := ""
		if extra, ok := tt.extra.(extra); ok {
			pwd = extra.pwd
		}
		mockPassword(pwd)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			checkErr(t, tt, err)
			if err != nil {
				return
			}
			refreshedUsr, err := usrRepo.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
			require.NoError(t, err)
			assert.NoError(t, refreshedUsr.CheckPassword(pwd))
		})
	}
}

func Test_commandLine_checklist(t *testing.T) {
	cli, out := setup(t)
	dir := t.TempDir()

	writeFile := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
		return path
	}
	valid := writeFile("valid.yaml", `
version: "2"
sections:
  - id: a
    number: "1"
    title: Alpha
    items:
      - {id: a1, number: "1.1", item: Cable, clause: "1"}
      - {id: a2, number: "1.2", item: Fuse, clause: "2"}
  - id: b
    number: "2"
    title: Beta
    items: []
`)
	dup := writeFile("dup.yaml", `
version: "2"
sections:
  - {id: a, number: "1", title: Alpha, items: [{id: x, number: "1.1", item: X, clause: "1"}]}
  - {id: b, number: "2", title: Beta, items: [{id: x, number: "2.1", item: X, clause: "1"}]}
`)

	tests := []struct {
		name       string
		args       []string
		wantErrStr string
		wantOut    []string
	}{
		{
			name:    "loaded catalogue",
			args:    []string{"checklist"},
			wantOut: []string{`Checklist "test"`, "  1. Intake (3 items)", "  2. Earthing (2 items)", "2 sections, 5 items"},
		},
		{
			name:    "valid file",
			args:    []string{"checklist", "-file", valid},
			wantOut: []string{`Checklist "2"`, "  1. Alpha (2 items)", "  2. Beta (0 items)", "2 sections, 2 items"},
		},
		{name: "duplicate item", args: []string{"checklist", "-file", dup}, wantErrStr: `item "x": duplicate id`},
		{name: "missing file", args: []string{"checklist", "-file", filepath.Join(dir, "nope.yaml")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out.Reset()
			err := cli.run(append([]string{"admin"}, tt.args...))
			if tt.wantOut == nil {
				require.Error(t, err)
				if tt.wantErrStr != "" {
					assert.EqualError(t, err, tt.wantErrStr)
				}
				return
			}
			require.NoError(t, err)
			for _, line := range tt.wantOut {
				assert.Contains(t, out.String(), line+"\n")
			}
		})
	}
}

func Test_commandLine_report(t *testing.T) {
	cli, out := setup(t)
	ctx := context.Background()

	insp, err := cli.inspSvc.Create(ctx, inspection.NewInspection{Reference: "R-7", ClientName: "ACME", Address: "1 Main St"}, "")
	require.NoError(t, err)
	_, err = cli.inspSvc.ChangeOutcome(ctx, insp.ID, "i1", inspection.OutcomeSatisfactory)
	require.NoError(t, err)
	_, err = cli.inspSvc.ChangeOutcome(ctx, insp.ID, "i2", inspection.OutcomeC2)
	require.NoError(t, err)

	tests := []cliTest{
		{name: "no id", args: []string{"report"}, wantErr: errHelp},
		{name: "unknown inspection", args: []string{"report", "-id", "nope"}, wantErr: inspection.ErrNotFound},
		{name: "report", args: []string{"report", "-id", insp.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out.Reset()
			checkErr(t, tt, cli.run(append([]string{"admin"}, tt.args...)))
		})
	}

	for _, line := range []string{
		"Inspection R-7 (" + insp.ID + ")",
		"  progress: 2/5 (40%)",
		"  critical: 1, satisfactory: 1",
		"  C2: 1",
		"  Intake: 2/3 (67%)",
		"  Earthing: 0/2 (0%)",
		"Suggested assessment: unsatisfactory",
	} {
		assert.Contains(t, out.String(), line+"\n")
	}
}
