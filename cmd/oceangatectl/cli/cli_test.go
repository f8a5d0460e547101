package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	urfave "github.com/urfave/cli/v2"

	"github.com/oceangate/oceangate/internal/auth"
	"github.com/oceangate/oceangate/jobs"
)

type recordingExecer struct {
	statements []string
	err        error
}

func (r *recordingExecer) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	r.statements = append(r.statements, sql)
	return pgconn.NewCommandTag("TRUNCATE TABLE"), r.err
}

type stubUsers struct {
	created       []auth.NewUser
	removed       []string
	adminPassword string
}

func (s *stubUsers) CreateUser(ctx context.Context, in auth.NewUser) (auth.User, error) {
	s.created = append(s.created, in)
	return auth.User{ID: uuid.New(), Email: in.Email, Role: in.Role}, nil
}

func (s *stubUsers) RemoveUser(ctx context.Context, email string) error {
	s.removed = append(s.removed, email)
	return nil
}

func (s *stubUsers) ResetAdmin(ctx context.Context, password string) error {
	s.adminPassword = password
	return nil
}

type countingBump struct{ bumps int }

func (c *countingBump) Bump(ctx context.Context) error {
	c.bumps++
	return nil
}

type stubTrigger struct {
	reasons []string
}

func (s *stubTrigger) EnqueueDashboardWarmup(ctx context.Context, reason string) (*asynq.TaskInfo, error) {
	s.reasons = append(s.reasons, reason)
	return &asynq.TaskInfo{ID: "t-1", Type: jobs.TaskDashboardWarmup}, nil
}

type stubInspector struct{}

func (stubInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	return &asynq.QueueInfo{Queue: queue, Pending: 2, Failed: 1}, nil
}

type fixture struct {
	exec    *recordingExecer
	users   *stubUsers
	bump    *countingBump
	trigger *stubTrigger
	opened  int
	closed  int
}

func newFixture() *fixture {
	return &fixture{exec: &recordingExecer{}, users: &stubUsers{}, bump: &countingBump{}, trigger: &stubTrigger{}}
}

func (f *fixture) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	application := NewApp(func(c *urfave.Context) (*Deps, error) {
		f.opened++
		return &Deps{
			Users: f.users,
			Data:  NewDataCLI(f.exec, f.users, f.bump),
			Jobs:  NewJobsCLI(f.trigger, stubInspector{}),
			Close: func() { f.closed++ },
		}, nil
	}, &out)
	application.ExitErrHandler = func(*urfave.Context, error) {}
	err := application.Run(append([]string{"oceangatectl"}, args...))
	return out.String(), err
}

func TestUserAddDefaultsRole(t *testing.T) {
	f := newFixture()
	out, err := f.run(t, "user", "add", "dock", "dock@oceangateintl.com", "secret1")
	require.NoError(t, err)
	require.Len(t, f.users.created, 1)
	assert.Equal(t, "user", f.users.created[0].Role)
	assert.Contains(t, out, "dock@oceangateintl.com")
	assert.Equal(t, 1, f.closed)
}

func TestUserAddRequiresArguments(t *testing.T) {
	f := newFixture()
	_, err := f.run(t, "user", "add", "dock")
	require.Error(t, err)
	assert.Empty(t, f.users.created)
}

func TestUserRemove(t *testing.T) {
	f := newFixture()
	_, err := f.run(t, "user", "remove", "dock@oceangateintl.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"dock@oceangateintl.com"}, f.users.removed)
}

func TestDataClearTruncatesBusinessTables(t *testing.T) {
	f := newFixture()
	_, err := f.run(t, "data", "clear")
	require.NoError(t, err)
	require.Len(t, f.exec.statements, 1)
	assert.Equal(t, "TRUNCATE TABLE invoice_lines, invoices, doa_records, stock, categories", f.exec.statements[0])
	assert.NotContains(t, f.exec.statements[0], "users")
	assert.Equal(t, 1, f.bump.bumps)
}

func TestDataResetProduction(t *testing.T) {
	f := newFixture()
	_, err := f.run(t, "data", "reset-production", "short")
	require.Error(t, err)
	assert.Empty(t, f.exec.statements)

	out, err := f.run(t, "data", "reset-production", "n3w-admin")
	require.NoError(t, err)
	assert.Len(t, f.exec.statements, 1)
	assert.Equal(t, "n3w-admin", f.users.adminPassword)
	assert.Contains(t, out, auth.AdminEmail)
}

func TestDataClearStopsOnDatabaseError(t *testing.T) {
	f := newFixture()
	f.exec.err = errors.New("relation does not exist")
	_, err := f.run(t, "data", "clear")
	require.Error(t, err)
	assert.Zero(t, f.bump.bumps)
}

func TestJobsCommands(t *testing.T) {
	f := newFixture()
	out, err := f.run(t, "jobs", "trigger", "dashboard-warmup")
	require.NoError(t, err)
	assert.Equal(t, []string{"cli"}, f.trigger.reasons)
	assert.Contains(t, out, "t-1")

	_, err = f.run(t, "jobs", "trigger", "nightly-report")
	require.ErrorContains(t, err, "unsupported job")

	out, err = f.run(t, "jobs", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, `"pending": 2`)
	assert.Contains(t, out, `"failed": 1`)
}

func TestHelpDoesNotOpenBackends(t *testing.T) {
	f := newFixture()
	_, err := f.run(t, "--help")
	require.NoError(t, err)
	assert.Zero(t, f.opened)
}
