package admincli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/dmitrijs2005/fundkeeper/internal/common"
	"github.com/dmitrijs2005/fundkeeper/internal/server/config"
	"github.com/dmitrijs2005/fundkeeper/internal/server/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sharedStorage makes every command in a test see the same memstore.
func sharedStorage(t *testing.T) *storage.Storage {
	t.Helper()
	st, err := storage.Open(context.Background(), config.MemoryDSN)
	require.NoError(t, err)

	orig := openStorage
	openStorage = func(context.Context, string) (*storage.Storage, error) { return st, nil }
	t.Cleanup(func() { openStorage = orig })
	return st
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCmd(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--dsn", config.MemoryDSN}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCmd_Defaults(t *testing.T) {
	cmd := NewRootCmd(&bytes.Buffer{})

	var want config.Config
	want.LoadDefaults()
	assert.Equal(t, want.DatabaseDSN, cmd.PersistentFlags().Lookup("dsn").DefValue)
	assert.Equal(t, "warn", cmd.PersistentFlags().Lookup("log-level").DefValue)

	names := map[string]bool{}
	for _, c := range cmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["migrate"])
	assert.True(t, names["user"])
}

func TestMigrate(t *testing.T) {
	sharedStorage(t)

	out, err := run(t, "", "migrate")
	require.NoError(t, err)
	assert.Equal(t, "migrations applied\n", out)
}

func TestMigrate_OpenError(t *testing.T) {
	orig := openStorage
	openStorage = func(context.Context, string) (*storage.Storage, error) { return nil, errors.New("no db") }
	t.Cleanup(func() { openStorage = orig })

	_, err := run(t, "", "migrate")
	require.EqualError(t, err, "no db")
}

func TestBadLogLevel(t *testing.T) {
	sharedStorage(t)

	_, err := run(t, "", "--log-level", "loud", "migrate")
	require.Error(t, err)
}

func TestUserCreateThenList(t *testing.T) {
	sharedStorage(t)

	out, err := run(t, "password123\n", "user", "create", "--name", "Root", "--email", "Root@Example.com", "--admin")
	require.NoError(t, err)
	assert.Contains(t, out, "created user ")
	assert.Contains(t, out, "(admin)")

	_, err = run(t, "password456", "user", "create", "--name", "Bea", "--email", "bea@example.com")
	require.NoError(t, err)

	out, err = run(t, "", "user", "list")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "EMAIL")
	assert.Contains(t, lines[1], "Bea")
	assert.Contains(t, lines[1], "user")
	assert.Contains(t, lines[2], "root@example.com")
	assert.Contains(t, lines[2], "admin")

	out, err = run(t, "", "user", "list", "--role", "admin")
	require.NoError(t, err)
	assert.NotContains(t, out, "Bea")
}

func TestUserCreate_Rejections(t *testing.T) {
	sharedStorage(t)

	_, err := run(t, "short\n", "user", "create", "--name", "Ann", "--email", "ann@example.com")
	require.ErrorIs(t, err, common.ErrorValidation)

	_, err = run(t, "password123\n", "user", "create", "--name", "Ann", "--email", "ann@example.com")
	require.NoError(t, err)

	_, err = run(t, "password123\n", "user", "create", "--name", "Ann 2", "--email", "ANN@example.com")
	require.ErrorIs(t, err, common.ErrorDuplicateName)

	_, err = run(t, "", "user", "create", "--name", "Ann")
	require.Error(t, err, "email flag is required")

	_, err = run(t, "", "user", "create", "--name", "Cid", "--email", "cid@example.com")
	require.Error(t, err, "empty stdin has no password")
}

func TestPassword_Terminal(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "tty")
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })

	origTerm, origRead := isTerminal, readPassword
	t.Cleanup(func() { isTerminal, readPassword = origTerm, origRead })
	isTerminal = func(int) bool { return true }

	answers := [][]byte{[]byte("password123"), []byte("password123")}
	readPassword = func(int) ([]byte, error) {
		a := answers[0]
		answers = answers[1:]
		return a, nil
	}

	var out bytes.Buffer
	o := &options{out: &out}
	pw, err := o.password(f)
	require.NoError(t, err)
	assert.Equal(t, "password123", pw)
	assert.Contains(t, out.String(), "Repeat password: ")

	answers = [][]byte{[]byte("password123"), []byte("password124")}
	_, err = o.password(f)
	require.EqualError(t, err, "passwords do not match")

	readPassword = func(int) ([]byte, error) { return nil, errors.New("tty gone") }
	_, err = o.password(f)
	require.EqualError(t, err, "tty gone")
}
