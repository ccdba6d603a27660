package source

import (
	"errors"
	"testing"

	"github.com/guillermoBallester/txscope/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_Valid(t *testing.T) {
	t.Parallel()
	settings := Settings{
		{Key: "App/Source/MySql/main", Address: "root:123456@tcp(127.0.0.1:3306)/mysql?charset=utf8mb4&loc=Local", AutoClose: true},
		{Key: "App/Source/Sqlite/local", Address: "data source=/tmp/app.db"},
		{Key: "App/Source/PostgreSQL/reporting", Address: "postgres://u:p@db:5432/rep"},
	}

	got, err := Build(settings, nil)
	require.NoError(t, err)

	assert.Equal(t, []domain.Descriptor{
		{Alias: "main", Kind: domain.MySQL, ConnectionString: "server=127.0.0.1;port=3306;database=mysql;uid=root;pwd=123456;", AutoClose: true},
		{Alias: "local", Kind: domain.SQLite, ConnectionString: "data source=/tmp/app.db"},
		{Alias: "reporting", Kind: domain.PostgreSQL, ConnectionString: "postgres://u:p@db:5432/rep"},
	}, got)
}

func TestBuild_EmptySettings(t *testing.T) {
	t.Parallel()
	got, err := Build(Settings{}, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestBuild_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		settings Settings
		wantErr  error
	}{
		{"nil config", nil, domain.ErrNilConfig},
		{"too few segments", Settings{{Key: "App/Source/MySql", Address: "x"}}, domain.ErrMalformedKey},
		{"too many segments", Settings{{Key: "App/Source/MySql/a/b", Address: "x"}}, domain.ErrMalformedKey},
		{"empty alias", Settings{{Key: "App/Source/MySql/", Address: "x"}}, domain.ErrMalformedKey},
		{"unknown kind", Settings{{Key: "App/Source/Oracle/main", Address: "x"}}, domain.ErrUnknownKind},
		{"empty address", Settings{{Key: "App/Source/MySql/main", Address: "   "}}, domain.ErrEmptyAddress},
		{"bad dsn", Settings{{Key: "App/Source/MySql/main", Address: "root@tcp(127.0.0.1:3306)"}}, domain.ErrInvalidDSN},
		{"duplicate alias", Settings{
			{Key: "App/Source/Sqlite/main", Address: "a.db"},
			{Key: "App/Source/Sqlite/main", Address: "b.db"},
		}, domain.ErrDuplicateAlias},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Build(tt.settings, nil)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)

			var ce *domain.ConfigError
			assert.True(t, errors.As(err, &ce))
		})
	}
}

func TestBuild_ExpandsVariables(t *testing.T) {
	t.Setenv("TXSCOPE_TEST_PASS", "s3cret")

	got, err := Build(Settings{
		{Key: "App/Source/MySql/main", Address: "root:${TXSCOPE_TEST_PASS}@tcp(db:3306)/app"},
	}, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "server=db;port=3306;database=app;uid=root;pwd=s3cret;", got[0].ConnectionString)
}

func TestBuild_CustomExpander(t *testing.T) {
	t.Parallel()
	expand := func(s string) string { return s + "?_pragma=busy_timeout(1000)" }

	got, err := Build(Settings{{Key: "App/Source/Sqlite/main", Address: "app.db"}}, expand)
	require.NoError(t, err)
	assert.Equal(t, "app.db?_pragma=busy_timeout(1000)", got[0].ConnectionString)
}
