package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"taxdocs/internal/config"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPostgresDSN(t *testing.T) {
	tests := []struct {
		name    string
		config  config.DatabaseConfig
		want    string
		wantErr string
	}{
		{
			name: "password and sslmode",
			config: config.DatabaseConfig{
				Host: "db", Port: "5432", User: "taxdocs", Password: "s3cret", Name: "taxdocs", SSLMode: "disable",
			},
			want: "postgres://taxdocs:s3cret@db:5432/taxdocs?application_name=taxdocs&connect_timeout=5&sslmode=disable",
		},
		{
			name: "no password",
			config: config.DatabaseConfig{
				Host: "db", Port: "5432", User: "taxdocs", Name: "taxdocs", SSLMode: "require",
			},
			want: "postgres://taxdocs@db:5432/taxdocs?application_name=taxdocs&connect_timeout=5&sslmode=require",
		},
		{
			name: "password needing escape",
			config: config.DatabaseConfig{
				Host: "db", Port: "5432", User: "taxdocs", Password: "p@ss/word", Name: "taxdocs",
			},
			want: "postgres://taxdocs:p%40ss%2Fword@db:5432/taxdocs?application_name=taxdocs&connect_timeout=5",
		},
		{
			name:    "missing host and port",
			config:  config.DatabaseConfig{User: "taxdocs", Name: "taxdocs"},
			wantErr: "missing host, port",
		},
		{
			name:    "empty",
			config:  config.DatabaseConfig{},
			wantErr: "missing host, port, user, name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildPostgresDSN(tt.config)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				assert.Empty(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// stubOpen makes NewPostgres use db instead of dialing.
func stubOpen(t *testing.T, db *sql.DB, err error) {
	t.Helper()
	orig := sqlOpen
	sqlOpen = func(string, string) (*sql.DB, error) { return db, err }
	t.Cleanup(func() { sqlOpen = orig })
}

func TestNewPostgres(t *testing.T) {
	conf := config.DatabaseConfig{
		Host:               "db",
		Port:               "5432",
		User:               "taxdocs",
		Password:           "s3cret",
		Name:               "taxdocs",
		MaxOpenConns:       10,
		MaxIdleConns:       5,
		ConnMaxLifetimeSec: 300,
	}

	t.Run("success applies pool settings", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer db.Close()
		stubOpen(t, db, nil)
		mock.ExpectPing()

		gotDB, err := NewPostgres(context.Background(), conf)

		require.NoError(t, err)
		assert.Same(t, db, gotDB)
		assert.Equal(t, 10, gotDB.Stats().MaxOpenConnections)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("open error", func(t *testing.T) {
		stubOpen(t, nil, errors.New("open error"))

		gotDB, err := NewPostgres(context.Background(), conf)

		assert.EqualError(t, err, "sql open: open error")
		assert.Nil(t, gotDB)
	})

	t.Run("ping error closes pool", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		stubOpen(t, db, nil)
		mock.ExpectPing().WillReturnError(errors.New("connection refused"))
		mock.ExpectClose()

		gotDB, err := NewPostgres(context.Background(), conf)

		assert.EqualError(t, err, "db ping db:5432: connection refused")
		assert.Nil(t, gotDB)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("invalid config", func(t *testing.T) {
		gotDB, err := NewPostgres(context.Background(), config.DatabaseConfig{})
		assert.ErrorContains(t, err, "invalid database config")
		assert.Nil(t, gotDB)
	})

	t.Run("canceled context", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		stubOpen(t, db, nil)
		mock.ExpectPing().WillReturnError(context.Canceled)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err = NewPostgres(ctx, conf)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
