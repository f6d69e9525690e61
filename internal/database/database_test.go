package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assetapi/internal/config"
	"assetapi/internal/logger"
)

func TestBuildPostgresDSN(t *testing.T) {
	tests := []struct {
		name    string
		config  config.DatabaseConfig
		want    string
		wantErr bool
	}{
		{
			name:   "password and sslmode",
			config: config.DatabaseConfig{Host: "db", Port: "5432", User: "assets", Password: "s3cret", Name: "assets", SSLMode: "disable"},
			want:   "postgres://assets:s3cret@db:5432/assets?application_name=assetapi&sslmode=disable",
		},
		{
			name:   "no password",
			config: config.DatabaseConfig{Host: "db", Port: "5432", User: "assets", Name: "assets", SSLMode: "require"},
			want:   "postgres://assets@db:5432/assets?application_name=assetapi&sslmode=require",
		},
		{
			name:   "password needing escape",
			config: config.DatabaseConfig{Host: "db", Port: "5432", User: "assets", Password: "p@ss/word", Name: "assets"},
			want:   "postgres://assets:p%40ss%2Fword@db:5432/assets?application_name=assetapi",
		},
		{name: "missing host", config: config.DatabaseConfig{Port: "5432", User: "u", Name: "n"}, wantErr: true},
		{name: "missing port", config: config.DatabaseConfig{Host: "db", User: "u", Name: "n"}, wantErr: true},
		{name: "missing user", config: config.DatabaseConfig{Host: "db", Port: "5432", Name: "n"}, wantErr: true},
		{name: "missing name", config: config.DatabaseConfig{Host: "db", Port: "5432", User: "u"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildPostgresDSN(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func stubOpen(t *testing.T, db *sql.DB, err error) {
	t.Helper()
	origOpen, origBackoff := sqlOpen, pingBackoff
	sqlOpen = func(string, string) (*sql.DB, error) { return db, err }
	pingBackoff = time.Millisecond
	t.Cleanup(func() { sqlOpen, pingBackoff = origOpen, origBackoff })
}

func TestOpen(t *testing.T) {
	conf := config.DatabaseConfig{
		Host: "db", Port: "5432", User: "assets", Password: "pass", Name: "assets",
		MaxOpenConns: 10, MaxIdleConns: 5, ConnMaxLifetimeSec: 300,
	}
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer db.Close()
		stubOpen(t, db, nil)

		mock.ExpectPing()

		got, err := Open(ctx, conf, logger.Discard())
		require.NoError(t, err)
		assert.Same(t, db, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ping succeeds after retry", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer db.Close()
		stubOpen(t, db, nil)

		mock.ExpectPing().WillReturnError(errors.New("connection refused"))
		mock.ExpectPing()

		got, err := Open(ctx, conf, logger.Discard())
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ping keeps failing", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		stubOpen(t, db, nil)

		for i := 0; i < PingAttempts; i++ {
			mock.ExpectPing().WillReturnError(errors.New("ping failed"))
		}

		got, err := Open(ctx, conf, logger.Discard())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "db ping: ping failed")
		assert.Nil(t, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("cancelled while waiting", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		stubOpen(t, db, nil)
		pingBackoff = time.Hour

		cctx, cancel := context.WithCancel(ctx)
		mock.ExpectPing().WillReturnError(errors.New("connection refused"))
		go func() {
			time.Sleep(20 * time.Millisecond)
			cancel()
		}()

		_, err = Open(cctx, conf, logger.Discard())
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("sqlOpen error", func(t *testing.T) {
		stubOpen(t, nil, errors.New("open error"))

		got, err := Open(ctx, conf, logger.Discard())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sql open: open error")
		assert.Nil(t, got)
	})

	t.Run("invalid config", func(t *testing.T) {
		got, err := Open(ctx, config.DatabaseConfig{}, logger.Discard())
		assert.Error(t, err)
		assert.Nil(t, got)
	})
}
