package database

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexuscrm/formengine/internal/config"
)

func TestDSN(t *testing.T) {
	local := DSN(config.DatabaseConfig{Host: "127.0.0.1", Port: 4000, User: "root", Name: "formengine"})
	assert.Contains(t, local, "root@tcp(127.0.0.1:4000)/formengine")
	assert.Contains(t, local, "parseTime=true")
	assert.Contains(t, local, "charset=utf8mb4")
	assert.NotContains(t, local, "tls=")

	remote := DSN(config.DatabaseConfig{Host: "gateway.tidbcloud.test", Port: 4000, User: "u", Password: "p", Name: "crm"})
	assert.Contains(t, remote, "u:p@tcp(gateway.tidbcloud.test:4000)/crm")
	assert.Contains(t, remote, "tls=tidb")
}

func TestNewFromDB(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	conn := NewFromDB(db)
	assert.Same(t, db, conn.DB())

	mock.ExpectClose()
	require.NoError(t, conn.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}
