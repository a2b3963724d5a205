package database

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilPool(t *testing.T) {
	var p *Pool
	assert.ErrorIs(t, p.Health(context.Background()), ErrNotConfigured)
	assert.NoError(t, p.Close())
	assert.Zero(t, p.Stats().OpenConnections)
}

func TestOpenWithoutURL(t *testing.T) {
	p, err := Open(DefaultConfig())
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestMigrateSkipsNonMigrationFiles(t *testing.T) {
	err := Migrate(context.Background(), nil, fstest.MapFS{"README.md": &fstest.MapFile{Data: []byte("notes")}, "001.down.sql": &fstest.MapFile{Data: []byte("DROP")}})
	// no *.up.sql files: nothing to execute, nil db is never touched
	assert.NoError(t, err)
}
