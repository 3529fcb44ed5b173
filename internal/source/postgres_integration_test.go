//go:build integration

package source

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/tariffdesk/internal/tariff"
	"github.com/mbd888/tariffdesk/internal/testutil"
)

func TestPostgresSource_Fetch(t *testing.T) {
	db := testutil.PGTest(t)
	ctx := context.Background()

	_, err := db.ExecContext(ctx,
		`INSERT INTO tariff_documents (name, format, body) VALUES ($1, 'json', $2), ($3, 'yaml', $4)`,
		"tariffs", []byte(legacyJSON), "promo", []byte("- id: promo\n"))
	require.NoError(t, err)

	src := NewPostgresSource(db, "tariffs")
	require.NoError(t, src.PingContext(ctx))

	c := NewLoader(src, discardLogger()).Load(ctx)
	require.Len(t, c, 1)
	assert.Equal(t, "M", c[0].Plans[0].Name)

	doc, err := NewPostgresSource(db, "promo").Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, tariff.FormatYAML, doc.Format)

	_, err = NewPostgresSource(db, "absent").Fetch(ctx)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, src.Close())
}
