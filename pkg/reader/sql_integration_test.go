//go:build integration

package reader

import (
	"context"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/clover/internal/testdb"
	"github.com/Ramsey-B/clover/pkg/datasheet"
	"github.com/Ramsey-B/clover/pkg/expression"
	"github.com/Ramsey-B/clover/pkg/meta"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLReadPostgres(t *testing.T) {
	sqlDB, db := testdb.StartPostgres(t)
	sqlDB.MustExec(`
		CREATE TABLE customers (id INTEGER PRIMARY KEY, name TEXT, city TEXT, email TEXT);
		CREATE TABLE orders (id INTEGER PRIMARY KEY, order_number TEXT, status TEXT, total NUMERIC,
			payload JSONB, tags TEXT, customer_id INTEGER REFERENCES customers (id));
		INSERT INTO customers VALUES (10, 'Acme', 'Berlin', 'a@acme.test'), (20, 'Beta', 'Paris', NULL);
		INSERT INTO orders VALUES
			(1, 'A-1', 'open', 12.5, '{"items": []}', 'x;y', 10),
			(2, 'A-2', 'done', 3, NULL, NULL, 20),
			(3, 'A-3', 'open', 7, NULL, NULL, NULL);
	`)

	model, err := meta.LoadModel("../../model.hjson")
	require.NoError(t, err)
	order, err := model.GetObject("ORDER")
	require.NoError(t, err)

	r := NewSQL(db, ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}))

	t.Run("should read filtered rows with a related column", func(t *testing.T) {
		sheet := datasheet.New(order)
		for _, column := range []string{"ID", "NUMBER", "CUSTOMER__CITY"} {
			_, err := sheet.AddColumn(column)
			require.NoError(t, err)
		}
		sheet.Filters().AddCondition(datasheet.NewCondition(expression.MustParse("STATUS", order), datasheet.ComparatorIs, "open"))

		require.NoError(t, r.Read(context.Background(), sheet))
		require.Equal(t, 2, sheet.CountRows())
		assert.True(t, sheet.IsFresh())

		cities := map[string]any{}
		for _, row := range sheet.Rows() {
			cities[row["NUMBER"].(string)] = row["CUSTOMER__CITY"]
		}
		assert.Equal(t, map[string]any{"A-1": "Berlin", "A-3": nil}, cities)
	})

	t.Run("should read every attribute without columns", func(t *testing.T) {
		sheet := datasheet.New(order)
		sheet.Filters().AddCondition(datasheet.NewCondition(expression.MustParse("ID", order), datasheet.ComparatorIn, "1,2"))

		require.NoError(t, r.Read(context.Background(), sheet))
		assert.Equal(t, 2, sheet.CountRows())
		assert.Contains(t, sheet.ColumnNames(), "PAYLOAD")
	})
}
