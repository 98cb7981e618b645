package introspection

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidb-nested-graphql/internal/sqlutil"
)

func TestIntrospectMySQL(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM INFORMATION_SCHEMA.TABLES").
		WithArgs("app").
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME", "TABLE_COMMENT"}).
			AddRow("child", "").
			AddRow("parent", "parents"))

	mock.ExpectQuery("FROM INFORMATION_SCHEMA.COLUMNS").
		WithArgs("app", "child").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME", "DATA_TYPE", "COLUMN_COMMENT", "IS_NULLABLE", "COLUMN_DEFAULT", "EXTRA"}).
			AddRow("id", "int", "", "NO", nil, "auto_increment").
			AddRow("parent_id", "int", "", "NO", nil, "").
			AddRow("name", "varchar", "", "NO", nil, ""))
	mock.ExpectQuery("CONSTRAINT_NAME = 'PRIMARY'").
		WithArgs("app", "child").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME"}).AddRow("id"))
	mock.ExpectQuery("REFERENCED_TABLE_NAME IS NOT NULL").
		WithArgs("app", "child").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME", "REFERENCED_TABLE_NAME", "REFERENCED_COLUMN_NAME", "CONSTRAINT_NAME", "ORDINAL_POSITION"}).
			AddRow("parent_id", "parent", "id", "child_ibfk_1", 1))

	mock.ExpectQuery("FROM INFORMATION_SCHEMA.COLUMNS").
		WithArgs("app", "parent").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME", "DATA_TYPE", "COLUMN_COMMENT", "IS_NULLABLE", "COLUMN_DEFAULT", "EXTRA"}).
			AddRow("id", "bigint", "", "NO", nil, "auto_random(5)").
			AddRow("name", "varchar", "display name", "YES", "anon", ""))
	mock.ExpectQuery("CONSTRAINT_NAME = 'PRIMARY'").
		WithArgs("app", "parent").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME"}).AddRow("id"))
	mock.ExpectQuery("REFERENCED_TABLE_NAME IS NOT NULL").
		WithArgs("app", "parent").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME", "REFERENCED_TABLE_NAME", "REFERENCED_COLUMN_NAME", "CONSTRAINT_NAME", "ORDINAL_POSITION"}))

	schema, err := IntrospectDatabaseContext(context.Background(), db, sqlutil.MySQL, "app")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
	require.Len(t, schema.Tables, 2)

	child := schema.Tables[0]
	assert.Equal(t, "child", child.Name)
	assert.True(t, child.Columns[0].IsPrimaryKey)
	assert.True(t, child.Columns[0].IsAutoIncrement)
	require.Len(t, child.ForeignKeys, 1)
	assert.Equal(t, "child_ibfk_1", child.ForeignKeys[0].ConstraintName)

	parent := schema.Tables[1]
	assert.Equal(t, "parents", parent.Comment)
	assert.True(t, parent.Columns[0].IsAutoIncrement)
	assert.True(t, parent.Columns[1].IsNullable)
	assert.True(t, parent.Columns[1].HasDefault)
	assert.Equal(t, "display name", parent.Columns[1].Comment)
}

func TestIntrospectPostgres(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM information_schema.tables").
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}).AddRow("child"))
	mock.ExpectQuery("FROM information_schema.columns").
		WithArgs("child").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type", "is_nullable", "column_default", "is_identity", "is_generated"}).
			AddRow("id", "integer", "NO", "nextval('child_id_seq'::regclass)", "NO", "NEVER").
			AddRow("parent_id", "integer", "NO", nil, "NO", "NEVER").
			AddRow("total", "integer", "YES", nil, "NO", "ALWAYS"))
	mock.ExpectQuery("constraint_type = 'PRIMARY KEY'").
		WithArgs("child").
		WillReturnRows(sqlmock.NewRows([]string{"column_name"}).AddRow("id"))
	mock.ExpectQuery("constraint_type = 'FOREIGN KEY'").
		WithArgs("child").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "table_name", "column_name", "constraint_name", "ordinal_position"}).
			AddRow("parent_id", "parent", "id", "child_parent_id_fkey", 1))

	schema, err := IntrospectDatabaseContext(context.Background(), db, sqlutil.Postgres, "")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	child := schema.Tables[0]
	assert.True(t, child.Columns[0].IsAutoIncrement)
	assert.True(t, child.Columns[0].IsPrimaryKey)
	assert.True(t, child.Columns[2].IsGenerated)
	assert.Equal(t, "child_parent_id_fkey", child.ForeignKeys[0].ConstraintName)
}
