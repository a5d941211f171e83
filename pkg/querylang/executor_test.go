package querylang

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GrafeoDB/grafeo-server/pkg/storage"
)

func TestParseLanguage(t *testing.T) {
	cases := map[string]Language{
		"":        LanguageGQL,
		"gql":     LanguageGQL,
		"Cypher":  LanguageCypher,
		"graphql": LanguageGraphQL,
		"gremlin": LanguageGremlin,
		"sparql":  LanguageSPARQL,
		"sql":     LanguageSQLPGQ,
		"sqlpgq":  LanguageSQLPGQ,
		"sql/pgq": LanguageSQLPGQ,
	}
	for input, want := range cases {
		got, err := ParseLanguage(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}
}

func TestParseLanguage_UnknownReturnsErrBadLanguage(t *testing.T) {
	_, err := ParseLanguage("plsql")
	assert.ErrorIs(t, err, ErrBadLanguage)
}

func TestExecutor_InsertThenMatchReturn(t *testing.T) {
	eng := storage.NewMemEngine()
	exec := NewStorageExecutor(eng)
	ctx := context.Background()

	_, err := exec.Execute(ctx, "CREATE (n:Person {name: 'ada', age: 30})", nil)
	require.NoError(t, err)

	result, err := exec.Execute(ctx, "MATCH (n:Person) RETURN n.name", nil)
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "ada", result.Rows[0][0])
}

func TestExecutor_MatchWithWhereFiltersRows(t *testing.T) {
	eng := storage.NewMemEngine()
	exec := NewStorageExecutor(eng)
	ctx := context.Background()

	_, err := exec.Execute(ctx, "CREATE (n:Person {name: 'ada'})", nil)
	require.NoError(t, err)
	_, err = exec.Execute(ctx, "CREATE (n:Person {name: 'bob'})", nil)
	require.NoError(t, err)

	result, err := exec.Execute(ctx, "MATCH (n:Person) WHERE n.name = 'bob' RETURN n.name", nil)
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "bob", result.Rows[0][0])
}

func TestExecutor_MatchSetUpdatesProperty(t *testing.T) {
	eng := storage.NewMemEngine()
	exec := NewStorageExecutor(eng)
	ctx := context.Background()

	_, err := exec.Execute(ctx, "CREATE (n:Person {age: 1})", nil)
	require.NoError(t, err)

	_, err = exec.Execute(ctx, "MATCH (n:Person) SET n.age = 2", nil)
	require.NoError(t, err)

	result, err := exec.Execute(ctx, "MATCH (n:Person) RETURN n.age", nil)
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	assert.EqualValues(t, 2, result.Rows[0][0])
}

func TestExecutor_MatchDeleteRemovesNode(t *testing.T) {
	eng := storage.NewMemEngine()
	exec := NewStorageExecutor(eng)
	ctx := context.Background()

	_, err := exec.Execute(ctx, "CREATE (n:Person {name: 'ada'})", nil)
	require.NoError(t, err)

	_, err = exec.Execute(ctx, "MATCH (n:Person) DELETE n", nil)
	require.NoError(t, err)

	result, err := exec.Execute(ctx, "MATCH (n:Person) RETURN n.name", nil)
	require.NoError(t, err)
	assert.Len(t, result.Rows, 0)
}

func TestExecutor_TransactionCommitAppliesBufferedWrites(t *testing.T) {
	eng := storage.NewMemEngine()
	exec := NewStorageExecutor(eng)
	ctx := context.Background()

	_, err := exec.Execute(ctx, "BEGIN", nil)
	require.NoError(t, err)
	_, err = exec.Execute(ctx, "CREATE (n:Person {name: 'ada'})", nil)
	require.NoError(t, err)

	nodes, err := eng.AllNodes()
	require.NoError(t, err)
	assert.Len(t, nodes, 0, "insert inside an open transaction must not be visible until commit")

	_, err = exec.Execute(ctx, "COMMIT", nil)
	require.NoError(t, err)

	nodes, err = eng.AllNodes()
	require.NoError(t, err)
	assert.Len(t, nodes, 1)
}

func TestExecutor_TransactionRollbackDiscardsBufferedWrites(t *testing.T) {
	eng := storage.NewMemEngine()
	exec := NewStorageExecutor(eng)
	ctx := context.Background()

	_, err := exec.Execute(ctx, "BEGIN", nil)
	require.NoError(t, err)
	_, err = exec.Execute(ctx, "CREATE (n:Person {name: 'ada'})", nil)
	require.NoError(t, err)

	_, err = exec.Execute(ctx, "ROLLBACK", nil)
	require.NoError(t, err)

	nodes, err := eng.AllNodes()
	require.NoError(t, err)
	assert.Len(t, nodes, 0)
}

func TestExecutor_CommitWithoutBeginReturnsSemanticError(t *testing.T) {
	eng := storage.NewMemEngine()
	exec := NewStorageExecutor(eng)
	_, err := exec.Execute(context.Background(), "COMMIT", nil)
	assert.ErrorIs(t, err, ErrSemantic)
}

func TestExecutor_DoubleBeginReturnsSemanticError(t *testing.T) {
	eng := storage.NewMemEngine()
	exec := NewStorageExecutor(eng)
	ctx := context.Background()
	_, err := exec.Execute(ctx, "BEGIN", nil)
	require.NoError(t, err)
	_, err = exec.Execute(ctx, "BEGIN", nil)
	assert.ErrorIs(t, err, ErrSemantic)
}

func TestExecutor_EmptyStatementReturnsParseError(t *testing.T) {
	eng := storage.NewMemEngine()
	exec := NewStorageExecutor(eng)
	_, err := exec.Execute(context.Background(), "   ", nil)
	assert.ErrorIs(t, err, ErrParse)
}

func TestExecutor_UnrecognizedStatementReturnsParseError(t *testing.T) {
	eng := storage.NewMemEngine()
	exec := NewStorageExecutor(eng)
	_, err := exec.Execute(context.Background(), "DROP TABLE foo", nil)
	assert.ErrorIs(t, err, ErrParse)
}

func TestExecutor_ReturnLiteralWithParam(t *testing.T) {
	eng := storage.NewMemEngine()
	exec := NewStorageExecutor(eng)
	result, err := exec.Execute(context.Background(), "RETURN $x", map[string]any{"x": 42})
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	assert.EqualValues(t, 42, result.Rows[0][0])
}

func TestExecutor_BareSetWithoutMatchReturnsSemanticError(t *testing.T) {
	eng := storage.NewMemEngine()
	exec := NewStorageExecutor(eng)
	_, err := exec.Execute(context.Background(), "SET n.x = 1", nil)
	assert.ErrorIs(t, err, ErrSemantic)
}

func TestExecutor_BareDeleteWithoutMatchReturnsSemanticError(t *testing.T) {
	eng := storage.NewMemEngine()
	exec := NewStorageExecutor(eng)
	_, err := exec.Execute(context.Background(), "DELETE n", nil)
	assert.ErrorIs(t, err, ErrSemantic)
}
