package pagestore

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagesmith/api/schemas"
)

func newMockRepo(t *testing.T) (*PostgresRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresRepository(mock, zap.NewNop()), mock
}

func TestRepositorySave(t *testing.T) {
	repo, mock := newMockRepo(t)

	pom := &schemas.PageObject{
		ID:         "pom-1",
		Name:       "LoginPage",
		URL:        "https://example.com/login",
		URLPattern: `^https://example\.com/login$`,
		Elements: []schemas.ElementDescriptor{
			{ID: "el-1", Name: "loginButton", PrimarySelector: "#login", ElementType: schemas.ElementButton},
		},
		Version:       3,
		LastUpdatedAt: time.Now().UTC(),
	}

	elementsJSON, err := json.Marshal(pom.Elements)
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO page_objects").
		WithArgs(pom.ID, pom.Name, pom.URL, pom.URLPattern, elementsJSON, pom.Version, pom.LastUpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Save(context.Background(), pom))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryLoadAll(t *testing.T) {
	repo, mock := newMockRepo(t)

	elements := []schemas.ElementDescriptor{
		{ID: "el-1", Name: "goButton", PrimarySelector: "#go", ElementType: schemas.ElementButton},
	}
	elementsJSON, err := json.Marshal(elements)
	require.NoError(t, err)

	updatedAt := time.Now().UTC().Truncate(time.Second)
	rows := pgxmock.NewRows([]string{"id", "name", "url", "url_pattern", "elements", "version", "updated_at"}).
		AddRow("pom-1", "HomePage", "https://example.com", `^https://example\.com$`, elementsJSON, 2, updatedAt).
		AddRow("pom-2", "BrokenPage", "https://example.com/x", `^x$`, []byte("{not json"), 1, updatedAt)

	mock.ExpectQuery("SELECT id, name, url, url_pattern, elements, version, updated_at FROM page_objects").
		WillReturnRows(rows)

	poms, err := repo.LoadAll(context.Background())
	require.NoError(t, err)

	// The row with an undecodable payload is skipped, not fatal.
	require.Len(t, poms, 1)
	assert.Equal(t, "pom-1", poms[0].ID)
	assert.Equal(t, 2, poms[0].Version)
	require.Len(t, poms[0].Elements, 1)
	assert.Equal(t, "#go", poms[0].Elements[0].PrimarySelector)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryEnsureSchema(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS page_objects").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, repo.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreRoundTripThroughRepository(t *testing.T) {
	repo, mock := newMockRepo(t)

	// Creating a POM through the store triggers a save.
	mock.ExpectExec("INSERT INTO page_objects").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	s := New(zap.NewNop(), repo)
	s.CreateFromExtraction(context.Background(), "https://example.com", "Home", nil)

	assert.NoError(t, mock.ExpectationsWereMet())
}
