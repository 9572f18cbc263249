package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/pazar-go-api/internal/models"
)

func TestCategoryRepositoryRootsAndChildren(t *testing.T) {
	db := setupTestDB(t, &models.Category{})
	repo := NewCategoryRepository(db)

	vehicles := models.Category{Name: "Vehicles", Slug: "vehicles", IsActive: true, Position: 1}
	require.NoError(t, repo.Create(context.Background(), &vehicles))

	cars := models.Category{Name: "Cars", Slug: "cars", IsActive: true, ParentID: &vehicles.ID}
	hidden := models.Category{Name: "Hidden", Slug: "hidden", IsActive: false, ParentID: &vehicles.ID}
	require.NoError(t, repo.Create(context.Background(), &cars))
	require.NoError(t, repo.Create(context.Background(), &hidden))

	roots, err := repo.ListRoots(context.Background())
	require.NoError(t, err)
	require.Len(t, roots, 1)
	require.Equal(t, "vehicles", roots[0].Slug)

	children, err := repo.ListChildren(context.Background(), vehicles.ID)
	require.NoError(t, err)
	require.Len(t, children, 1, "inactive children are hidden")
	require.Equal(t, "cars", children[0].Slug)
}

func TestCategoryRepositoryGetBySlugNormalises(t *testing.T) {
	db := setupTestDB(t, &models.Category{})
	repo := NewCategoryRepository(db)

	require.NoError(t, repo.Create(context.Background(), &models.Category{Name: "Cars", Slug: "cars", IsActive: true}))

	found, err := repo.GetBySlug(context.Background(), "  Cars ")
	require.NoError(t, err)
	require.Equal(t, "cars", found.Slug)
}

func TestCategoryRepositoryCountActiveListings(t *testing.T) {
	db := setupTestDB(t, &models.Category{}, &models.Listing{})
	repo := NewCategoryRepository(db)

	seed := []models.Listing{
		{Title: "a", Description: "d", Status: models.StatusActive, UserID: "u1", Category: "cars", City: "Skopje"},
		{Title: "b", Description: "d", Status: models.StatusActive, UserID: "u1", Category: "vehicles", SubCategory: "cars", City: "Skopje"},
		{Title: "c", Description: "d", Status: models.StatusPendingApproval, UserID: "u1", Category: "cars", City: "Skopje"},
	}
	for i := range seed {
		require.NoError(t, db.Create(&seed[i]).Error)
	}

	count, err := repo.CountActiveListings(context.Background(), "cars")
	require.NoError(t, err)
	require.Equal(t, int64(2), count, "pending listings do not count")
}
