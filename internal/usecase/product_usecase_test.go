package usecase_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
	"storefront/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type ProductRepoMock struct{ mock.Mock }

func (m *ProductRepoMock) ListPublic(ctx context.Context, q repo.ProductListQuery) ([]model.Product, int64, error) {
	args := m.Called(ctx, q)
	items, _ := args.Get(0).([]model.Product)
	return items, args.Get(1).(int64), args.Error(2)
}

func (m *ProductRepoMock) FindByID(ctx context.Context, id string) (model.Product, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(model.Product)
	return p, args.Error(1)
}

func (m *ProductRepoMock) FindActiveByIDs(ctx context.Context, ids []string) ([]model.Product, error) {
	panic("not used in ProductUsecase tests")
}

func TestProductUsecase_ListPublic(t *testing.T) {
	m := &ProductRepoMock{}
	u := usecase.NewProductUsecase(m)
	ctx := context.Background()

	m.On("ListPublic", ctx, repo.ProductListQuery{Page: 1, Limit: 20, Q: "burger", Category: "Main Course", Sort: "price_asc"}).
		Return([]model.Product{{ID: "burger", Name: "Burger", Price: 25000, IsActive: true}}, int64(1), nil).Once()

	out, err := u.ListPublicProducts(ctx, usecase.ListProductsInput{Page: 1, Limit: 20, Q: "  burger ", Category: "Main Course", Sort: "price_asc"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), out.Total)
	require.Len(t, out.Items, 1)
	assert.Equal(t, "Burger", out.Items[0].Name)
	m.AssertExpectations(t)
}

func TestProductUsecase_ListPublic_Validation(t *testing.T) {
	u := usecase.NewProductUsecase(&ProductRepoMock{})
	minP, maxP := int64(500), int64(100)

	tests := []struct {
		name string
		in   usecase.ListProductsInput
	}{
		{"page", usecase.ListProductsInput{Page: 0, Limit: 10}},
		{"limit", usecase.ListProductsInput{Page: 1, Limit: 101}},
		{"sort", usecase.ListProductsInput{Page: 1, Limit: 10, Sort: "random"}},
		{"price range", usecase.ListProductsInput{Page: 1, Limit: 10, MinPrice: &minP, MaxPrice: &maxP}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := u.ListPublicProducts(context.Background(), tt.in)
			requireHTTPStatus(t, err, http.StatusBadRequest)
		})
	}
}

func TestProductUsecase_GetDetail(t *testing.T) {
	m := &ProductRepoMock{}
	u := usecase.NewProductUsecase(m)
	ctx := context.Background()

	m.On("FindByID", ctx, "burger").Return(model.Product{ID: "burger", IsActive: true}, nil)
	m.On("FindByID", ctx, "hidden").Return(model.Product{ID: "hidden", IsActive: false}, nil)
	m.On("FindByID", ctx, "missing").Return(nil, repo.ErrNotFound)
	m.On("FindByID", ctx, "broken").Return(nil, errors.New("db down"))

	p, err := u.GetProductDetail(ctx, "burger")
	require.NoError(t, err)
	assert.Equal(t, "burger", p.ID)

	_, err = u.GetProductDetail(ctx, "hidden")
	requireHTTPStatus(t, err, http.StatusNotFound)
	_, err = u.GetProductDetail(ctx, "missing")
	requireHTTPStatus(t, err, http.StatusNotFound)
	_, err = u.GetProductDetail(ctx, "broken")
	requireHTTPStatus(t, err, http.StatusInternalServerError)
}
