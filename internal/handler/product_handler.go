package handler

import (
	"context"
	"net/http"

	"github.com/Moisinho/odym-ecommerce-sub000/internal/domain/model"
	"github.com/Moisinho/odym-ecommerce-sub000/internal/usecase"

	"github.com/labstack/echo/v4"
)

// ProductCatalog は公開カタログの読み取りだけ
type ProductCatalog interface {
	ListPublicProducts(ctx context.Context, in usecase.ListProductsInput) (usecase.ProductListOutput, error)
	GetProductDetail(ctx context.Context, productID int64) (model.Product, error)
}

// 認証なし。非公開商品は usecase 側で404になる
type ProductHandler struct {
	catalog ProductCatalog
}

func NewProductHandler(catalog ProductCatalog) *ProductHandler {
	return &ProductHandler{catalog: catalog}
}

func (h *ProductHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/products")
	g.GET("", h.list)
	g.GET("/:id", h.detail)
}

func (h *ProductHandler) list(c echo.Context) error {
	in, err := bindListProducts(c)
	if err != nil {
		return badQuery(c, err)
	}

	out, err := h.catalog.ListPublicProducts(c.Request().Context(), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// ?page&limit&q&category&min_price&max_price&sort
func bindListProducts(c echo.Context) (usecase.ListProductsInput, error) {
	in := usecase.ListProductsInput{
		Q:        c.QueryParam("q"),
		Category: c.QueryParam("category"),
		Sort:     c.QueryParam("sort"),
	}
	var err error
	if in.Page, err = queryInt(c, "page", 1); err != nil {
		return in, err
	}
	if in.Limit, err = queryInt(c, "limit", 20); err != nil {
		return in, err
	}
	if in.MinPrice, err = queryInt64Ptr(c, "min_price"); err != nil {
		return in, err
	}
	if in.MaxPrice, err = queryInt64Ptr(c, "max_price"); err != nil {
		return in, err
	}
	//範囲やsortの妥当性は usecase で見る
	return in, nil
}

func (h *ProductHandler) detail(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return badQuery(c, err)
	}

	p, err := h.catalog.GetProductDetail(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}
