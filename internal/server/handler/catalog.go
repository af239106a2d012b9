package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/takatori/ftmq-api/internal/app"
	"github.com/takatori/ftmq-api/internal/catalog"
)

func NewCatalogHandler(a *app.App) func(echo.Context) error {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		cat, err := a.Catalog(ctx)
		if err != nil {
			return err
		}
		res := catalog.Catalog{
			Name:     cat.Name,
			Title:    cat.Title,
			Datasets: make([]catalog.Dataset, 0, len(cat.Datasets)),
		}
		for _, d := range cat.Datasets {
			d, err := withStats(ctx, a, d)
			if err != nil {
				return err
			}
			res.Datasets = append(res.Datasets, d)
		}
		return c.JSON(http.StatusOK, res)
	}
}

func NewDatasetHandler(a *app.App) func(echo.Context) error {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		cat, err := a.Catalog(ctx)
		if err != nil {
			return err
		}
		d, err := cat.Lookup(c.Param("dataset"))
		if err != nil {
			return err
		}
		d, err = withStats(ctx, a, d)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, d)
	}
}

func withStats(ctx context.Context, a *app.App, d catalog.Dataset) (catalog.Dataset, error) {
	v, err := a.View(ctx, d.Name)
	if err != nil {
		return d, err
	}
	stats, err := v.Stats(ctx, nil)
	if err != nil {
		return d, err
	}
	return d.WithStats(stats), nil
}
