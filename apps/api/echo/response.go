package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/bob-rietveld/unheard-v2-sub001/core/response"
)

var errRespNotFoundInCtx = errors.New("response object not found in echo.Context")

type responseApi struct {
	svc *response.Service
}

func registerResponseAPI(g *echo.Group, svc *response.Service) {
	api := responseApi{svc: svc}

	dg := g.Group("/responses/:id", responseCtxMiddleware(svc))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy)
}

// Handlers

func (api *responseApi) retrieve(ctx echo.Context) error {
	resp, ok := ctx.Get("object").(response.Response)
	if !ok {
		return errors.Wrap(errRespNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (api *responseApi) update(ctx echo.Context) error {
	resp, ok := ctx.Get("object").(response.Response)
	if !ok {
		return errors.Wrap(errRespNotFoundInCtx, "retrieving object from context")
	}

	var data response.UpdateResponse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateResponse")
	}

	resp, err := api.svc.Update(ctx.Request().Context(), resp.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating response")
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (api *responseApi) destroy(ctx echo.Context) error {
	resp, ok := ctx.Get("object").(response.Response)
	if !ok {
		return errors.Wrap(errRespNotFoundInCtx, "retrieving object from context")
	}

	if err := api.svc.Delete(ctx.Request().Context(), resp.ID); err != nil {
		return errors.Wrap(err, "deleting response")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func responseCtxMiddleware(svc *response.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			resp, err := svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
			if err != nil {
				if errors.Cause(err) == response.ErrNotFound {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding response by ID")
			}
			ctx.Set("object", resp)
			return next(ctx)
		}
	}
}
