package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/bob-rietveld/unheard-v2-sub001/core/persona"
	"github.com/bob-rietveld/unheard-v2-sub001/core/response"
)

var errPrsNotFoundInCtx = errors.New("persona object not found in echo.Context")

type personaApi struct {
	svc       *persona.Service
	responses *response.Service
}

func registerPersonaAPI(g *echo.Group, svc *persona.Service, responses *response.Service) {
	api := personaApi{svc: svc, responses: responses}

	pg := g.Group("/personas")
	pg.GET("", api.query)
	pg.POST("", api.create)

	// detail endpoints
	dg := pg.Group("/:id", personaCtxMiddleware(svc))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy)
	dg.GET("/responses", api.queryResponses)
}

// Handlers

func (api *personaApi) create(ctx echo.Context) error {
	var data persona.NewPersona
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPersona")
	}

	prs, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating persona")
	}
	return ctx.JSON(http.StatusCreated, prs)
}

func (api *personaApi) query(ctx echo.Context) error {
	filter := new(persona.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []persona.Persona{})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	personas, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying personas")
	}
	if personas == nil {
		personas = []persona.Persona{}
	}
	return ctx.JSON(http.StatusOK, personas)
}

func (api *personaApi) retrieve(ctx echo.Context) error {
	prs, ok := ctx.Get("object").(persona.Persona)
	if !ok {
		return errors.Wrap(errPrsNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, prs)
}

func (api *personaApi) update(ctx echo.Context) error {
	prs, ok := ctx.Get("object").(persona.Persona)
	if !ok {
		return errors.Wrap(errPrsNotFoundInCtx, "retrieving object from context")
	}

	var data persona.UpdatePersona
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdatePersona")
	}

	prs, err := api.svc.Update(ctx.Request().Context(), prs.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating persona")
	}
	return ctx.JSON(http.StatusOK, prs)
}

func (api *personaApi) destroy(ctx echo.Context) error {
	prs, ok := ctx.Get("object").(persona.Persona)
	if !ok {
		return errors.Wrap(errPrsNotFoundInCtx, "retrieving object from context")
	}

	if err := api.svc.Delete(ctx.Request().Context(), prs.ID); err != nil {
		return errors.Wrap(err, "deleting persona")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *personaApi) queryResponses(ctx echo.Context) error {
	prs, ok := ctx.Get("object").(persona.Persona)
	if !ok {
		return errors.Wrap(errPrsNotFoundInCtx, "retrieving object from context")
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	responses, err := api.responses.QueryByPersona(ctx.Request().Context(), prs.ID, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying persona responses")
	}
	return ctx.JSON(http.StatusOK, responses)
}

func personaCtxMiddleware(svc *persona.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			prs, err := svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
			if err != nil {
				if errors.Cause(err) == persona.ErrNotFound {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding persona by ID")
			}
			ctx.Set("object", prs)
			return next(ctx)
		}
	}
}
