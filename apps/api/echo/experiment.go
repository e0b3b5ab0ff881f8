package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/bob-rietveld/unheard-v2-sub001/core/experiment"
	"github.com/bob-rietveld/unheard-v2-sub001/core/response"
)

var errExpNotFoundInCtx = errors.New("experiment object not found in echo.Context")

type experimentApi struct {
	svc       *experiment.Service
	responses *response.Service
}

func registerExperimentAPI(g *echo.Group, svc *experiment.Service, responses *response.Service) {
	api := experimentApi{svc: svc, responses: responses}

	eg := g.Group("/experiments")
	eg.GET("", api.query)
	eg.POST("", api.create)
	eg.POST("/wizard/:step", api.validateStep)

	// detail endpoints
	dg := eg.Group("/:id", experimentCtxMiddleware(svc))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy)
	dg.GET("/personas", api.queryPersonas)
	dg.GET("/summary", api.summary)
	dg.GET("/responses", api.queryResponses)
	dg.POST("/responses", api.createResponse)
}

// Handlers

func (api *experimentApi) create(ctx echo.Context) error {
	var data experiment.NewExperiment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewExperiment")
	}

	exp, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating experiment")
	}
	return ctx.JSON(http.StatusCreated, exp)
}

// validateStep validates a single wizard step and returns it cleaned.
func (api *experimentApi) validateStep(ctx echo.Context) error {
	step, err := experiment.NewStep(ctx.Param("step"))
	if err != nil {
		return err
	}
	if err = ctx.Bind(step); err != nil {
		return errors.Wrap(err, "binding to wizard step")
	}
	if err = api.svc.ValidateStep(ctx.Request().Context(), step); err != nil {
		return errors.Wrap(err, "validating wizard step")
	}
	return ctx.JSON(http.StatusOK, step)
}

func (api *experimentApi) query(ctx echo.Context) error {
	filter := new(experiment.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []experiment.Experiment{})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	experiments, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying experiments")
	}
	if experiments == nil {
		experiments = []experiment.Experiment{}
	}
	return ctx.JSON(http.StatusOK, experiments)
}

func (api *experimentApi) retrieve(ctx echo.Context) error {
	exp, ok := ctx.Get("object").(experiment.Experiment)
	if !ok {
		return errors.Wrap(errExpNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, exp)
}

func (api *experimentApi) update(ctx echo.Context) error {
	exp, ok := ctx.Get("object").(experiment.Experiment)
	if !ok {
		return errors.Wrap(errExpNotFoundInCtx, "retrieving object from context")
	}

	var data experiment.UpdateExperiment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateExperiment")
	}

	exp, err := api.svc.Update(ctx.Request().Context(), exp.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating experiment")
	}
	return ctx.JSON(http.StatusOK, exp)
}

func (api *experimentApi) destroy(ctx echo.Context) error {
	exp, ok := ctx.Get("object").(experiment.Experiment)
	if !ok {
		return errors.Wrap(errExpNotFoundInCtx, "retrieving object from context")
	}

	if err := api.svc.Delete(ctx.Request().Context(), exp.ID); err != nil {
		return errors.Wrap(err, "deleting experiment")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *experimentApi) queryPersonas(ctx echo.Context) error {
	exp, ok := ctx.Get("object").(experiment.Experiment)
	if !ok {
		return errors.Wrap(errExpNotFoundInCtx, "retrieving object from context")
	}

	personas, err := api.svc.Personas(ctx.Request().Context(), exp.ID)
	if err != nil {
		return errors.Wrap(err, "querying experiment personas")
	}
	return ctx.JSON(http.StatusOK, personas)
}

func (api *experimentApi) summary(ctx echo.Context) error {
	exp, ok := ctx.Get("object").(experiment.Experiment)
	if !ok {
		return errors.Wrap(errExpNotFoundInCtx, "retrieving object from context")
	}

	summary, err := api.svc.Summary(ctx.Request().Context(), exp.ID)
	if err != nil {
		return errors.Wrap(err, "summarizing experiment")
	}
	return ctx.JSON(http.StatusOK, summary)
}

func (api *experimentApi) queryResponses(ctx echo.Context) error {
	exp, ok := ctx.Get("object").(experiment.Experiment)
	if !ok {
		return errors.Wrap(errExpNotFoundInCtx, "retrieving object from context")
	}
	filter := new(response.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []response.Response{})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	responses, err := api.responses.QueryByExperiment(ctx.Request().Context(), exp.ID, filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying experiment responses")
	}
	return ctx.JSON(http.StatusOK, responses)
}

func (api *experimentApi) createResponse(ctx echo.Context) error {
	exp, ok := ctx.Get("object").(experiment.Experiment)
	if !ok {
		return errors.Wrap(errExpNotFoundInCtx, "retrieving object from context")
	}

	var data response.NewResponse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewResponse")
	}
	data.ExperimentID = exp.ID

	resp, err := api.responses.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating response")
	}
	return ctx.JSON(http.StatusCreated, resp)
}

func experimentCtxMiddleware(svc *experiment.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			exp, err := svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
			if err != nil {
				if errors.Cause(err) == experiment.ErrNotFound {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding experiment by ID")
			}
			ctx.Set("object", exp)
			return next(ctx)
		}
	}
}
