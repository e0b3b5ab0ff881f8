package echoapi_test

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bob-rietveld/unheard-v2-sub001/core/experiment"
	"github.com/bob-rietveld/unheard-v2-sub001/core/persona"
	"github.com/bob-rietveld/unheard-v2-sub001/core/response"
	"github.com/bob-rietveld/unheard-v2-sub001/testutil"
)

func Test_experimentApi_query(t *testing.T) {
	app := setup(t)

	path := func(search, ordering string, statuses ...string) string {
		v := make(url.Values)
		if search != "" {
			v.Add("search", search)
		}
		if ordering != "" {
			v.Add("ordering", ordering)
		}
		for _, s := range statuses {
			v.Add("status", s)
		}
		return "/v1/experiments?" + v.Encode()
	}

	now := time.Now()
	maya := testutil.CreatePersona(t, prsRepo, "Maya Chen", "Designer", "Toronto", nil, nil)
	tom := testutil.CreatePersona(t, prsRepo, "Tom Alvarez", "Nurse", "Austin", nil, nil)
	pricing := testutil.CreateExperiment(t, expRepo, "Pricing page", experiment.StatusDraft, []persona.Persona{maya, tom}, now)
	onboarding := testutil.CreateExperiment(t, expRepo, "Onboarding flow", experiment.StatusRunning, []persona.Persona{tom}, now.Add(time.Hour))
	tagline := testutil.CreateExperiment(t, expRepo, "Tagline", experiment.StatusCompleted, []persona.Persona{maya}, now.Add(2*time.Hour))

	tests := []httpTest{
		{name: "Get all", path: "/v1/experiments", wantCode: http.StatusOK, wantData: marchallList(t, tagline, onboarding, pricing)},
		{name: "search (unknown)", path: path("lol", ""), wantCode: http.StatusOK, wantData: empty},
		{name: "search=PAGE", path: path("PAGE", ""), wantCode: http.StatusOK, wantData: marchallList(t, pricing)},
		{name: "status=running", path: path("", "", "running"), wantCode: http.StatusOK, wantData: marchallList(t, onboarding)},
		{
			name: "status=draft,completed", path: path("", "", "draft", "COMPLETED"),
			wantCode: http.StatusOK, wantData: marchallList(t, tagline, pricing),
		},
		{name: "status (unknown)", path: path("", "", "lol"), wantCode: http.StatusOK, wantData: empty},
		{name: "status (blank)", path: "/v1/experiments?status=", wantCode: http.StatusOK, wantData: marchallList(t, tagline, onboarding, pricing)},
		{name: "status (blanks)", path: path("", "", " ", ""), wantCode: http.StatusOK, wantData: marchallList(t, tagline, onboarding, pricing)},
		{name: "ordering=name", path: path("", "name"), wantCode: http.StatusOK, wantData: marchallList(t, onboarding, pricing, tagline)},
		{
			name: "ordering=-status,name", path: path("", "-status,name"),
			wantCode: http.StatusOK, wantData: marchallList(t, onboarding, pricing, tagline),
		},
		{
			name: "ordering (unknown field)", path: path("", "prompt"), wantCode: http.StatusBadRequest,
			wantData: []byte(`{"ordering": "cannot order by \"prompt\""}`),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, serve(app, tt))
		})
	}
}

func Test_experimentApi_create(t *testing.T) {
	app := setup(t)
	maya := testutil.CreatePersona(t, prsRepo, "Maya Chen", "Designer", "Toronto", nil, nil)
	tom := testutil.CreatePersona(t, prsRepo, "Tom Alvarez", "Nurse", "Austin", nil, nil)
	ids := []string{tom.ID, maya.ID}
	sort.Strings(ids)

	body := func(name, prompt, status string, personaIDs ...string) []byte {
		return marchallObj(t, map[string]interface{}{
			"name":        name,
			"description": "Landing page test",
			"prompt":      prompt,
			"status":      status,
			"persona_ids": personaIDs,
		})
	}

	tests := []httpTest{
		{
			name: "empty body", method: http.MethodPost, path: "/v1/experiments", body: []byte(`{}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{
				"name": "this field is required",
				"persona_ids": "this field is required",
				"prompt": "this field is required"
			}`),
		},
		{
			name: "unknown persona", method: http.MethodPost, path: "/v1/experiments",
			body:     body("Pricing", "Would you pay $10?", "", maya.ID, unknownID),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"persona_ids": "unknown personas: " + unknownID}),
		},
		{
			name: "duplicate personas", method: http.MethodPost, path: "/v1/experiments",
			body:     body("Pricing", "Would you pay $10?", "", maya.ID, maya.ID),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"persona_ids": "this field cannot contain duplicates"}`),
		},
		{
			name: "success (draft)", method: http.MethodPost, path: "/v1/experiments",
			body:     body(" Pricing ", "Would you pay $10?", "", maya.ID, tom.ID),
			wantCode: http.StatusCreated,
			extra: experiment.Experiment{
				Name: "Pricing", Description: "Landing page test", Prompt: "Would you pay $10?",
				Status: experiment.StatusDraft, PersonaIDs: ids,
			},
		},
		{
			name: "success (completed)", method: http.MethodPost, path: "/v1/experiments",
			body:     body("Tagline", "Catchy?", "completed", tom.ID),
			wantCode: http.StatusCreated,
			extra: experiment.Experiment{
				Name: "Tagline", Description: "Landing page test", Prompt: "Catchy?",
				Status: experiment.StatusCompleted, PersonaIDs: []string{tom.ID},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(app, tt)
			want, ok := tt.extra.(experiment.Experiment)
			if !ok {
				checkCodeAndData(t, tt, rec)
				return
			}

			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			var got experiment.Experiment
			unmarchall(t, rec.Body.Bytes(), &got)

			stored, err := expRepo.GetExperiment(context.Background(), got.ID)
			require.NoError(t, err)
			assert.Equal(t, stored, got)

			if want.Status == experiment.StatusCompleted {
				require.NotNil(t, got.CompletedAt)
				assert.Equal(t, got.CreatedAt, *got.CompletedAt)
			} else {
				assert.Nil(t, got.CompletedAt)
			}
			want.ID, want.CreatedAt, want.UpdatedAt, want.CompletedAt = got.ID, got.CreatedAt, got.UpdatedAt, got.CompletedAt
			assert.Equal(t, want, got)
		})
	}
}

func Test_experimentApi_validateStep(t *testing.T) {
	app := setup(t)
	maya := testutil.CreatePersona(t, prsRepo, "Maya Chen", "Designer", "Toronto", nil, nil)

	tests := []httpTest{
		{
			name: "unknown step", method: http.MethodPost, path: "/v1/experiments/wizard/lol", body: []byte(`{}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"step": "unknown step \"lol\"; expected one of [details personas prompt]"}`),
		},
		{
			name: "details: missing name", method: http.MethodPost, path: "/v1/experiments/wizard/details",
			body: []byte(`{"description": "lol"}`), wantCode: http.StatusBadRequest,
			wantData: []byte(`{"name": "this field is required"}`),
		},
		{
			name: "details", method: http.MethodPost, path: "/v1/experiments/wizard/details",
			body: []byte(`{"name": " Pricing "}`), wantCode: http.StatusOK,
			wantData: []byte(`{"name": "Pricing", "description": ""}`),
		},
		{
			name: "personas: unknown persona", method: http.MethodPost, path: "/v1/experiments/wizard/personas",
			body:     marchallObj(t, map[string][]string{"persona_ids": {unknownID}}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"persona_ids": "unknown personas: " + unknownID}),
		},
		{
			name: "personas", method: http.MethodPost, path: "/v1/experiments/wizard/PERSONAS",
			body:     marchallObj(t, map[string][]string{"persona_ids": {maya.ID}}),
			wantCode: http.StatusOK,
			wantData: marchallObj(t, map[string][]string{"persona_ids": {maya.ID}}),
		},
		{
			name: "prompt: blank", method: http.MethodPost, path: "/v1/experiments/wizard/prompt",
			body: []byte(`{"prompt": "  "}`), wantCode: http.StatusBadRequest,
			wantData: []byte(`{"prompt": "this field is required"}`),
		},
		{
			name: "prompt", method: http.MethodPost, path: "/v1/experiments/wizard/prompt",
			body: []byte(`{"prompt": "Would you pay $10?"}`), wantCode: http.StatusOK,
			wantData: []byte(`{"prompt": "Would you pay $10?"}`),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, serve(app, tt))
		})
	}
}

func Test_experimentApi_retrieve(t *testing.T) {
	app := setup(t)
	maya := testutil.CreatePersona(t, prsRepo, "Maya Chen", "Designer", "Toronto", nil, nil)
	tom := testutil.CreatePersona(t, prsRepo, "Tom Alvarez", "Nurse", "Austin", nil, nil)
	exp := testutil.CreateExperiment(t, expRepo, "Pricing", experiment.StatusRunning, []persona.Persona{maya, tom})

	tests := []httpTest{
		{name: "unknown id", path: "/v1/experiments/" + unknownID, wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound)},
		{name: "success", path: "/v1/experiments/" + exp.ID, wantCode: http.StatusOK, wantData: marchallObj(t, exp)},
		{
			name: "personas", path: "/v1/experiments/" + exp.ID + "/personas",
			wantCode: http.StatusOK, wantData: marchallList(t, maya, tom),
		},
		{
			name: "personas (unknown experiment)", path: "/v1/experiments/" + unknownID + "/personas",
			wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, serve(app, tt))
		})
	}
}

func Test_experimentApi_update(t *testing.T) {
	app := setup(t)
	maya := testutil.CreatePersona(t, prsRepo, "Maya Chen", "Designer", "Toronto", nil, nil)
	tom := testutil.CreatePersona(t, prsRepo, "Tom Alvarez", "Nurse", "Austin", nil, nil)
	exp := testutil.CreateExperiment(t, expRepo, "Pricing", experiment.StatusDraft, []persona.Persona{maya})
	detailPath := "/v1/experiments/" + exp.ID

	put := func(t *testing.T, body string) experiment.Experiment {
		rec := serve(app, httpTest{method: http.MethodPut, path: detailPath, body: []byte(body)})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var got experiment.Experiment
		unmarchall(t, rec.Body.Bytes(), &got)
		return got
	}

	t.Run("validation", func(t *testing.T) {
		tests := []httpTest{
			{
				name: "unknown id", method: http.MethodPut, path: "/v1/experiments/" + unknownID, body: []byte(`{}`),
				wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound),
			},
			{
				name: "unknown status", method: http.MethodPut, path: detailPath, body: []byte(`{"status": "lol"}`),
				wantCode: http.StatusBadRequest, wantData: []byte(`{"status": "status must be one of [draft running completed]"}`),
			},
			{
				name: "unknown persona", method: http.MethodPut, path: detailPath,
				body:     marchallObj(t, map[string][]string{"persona_ids": {unknownID}}),
				wantCode: http.StatusBadRequest,
				wantData: marchallObj(t, map[string]string{"persona_ids": "unknown personas: " + unknownID}),
			},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				checkCodeAndData(t, tt, serve(app, tt))
			})
		}
	})

	t.Run("patch fields", func(t *testing.T) {
		got := put(t, `{"name": "Pricing v2", "prompt": "Would you pay $12?"}`)
		assert.Equal(t, "Pricing v2", got.Name)
		assert.Equal(t, "Would you pay $12?", got.Prompt)
		assert.Equal(t, experiment.StatusDraft, got.Status)
		assert.Equal(t, []string{maya.ID}, got.PersonaIDs)
	})

	t.Run("replace personas", func(t *testing.T) {
		got := put(t, fmt.Sprintf(`{"persona_ids": [%q]}`, tom.ID))
		assert.Equal(t, []string{tom.ID}, got.PersonaIDs)

		stored, err := expRepo.GetExperiment(context.Background(), exp.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{tom.ID}, stored.PersonaIDs)
	})

	var completedAt time.Time
	t.Run("complete", func(t *testing.T) {
		got := put(t, `{"status": "completed"}`)
		assert.Equal(t, experiment.StatusCompleted, got.Status)
		require.NotNil(t, got.CompletedAt)
		assert.Equal(t, got.UpdatedAt, *got.CompletedAt)
		completedAt = *got.CompletedAt
	})

	t.Run("stay completed", func(t *testing.T) {
		got := put(t, `{"status": "completed", "description": "done"}`)
		require.NotNil(t, got.CompletedAt)
		assert.Equal(t, completedAt, *got.CompletedAt)
		assert.True(t, got.UpdatedAt.After(completedAt))
	})

	t.Run("reopen", func(t *testing.T) {
		got := put(t, `{"status": "running"}`)
		assert.Equal(t, experiment.StatusRunning, got.Status)
		assert.Nil(t, got.CompletedAt)
	})
}

func Test_experimentApi_destroy(t *testing.T) {
	app := setup(t)
	ctx := context.Background()
	maya := testutil.CreatePersona(t, prsRepo, "Maya Chen", "Designer", "Toronto", nil, nil)
	exp := testutil.CreateExperiment(t, expRepo, "Pricing", experiment.StatusRunning, []persona.Persona{maya})
	resp := testutil.CreateResponse(t, respRepo, exp, maya, "Too expensive.", nil, nil)

	tests := []httpTest{
		{
			name: "unknown id", method: http.MethodDelete, path: "/v1/experiments/" + unknownID,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound),
		},
		{name: "success", method: http.MethodDelete, path: "/v1/experiments/" + exp.ID, wantCode: http.StatusNoContent},
		{
			name: "already deleted", method: http.MethodDelete, path: "/v1/experiments/" + exp.ID,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, serve(app, tt))
		})
	}

	_, err := respRepo.GetResponse(ctx, resp.ID)
	assert.Equal(t, response.ErrNotFound, err)

	// personas survive their experiments
	_, err = prsRepo.GetPersona(ctx, maya.ID)
	assert.NoError(t, err)
}

func Test_experimentApi_summary(t *testing.T) {
	app := setup(t)
	maya := testutil.CreatePersona(t, prsRepo, "Maya Chen", "Designer", "Toronto", nil, nil)
	tom := testutil.CreatePersona(t, prsRepo, "Tom Alvarez", "Nurse", "Austin", nil, nil)
	ama := testutil.CreatePersona(t, prsRepo, "Ama Owusu", "Teacher", "Accra", nil, nil)
	exp := testutil.CreateExperiment(t, expRepo, "Pricing", experiment.StatusRunning, []persona.Persona{maya, tom, ama})
	draft := testutil.CreateExperiment(t, expRepo, "Tagline", experiment.StatusDraft, []persona.Persona{maya})

	positive, mixed := experiment.SentimentPositive, experiment.SentimentMixed
	testutil.CreateResponse(t, respRepo, exp, maya, "Love it", &positive, testutil.FloatPtr(0.5))
	testutil.CreateResponse(t, respRepo, exp, maya, "Still love it", &positive, testutil.FloatPtr(1))
	testutil.CreateResponse(t, respRepo, exp, tom, "Hmm", &mixed, nil)

	tests := []httpTest{
		{
			name: "unknown id", path: "/v1/experiments/" + unknownID + "/summary",
			wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound),
		},
		{
			name: "no responses", path: "/v1/experiments/" + draft.ID + "/summary", wantCode: http.StatusOK,
			wantData: marchallObj(t, experiment.Summary{
				ExperimentID: draft.ID,
				Personas:     1,
				Sentiments:   map[string]int{"positive": 0, "neutral": 0, "negative": 0, "mixed": 0},
			}),
		},
		{
			name: "responses", path: "/v1/experiments/" + exp.ID + "/summary", wantCode: http.StatusOK,
			wantData: marchallObj(t, experiment.Summary{
				ExperimentID:       exp.ID,
				Personas:           3,
				RespondedPersonas:  2,
				Responses:          3,
				Sentiments:         map[string]int{"positive": 2, "neutral": 0, "negative": 0, "mixed": 1},
				MeanSentimentScore: testutil.FloatPtr(0.75),
			}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, serve(app, tt))
		})
	}
}
