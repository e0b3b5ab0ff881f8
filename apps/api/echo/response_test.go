package echoapi_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bob-rietveld/unheard-v2-sub001/core/experiment"
	"github.com/bob-rietveld/unheard-v2-sub001/core/persona"
	"github.com/bob-rietveld/unheard-v2-sub001/core/response"
	"github.com/bob-rietveld/unheard-v2-sub001/testutil"
)

func Test_experimentApi_queryResponses(t *testing.T) {
	app := setup(t)
	now := time.Now()
	maya := testutil.CreatePersona(t, prsRepo, "Maya Chen", "Designer", "Toronto", nil, nil)
	tom := testutil.CreatePersona(t, prsRepo, "Tom Alvarez", "Nurse", "Austin", nil, nil)
	exp := testutil.CreateExperiment(t, expRepo, "Pricing", experiment.StatusRunning, []persona.Persona{maya, tom})
	other := testutil.CreateExperiment(t, expRepo, "Tagline", experiment.StatusRunning, []persona.Persona{maya})

	positive, negative := experiment.SentimentPositive, experiment.SentimentNegative
	r1 := testutil.CreateResponse(t, respRepo, exp, maya, "Love it", &positive, testutil.FloatPtr(0.9), now)
	r2 := testutil.CreateResponse(t, respRepo, exp, tom, "Too pricey", &negative, testutil.FloatPtr(-0.6), now.Add(time.Hour))
	r3 := testutil.CreateResponse(t, respRepo, exp, tom, "Not sure", nil, nil, now.Add(2*time.Hour))
	testutil.CreateResponse(t, respRepo, other, maya, "Catchy", &positive, nil)

	basePath := "/v1/experiments/" + exp.ID + "/responses"
	tests := []httpTest{
		{
			name: "unknown experiment", path: "/v1/experiments/" + unknownID + "/responses",
			wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound),
		},
		{name: "all", path: basePath, wantCode: http.StatusOK, wantData: marchallList(t, r3, r2, r1)},
		{name: "sentiment=positive", path: basePath + "?sentiment=positive", wantCode: http.StatusOK, wantData: marchallList(t, r1)},
		{
			name: "sentiment=positive,negative", path: basePath + "?sentiment=POSITIVE&sentiment=negative",
			wantCode: http.StatusOK, wantData: marchallList(t, r2, r1),
		},
		{name: "sentiment (unknown)", path: basePath + "?sentiment=lol", wantCode: http.StatusOK, wantData: empty},
		{name: "sentiment (blank)", path: basePath + "?sentiment=", wantCode: http.StatusOK, wantData: marchallList(t, r3, r2, r1)},
		{
			name: "ordering=-sentiment_score", path: basePath + "?sentiment=positive&sentiment=negative&ordering=-sentiment_score",
			wantCode: http.StatusOK, wantData: marchallList(t, r1, r2),
		},
		{
			name: "ordering (unknown field)", path: basePath + "?ordering=content", wantCode: http.StatusBadRequest,
			wantData: []byte(`{"ordering": "cannot order by \"content\""}`),
		},
		{
			name: "no responses", path: "/v1/experiments/" + testutil.CreateExperiment(t, expRepo, "Empty", experiment.StatusDraft, nil).ID + "/responses",
			wantCode: http.StatusOK, wantData: empty,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, serve(app, tt))
		})
	}
}

func Test_experimentApi_createResponse(t *testing.T) {
	app := setup(t)
	maya := testutil.CreatePersona(t, prsRepo, "Maya Chen", "Designer", "Toronto", nil, nil)
	outsider := testutil.CreatePersona(t, prsRepo, "Tom Alvarez", "Nurse", "Austin", nil, nil)
	exp := testutil.CreateExperiment(t, expRepo, "Pricing", experiment.StatusRunning, []persona.Persona{maya})
	basePath := "/v1/experiments/" + exp.ID + "/responses"

	body := func(personaID, content, sentiment string, score *float64) []byte {
		data := map[string]interface{}{"persona_id": personaID, "content": content}
		if sentiment != "" {
			data["sentiment"] = sentiment
		}
		if score != nil {
			data["sentiment_score"] = *score
		}
		return marchallObj(t, data)
	}

	tests := []httpTest{
		{
			name: "unknown experiment", method: http.MethodPost, path: "/v1/experiments/" + unknownID + "/responses",
			body: body(maya.ID, "Hi", "", nil), wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound),
		},
		{
			name: "empty body", method: http.MethodPost, path: basePath, body: []byte(`{}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"persona_id": "this field is required", "content": "this field is required"}`),
		},
		{
			name: "unknown persona", method: http.MethodPost, path: basePath, body: body(unknownID, "Hi", "", nil),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"persona_id": "persona not found"}`),
		},
		{
			name: "persona not in experiment", method: http.MethodPost, path: basePath, body: body(outsider.ID, "Hi", "", nil),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"persona_id": "persona is not part of this experiment"}`),
		},
		{
			name: "unknown sentiment", method: http.MethodPost, path: basePath, body: body(maya.ID, "Hi", "angry", nil),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"sentiment": "sentiment must be one of positive, neutral, negative or mixed"}`),
		},
		{
			name: "score out of range", method: http.MethodPost, path: basePath,
			body: body(maya.ID, "Hi", "positive", testutil.FloatPtr(1.5)), wantCode: http.StatusBadRequest,
			wantData: []byte(`{"sentiment_score": "sentiment_score must be 1 or less"}`),
		},
		{
			name: "success", method: http.MethodPost, path: basePath,
			body:     body(maya.ID, "  Too expensive for me. ", "Negative", testutil.FloatPtr(-0.7)),
			wantCode: http.StatusCreated,
			extra: response.Response{
				ExperimentID: exp.ID, PersonaID: maya.ID, Content: "Too expensive for me.",
				Sentiment: testutil.StrPtr("negative"), SentimentScore: testutil.FloatPtr(-0.7),
			},
		},
		{
			name: "success (no sentiment)", method: http.MethodPost, path: basePath, body: body(maya.ID, "Meh.", "", nil),
			wantCode: http.StatusCreated,
			extra:    response.Response{ExperimentID: exp.ID, PersonaID: maya.ID, Content: "Meh."},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(app, tt)
			want, ok := tt.extra.(response.Response)
			if !ok {
				checkCodeAndData(t, tt, rec)
				return
			}

			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			var got response.Response
			unmarchall(t, rec.Body.Bytes(), &got)

			stored, err := respRepo.GetResponse(context.Background(), got.ID)
			require.NoError(t, err)
			assert.Equal(t, stored, got)

			want.ID, want.CreatedAt, want.UpdatedAt = got.ID, got.CreatedAt, got.UpdatedAt
			assert.Equal(t, want, got)
		})
	}
}

func Test_responseApi_retrieve(t *testing.T) {
	app := setup(t)
	maya := testutil.CreatePersona(t, prsRepo, "Maya Chen", "Designer", "Toronto", nil, nil)
	exp := testutil.CreateExperiment(t, expRepo, "Pricing", experiment.StatusRunning, []persona.Persona{maya})
	resp := testutil.CreateResponse(t, respRepo, exp, maya, "Love it", nil, nil)

	tests := []httpTest{
		{name: "unknown id", path: "/v1/responses/" + unknownID, wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound)},
		{name: "malformed id", path: "/v1/responses/lol", wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound)},
		{name: "success", path: "/v1/responses/" + resp.ID, wantCode: http.StatusOK, wantData: marchallObj(t, resp)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, serve(app, tt))
		})
	}
}

func Test_responseApi_update(t *testing.T) {
	app := setup(t)
	maya := testutil.CreatePersona(t, prsRepo, "Maya Chen", "Designer", "Toronto", nil, nil)
	exp := testutil.CreateExperiment(t, expRepo, "Pricing", experiment.StatusRunning, []persona.Persona{maya})
	resp := testutil.CreateResponse(t, respRepo, exp, maya, "Love it", nil, nil)
	detailPath := "/v1/responses/" + resp.ID

	put := func(t *testing.T, body string) response.Response {
		rec := serve(app, httpTest{method: http.MethodPut, path: detailPath, body: []byte(body)})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var got response.Response
		unmarchall(t, rec.Body.Bytes(), &got)
		return got
	}

	t.Run("validation", func(t *testing.T) {
		tests := []httpTest{
			{
				name: "unknown id", method: http.MethodPut, path: "/v1/responses/" + unknownID, body: []byte(`{}`),
				wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound),
			},
			{
				name: "blank content", method: http.MethodPut, path: detailPath, body: []byte(`{"content": "  "}`),
				wantCode: http.StatusBadRequest, wantData: []byte(`{"content": "this field cannot be blank"}`),
			},
			{
				name: "score out of range", method: http.MethodPut, path: detailPath, body: []byte(`{"sentiment_score": -2}`),
				wantCode: http.StatusBadRequest, wantData: []byte(`{"sentiment_score": "sentiment_score must be -1 or greater"}`),
			},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				checkCodeAndData(t, tt, serve(app, tt))
			})
		}
	})

	t.Run("set sentiment", func(t *testing.T) {
		got := put(t, `{"sentiment": "mixed", "sentiment_score": 0.1}`)
		assert.Equal(t, "Love it", got.Content)
		assert.Equal(t, testutil.StrPtr("mixed"), got.Sentiment)
		assert.Equal(t, testutil.FloatPtr(0.1), got.SentimentScore)
		assert.True(t, got.UpdatedAt.After(resp.UpdatedAt))
	})

	t.Run("patch content", func(t *testing.T) {
		got := put(t, `{"content": "Love it, mostly."}`)
		assert.Equal(t, "Love it, mostly.", got.Content)
		assert.Equal(t, testutil.StrPtr("mixed"), got.Sentiment)
	})

	t.Run("clear sentiment", func(t *testing.T) {
		got := put(t, `{"clear_sentiment": true, "sentiment": "positive"}`)
		assert.Nil(t, got.Sentiment)
		assert.Nil(t, got.SentimentScore)

		stored, err := respRepo.GetResponse(context.Background(), resp.ID)
		require.NoError(t, err)
		assert.Equal(t, stored, got)
	})
}

func Test_responseApi_destroy(t *testing.T) {
	app := setup(t)
	maya := testutil.CreatePersona(t, prsRepo, "Maya Chen", "Designer", "Toronto", nil, nil)
	exp := testutil.CreateExperiment(t, expRepo, "Pricing", experiment.StatusRunning, []persona.Persona{maya})
	resp := testutil.CreateResponse(t, respRepo, exp, maya, "Love it", nil, nil)

	tests := []httpTest{
		{
			name: "unknown id", method: http.MethodDelete, path: "/v1/responses/" + unknownID,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound),
		},
		{name: "success", method: http.MethodDelete, path: fmt.Sprintf("/v1/responses/%s", resp.ID), wantCode: http.StatusNoContent},
		{
			name: "already deleted", method: http.MethodDelete, path: "/v1/responses/" + resp.ID,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, serve(app, tt))
		})
	}
}
