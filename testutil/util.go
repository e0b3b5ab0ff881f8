package testutil

import (
	"context"
	"path/filepath"
	"sort"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/bob-rietveld/unheard-v2-sub001/core"
	"github.com/bob-rietveld/unheard-v2-sub001/core/experiment"
	"github.com/bob-rietveld/unheard-v2-sub001/core/persona"
	"github.com/bob-rietveld/unheard-v2-sub001/core/response"
	"github.com/bob-rietveld/unheard-v2-sub001/services/logger"
	"github.com/bob-rietveld/unheard-v2-sub001/storage/database"
)

// PrepareDB returns a migrated sqlite database living in the test's temp dir.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()
	database.SetMigrationLogger(zap.NewNop())
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(db); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	return db
}

// NewConfig returns the config used by tests.
func NewConfig(t *testing.T) *core.Config {
	t.Helper()
	return &core.Config{
		Env:      "TEST",
		Build:    "test",
		AppName:  "Unheard",
		TestMode: true,
		WorkDir:  t.TempDir(),
		Server: core.ServerConfig{
			ShutdownTimeout: time.Second,
			DisableReqLogs:  true,
		},
		Database: core.DatabaseConfig{Engine: database.EngineSQLite},
	}
}

func NewValidator() (*validator.Validate, ut.Translator) {
	validate, translator := core.NewValidator()
	response.InitValidators(validate, translator)
	return validate, translator
}

func NewLogger(t *testing.T) *logsvc.RollbarLogger {
	return logsvc.NewRollbarLogger(zap.NewNop(), NewConfig(t))
}

func tstamp(createdAt []time.Time) time.Time {
	if len(createdAt) > 0 {
		return createdAt[0].UTC()
	}
	return time.Now().UTC()
}

func CreatePersona(
	t *testing.T,
	repo persona.Repository,
	name, occupation, location string,
	age *int,
	traits []string,
	createdAt ...time.Time,
) persona.Persona {
	t.Helper()
	if traits == nil {
		traits = []string{}
	}
	ts := tstamp(createdAt)
	prs := persona.Persona{
		Name:       name,
		Age:        age,
		Occupation: occupation,
		Location:   location,
		Traits:     traits,
		CreatedAt:  ts,
		UpdatedAt:  ts,
	}
	prs, err := repo.CreatePersona(context.Background(), prs)
	if err != nil {
		t.Fatalf("CreatePersona() failed: %v", err)
	}
	return prs
}

func CreateExperiment(
	t *testing.T,
	repo experiment.Repository,
	name string,
	status experiment.Status,
	personas []persona.Persona,
	createdAt ...time.Time,
) experiment.Experiment {
	t.Helper()
	ts := tstamp(createdAt)
	ids := make([]string, 0, len(personas))
	for _, prs := range personas {
		ids = append(ids, prs.ID)
	}
	sort.Strings(ids)
	exp := experiment.Experiment{
		Name:       name,
		Prompt:     "What do you think about " + name + "?",
		Status:     status,
		PersonaIDs: ids,
		CreatedAt:  ts,
		UpdatedAt:  ts,
	}
	if status == experiment.StatusCompleted {
		exp.CompletedAt = &ts
	}
	exp, err := repo.CreateExperiment(context.Background(), exp)
	if err != nil {
		t.Fatalf("CreateExperiment() failed: %v", err)
	}
	return exp
}

func CreateResponse(
	t *testing.T,
	repo response.Repository,
	exp experiment.Experiment,
	prs persona.Persona,
	content string,
	sentiment *string,
	score *float64,
	createdAt ...time.Time,
) response.Response {
	t.Helper()
	ts := tstamp(createdAt)
	resp := response.Response{
		ExperimentID:   exp.ID,
		PersonaID:      prs.ID,
		Content:        content,
		Sentiment:      sentiment,
		SentimentScore: score,
		CreatedAt:      ts,
		UpdatedAt:      ts,
	}
	resp, err := repo.CreateResponse(context.Background(), resp)
	if err != nil {
		t.Fatalf("CreateResponse() failed: %v", err)
	}
	return resp
}

func IntPtr(i int) *int { return &i }

func StrPtr(s string) *string { return &s }

func FloatPtr(f float64) *float64 { return &f }
