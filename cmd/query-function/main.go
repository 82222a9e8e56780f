package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/Lllllllleong/waterqualityflow/internal/config"
	"github.com/Lllllllleong/waterqualityflow/internal/models"
	"github.com/Lllllllleong/waterqualityflow/internal/services"
)

var (
	queryInstance *services.QueryFunction
	once          sync.Once
	initErr       error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.HTTP("AskQuestion", askQuestion)
}

// main is required by the Go Functions Framework.
func main() {}

func setup(ctx context.Context) (*services.QueryFunction, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := cfg.NewLogger()
	slog.SetDefault(logger)
	return services.NewQuery(ctx, services.NewPlatform(cfg, logger))
}

// askQuestion answers {"question": "..."} with an AskResponse. Stage failures are
// reported in the body with status 200; only bad requests and startup failures
// produce error codes.
func askQuestion(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		queryInstance, initErr = setup(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}

	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	var req models.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Could not decode request body", "error", err)
		http.Error(w, "Bad Request: could not parse JSON", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		http.Error(w, "Bad Request: question is required", http.StatusBadRequest)
		return
	}

	res := queryInstance.Ask(r.Context(), req.Question)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(res); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}
