package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/newsloom/newsloom/internal/detect"
	"github.com/newsloom/newsloom/internal/storage"
)

// DetectionRunner runs the anomaly checks synchronously for the manual
// "run detections now" endpoint.
type DetectionRunner interface {
	RunDetections(ctx context.Context) (detect.Summary, error)
}

// AppDeps holds handler dependencies.
type AppDeps struct {
	Store  *storage.Store
	Runner DetectionRunner
	Token  string // empty disables bearer auth
}

// NewAppHandler builds the query surface router. All engine work happens in
// background jobs; handlers only read committed state, except for the
// explicit manual detection trigger.
func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Get("/storylines", handleListStorylines(deps))
		r.Get("/storylines/{id}", handleGetStoryline(deps))
		r.Get("/alerts", handleListAlerts(deps))
		r.Post("/alerts/{id}/acknowledge", handleAcknowledgeAlert(deps))
		r.Post("/detections/run", handleRunDetections(deps))
		r.Post("/rebuild", handleRebuild(deps))
		r.Get("/stats", handleStats(deps))
	})

	return r
}

type storylineJSON struct {
	ID            int64   `json:"id"`
	Label         string  `json:"label"`
	Status        string  `json:"status"`
	MomentumScore float64 `json:"momentum_score"`
	ArticleCount  int     `json:"article_count"`
	FirstDate     string  `json:"first_date"`
	LastDate      string  `json:"last_date"`
}

func toStorylineJSON(st storage.Storyline) storylineJSON {
	return storylineJSON{
		ID:            st.ID,
		Label:         st.Label,
		Status:        st.Status,
		MomentumScore: st.MomentumScore,
		ArticleCount:  st.ArticleCount,
		FirstDate:     st.FirstDate.Format(storage.DateLayout),
		LastDate:      st.LastDate.Format(storage.DateLayout),
	}
}

func handleListStorylines(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		var filter storage.StorylineFilter
		filter.Status = q.Get("status")
		if raw := q.Get("min_momentum"); raw != "" {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid min_momentum %q", raw)
				return
			}
			filter.MinMomentum = v
			filter.HasMinMomentum = true
		}
		for param, dst := range map[string]*time.Time{"from": &filter.From, "to": &filter.To} {
			if raw := q.Get(param); raw != "" {
				t, err := time.Parse(storage.DateLayout, raw)
				if err != nil {
					httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid %s date %q", param, raw)
					return
				}
				*dst = t
			}
		}

		storylines, err := deps.Store.ListStorylines(filter)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "listing storylines: %v", err)
			return
		}

		out := make([]storylineJSON, len(storylines))
		for i, st := range storylines {
			out[i] = toStorylineJSON(st)
		}
		respondJSON(w, http.StatusOK, map[string]any{"storylines": out})
	}
}

func handleGetStoryline(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid storyline id")
			return
		}

		st, err := deps.Store.GetStoryline(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "storyline %d not found", id)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "loading storyline: %v", err)
			return
		}

		members, err := deps.Store.ListStorylineMembers(id)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "loading members: %v", err)
			return
		}

		type memberJSON struct {
			ID            int64  `json:"id"`
			Title         string `json:"title"`
			Date          string `json:"date"`
			Tier          string `json:"tier"`
			SequenceOrder int    `json:"sequence_order"`
		}
		articles := make([]memberJSON, len(members))
		for i, m := range members {
			articles[i] = memberJSON{
				ID:            m.ArticleID,
				Title:         m.Title,
				Date:          m.Date.Format(storage.DateLayout),
				Tier:          m.Tier,
				SequenceOrder: m.SequenceOrder,
			}
		}
		respondJSON(w, http.StatusOK, map[string]any{
			"storyline": toStorylineJSON(st),
			"articles":  articles,
		})
	}
}

type alertJSON struct {
	ID           string          `json:"id"`
	Kind         string          `json:"kind"`
	Context      json.RawMessage `json:"context"`
	TriggeredAt  string          `json:"triggered_at"`
	Description  string          `json:"description"`
	Severity     string          `json:"severity"`
	Acknowledged bool            `json:"acknowledged"`
}

func handleListAlerts(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		filter := storage.AlertFilter{
			Kind:     q.Get("kind"),
			Severity: q.Get("severity"),
		}
		if raw := q.Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid limit %q", raw)
				return
			}
			filter.Limit = n
		}
		if raw := q.Get("since"); raw != "" {
			t, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid since timestamp %q", raw)
				return
			}
			filter.Since = t
		}

		alerts, err := deps.Store.ListAlerts(filter)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "listing alerts: %v", err)
			return
		}

		out := make([]alertJSON, len(alerts))
		for i, a := range alerts {
			ctxJSON := a.ContextJSON
			if ctxJSON == "" {
				ctxJSON = "{}"
			}
			out[i] = alertJSON{
				ID:           a.ID,
				Kind:         a.Kind,
				Context:      json.RawMessage(ctxJSON),
				TriggeredAt:  a.TriggeredAt.UTC().Format(time.RFC3339),
				Description:  a.Description,
				Severity:     a.Severity,
				Acknowledged: a.Acknowledged,
			}
		}
		respondJSON(w, http.StatusOK, map[string]any{"alerts": out})
	}
}

func handleAcknowledgeAlert(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		updated, err := deps.Store.AcknowledgeAlert(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "alert %s not found", id)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "acknowledging alert: %v", err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"success": true, "updated": updated})
	}
}

func handleRunDetections(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary, err := deps.Runner.RunDetections(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "running detections: %v", err)
			return
		}
		respondJSON(w, http.StatusOK, summary)
	}
}

func handleRebuild(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		incremental := r.URL.Query().Get("incremental") == "true"

		payload, err := json.Marshal(map[string]bool{"incremental": incremental})
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "marshaling payload: %v", err)
			return
		}
		job := storage.Job{
			ID:          uuid.New().String(),
			Type:        storage.JobRebuildStorylines,
			PayloadJSON: string(payload),
		}
		if err := deps.Store.EnqueueJob(job); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "enqueueing rebuild: %v", err)
			return
		}
		respondJSON(w, http.StatusAccepted, map[string]string{"status": "queued", "job_id": job.ID})
	}
}

func handleStats(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		statusCounts, err := deps.Store.StorylineStatusCounts()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "counting storylines: %v", err)
			return
		}
		alertStats, err := deps.Store.GetAlertStats(time.Now().UTC())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "counting alerts: %v", err)
			return
		}

		total := 0
		for _, n := range statusCounts {
			total += n
		}
		respondJSON(w, http.StatusOK, map[string]any{
			"storylines": map[string]any{
				"total":     total,
				"by_status": statusCounts,
			},
			"alerts": map[string]any{
				"total":          alertStats.Total,
				"unacknowledged": alertStats.Unacknowledged,
				"recent_24h":     alertStats.Recent24h,
			},
		})
	}
}
