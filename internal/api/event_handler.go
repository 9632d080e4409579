package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Conveyor/internal/domain"
)

// SubmitEvent принимает событие репозитория и создаёт runs
// для всех активных pipelines, чьи триггеры совпали.
//
// Идемпотентность: ключ "{kind}_{commit}" защищает от повторной
// доставки того же события (retry со стороны хостинга репозитория).
// POST /api/v1/events
func (h *Handler) SubmitEvent(w http.ResponseWriter, r *http.Request) {
	var req EventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	kind := domain.EventKind(req.Kind)
	if kind != domain.EventPush && kind != domain.EventPullRequest {
		BadRequest(w, "kind must be push or pull_request")
		return
	}
	if req.Commit == "" {
		BadRequest(w, "commit is required")
		return
	}

	event := domain.TriggerEvent{
		Kind:   kind,
		Ref:    req.Ref,
		Commit: req.Commit,
	}

	pipelines, err := h.pipelineRepo.ListActive(r.Context())
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	idempKey := fmt.Sprintf("%s_%s", kind, req.Commit)

	resp := EventResponse{Runs: []RunResponse{}}
	for i := range pipelines {
		pipeline := &pipelines[i]

		version, err := h.pipelineRepo.GetLatestVersion(r.Context(), pipeline.ID)
		if err != nil {
			// Pipeline без версий событий не получает
			continue
		}

		if !version.Spec.On.Matches(event) {
			continue
		}
		resp.Matched++

		// Повторная доставка того же события — возвращаем существующий run
		if existing, err := h.runRepo.GetByIdempotencyKey(r.Context(), pipeline.ID, idempKey); err == nil && existing != nil {
			resp.Runs = append(resp.Runs, RunFromDomain(*existing))
			continue
		}

		run := &domain.Run{
			ID:             uuid.New(),
			PipelineID:     pipeline.ID,
			Version:        version.Version,
			Status:         domain.RunStatusPending,
			Event:          event,
			IdempotencyKey: idempKey,
			CreatedAt:      time.Now(),
		}

		if err := h.runRepo.Create(r.Context(), run); err != nil {
			h.logger.Error("failed to create run for event",
				"pipeline_id", pipeline.ID,
				"kind", kind,
				"commit", req.Commit,
				"error", err,
			)
			continue
		}

		h.logger.Info("created run from event",
			"run_id", run.ID,
			"pipeline_id", pipeline.ID,
			"pipeline_name", pipeline.Name,
			"kind", kind,
			"ref", req.Ref,
			"commit", req.Commit,
		)

		if h.publisher != nil {
			if err := h.publisher.PublishRunCreated(r.Context(), run.ID); err != nil {
				h.logger.Warn("failed to publish run.created", "run_id", run.ID, "error", err)
			}
		}

		resp.Runs = append(resp.Runs, RunFromDomain(*run))
	}

	JSON(w, http.StatusAccepted, DataResponse{Data: resp})
}
