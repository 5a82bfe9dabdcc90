package server

import (
	"net/http"
	"strconv"

	"github.com/mfarzz/jobai/internal/errors"
	"github.com/mfarzz/jobai/internal/observability"
	"github.com/mfarzz/jobai/internal/quest"

	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const apiTracerName = "jobai.api"

// parseJobID reads the {id} path value as a job id
func parseJobID(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errors.NewValidationError(errors.ErrCodeInvalidRequest, "job id must be numeric, got "+strconv.Quote(raw), err)
	}
	return id, nil
}

func failSpan(span oteltrace.Span, err error) {
	span.RecordError(err)
	span.SetAttributes(attribute.String("error.type", string(errors.TypeOf(err))))
}

// createAnalyzeHandler computes and stores the caller's analysis for a job
func (s *Server) createAnalyzeHandler(om *observability.ObservabilityManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := om.Tracer(apiTracerName).Start(r.Context(), "api.analyze")
		defer span.End()

		jobID, err := parseJobID(r)
		if err != nil {
			failSpan(span, err)
			writeAppError(w, s.Logger, err)
			return
		}
		span.SetAttributes(attribute.Int64("job.id", jobID))

		analysis, err := s.deps.Analysis.Analyze(ctx, userIDFrom(ctx), jobID)
		if err != nil {
			failSpan(span, err)
			writeAppError(w, s.Logger, err)
			return
		}

		span.SetAttributes(
			attribute.Int("analysis.match_score", analysis.MatchScore),
			attribute.String("analysis.source", string(analysis.Source)),
		)
		writeJSON(w, http.StatusOK, analysis)
	}
}

// createGetAnalysisHandler returns the stored analysis without recomputing it
func (s *Server) createGetAnalysisHandler(om *observability.ObservabilityManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := om.Tracer(apiTracerName).Start(r.Context(), "api.get_analysis")
		defer span.End()

		jobID, err := parseJobID(r)
		if err != nil {
			failSpan(span, err)
			writeAppError(w, s.Logger, err)
			return
		}

		analysis, err := s.deps.Analysis.GetExisting(ctx, userIDFrom(ctx), jobID)
		if err != nil {
			failSpan(span, err)
			writeAppError(w, s.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, analysis)
	}
}

func (s *Server) createListQuestsHandler(om *observability.ObservabilityManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := om.Tracer(apiTracerName).Start(r.Context(), "api.list_quests")
		defer span.End()

		jobID, err := parseJobID(r)
		if err != nil {
			failSpan(span, err)
			writeAppError(w, s.Logger, err)
			return
		}
		count := quest.ParseCount(r.URL.Query().Get("count"))
		span.SetAttributes(attribute.Int64("job.id", jobID), attribute.Int("quest.count", count))

		list, err := s.deps.Quests.List(ctx, jobID, userIDFrom(ctx), count)
		if err != nil {
			failSpan(span, err)
			writeAppError(w, s.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func (s *Server) createGenerateQuestsHandler(om *observability.ObservabilityManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := om.Tracer(apiTracerName).Start(r.Context(), "api.generate_quests")
		defer span.End()

		jobID, err := parseJobID(r)
		if err != nil {
			failSpan(span, err)
			writeAppError(w, s.Logger, err)
			return
		}
		count := quest.ParseCount(r.URL.Query().Get("count"))
		span.SetAttributes(attribute.Int64("job.id", jobID), attribute.Int("quest.count", count))

		quests, err := s.deps.Quests.Generate(ctx, jobID, count)
		if err != nil {
			failSpan(span, err)
			writeAppError(w, s.Logger, err)
			return
		}

		resp := GenerateResponse{Quests: quests}
		if len(quests) > 0 {
			resp.Quest = &quests[0]
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) createSubmitHandler(om *observability.ObservabilityManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := om.Tracer(apiTracerName).Start(r.Context(), "api.submit_quest")
		defer span.End()

		var req SubmitRequest
		if err := parseJSONRequest(r, &req); err != nil {
			appErr := errors.NewValidationError(errors.ErrCodeInvalidRequest, err.Error(), err)
			failSpan(span, appErr)
			writeAppError(w, s.Logger, appErr)
			return
		}

		questID := r.PathValue("id")
		span.SetAttributes(attribute.String("quest.id", questID))

		result, err := s.deps.Quests.Submit(ctx, questID, userIDFrom(ctx), req.Option)
		if err != nil {
			failSpan(span, err)
			writeAppError(w, s.Logger, err)
			return
		}

		span.SetAttributes(attribute.Bool("quest.correct", result.IsCorrect))
		writeJSON(w, http.StatusOK, result)
	}
}
