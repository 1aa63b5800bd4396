package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/rabbitlabs/rabbit/internal/dataset"
	"github.com/rabbitlabs/rabbit/internal/pipeline"
	"github.com/rabbitlabs/rabbit/internal/synth"
)

// profileSampleRows bounds the sample included in upload responses.
const profileSampleRows = 5

// CreateSessionResponse is the response body for session creation.
type CreateSessionResponse struct {
	ID uuid.UUID `json:"id"`
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	id := uuid.New()

	s.mu.Lock()
	s.sessions[id] = pipeline.NewSession()
	s.mu.Unlock()

	if s.log != nil {
		s.log.Info("api: session created", "id", id)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(CreateSessionResponse{ID: id})
}

// UploadDatasetResponse carries the cleaned dataset's profile and the
// cleaning report.
type UploadDatasetResponse struct {
	Profile dataset.Profile `json:"profile"`
	Report  dataset.Report  `json:"report"`
}

// uploadDataset ingests the request body as CSV, cleans it and attaches the
// result to the session. Re-uploading replaces the dataset; history is kept.
func (s *Server) uploadDataset(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}

	ds, err := dataset.ReadCSV(r.Context(), r.Body)
	if err != nil {
		http.Error(w, "Failed to parse CSV: "+err.Error(), http.StatusBadRequest)
		return
	}

	cleaned, report, err := dataset.Clean(ds)
	if err != nil {
		http.Error(w, "Failed to clean dataset: "+err.Error(), http.StatusInternalServerError)
		return
	}
	session.SetDataset(cleaned)

	if s.log != nil {
		s.log.Info("api: dataset attached",
			"rows", report.RowsAfter,
			"duplicatesRemoved", report.DuplicatesRemoved)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(UploadDatasetResponse{
		Profile: cleaned.Profile(profileSampleRows),
		Report:  report,
	})
}

// DashboardResponse carries the synthesized chart candidates.
type DashboardResponse struct {
	Charts []pipeline.ChartCandidate `json:"charts"`
}

func (s *Server) dashboard(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}

	ds := session.Dataset()
	if ds == nil {
		http.Error(w, "No dataset uploaded", http.StatusConflict)
		return
	}

	charts := s.pipe.Dashboard(r.Context(), ds)
	if charts == nil {
		charts = []pipeline.ChartCandidate{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(DashboardResponse{Charts: charts})
}

// ChatRequest is the request body for a chat turn. Audio is transcribed when
// no question text is given and a transcriber is configured.
type ChatRequest struct {
	Question string `json:"question"`
	Audio    []byte `json:"audio,omitempty"`
}

// ChatResponse is a chat turn result, with optional synthesized speech.
type ChatResponse struct {
	pipeline.Result
	Speech []byte `json:"speech,omitempty"`
}

func (s *Server) chat(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	question := req.Question
	if question == "" && len(req.Audio) > 0 && s.transcriber != nil {
		transcribed, err := s.transcriber.Transcribe(r.Context(), req.Audio)
		if err != nil {
			http.Error(w, "Failed to transcribe audio: "+err.Error(), http.StatusBadGateway)
			return
		}
		question = transcribed
	}
	if question == "" {
		http.Error(w, "question is required", http.StatusBadRequest)
		return
	}

	result, err := s.pipe.Chat(r.Context(), session, question)
	if err != nil {
		if errors.Is(err, pipeline.ErrNoDataset) {
			http.Error(w, "No dataset uploaded", http.StatusConflict)
			return
		}
		http.Error(w, "Chat turn failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	resp := ChatResponse{Result: result}
	if s.speaker != nil {
		speech, err := s.speaker.Speak(r.Context(), result.Answer)
		if err != nil {
			if s.log != nil {
				s.log.Warn("api: speech synthesis failed", "error", err)
			}
		} else {
			resp.Speech = speech
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// HistoryResponse carries the session's conversation history.
type HistoryResponse struct {
	History []synth.Turn `json:"history"`
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}

	history := session.History()
	if history == nil {
		history = []synth.Turn{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(HistoryResponse{History: history})
}
