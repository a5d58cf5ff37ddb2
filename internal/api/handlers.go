package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// TrustResponse is the payload of the recommender trust endpoint.
type TrustResponse struct {
	RecommenderID string  `json:"recommenderId"`
	TrustScore    float64 `json:"trustScore"`
	Report        string  `json:"report"`
}

// handleGetTrust returns a recommender's decayed trust score and the
// human-readable report.
func (s *Server) handleGetTrust(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	recommenderID := vars["id"]
	if recommenderID == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "recommender id is required")
		return
	}

	trust, err := s.trustService.DecayedTrustScore(r.Context(), recommenderID)
	if err != nil {
		status, code := mapServiceError(err)
		respondError(w, status, code, "failed to compute trust score")
		return
	}

	respondJSON(w, http.StatusOK, TrustResponse{
		RecommenderID: recommenderID,
		TrustScore:    trust,
		Report:        s.trustService.FormatTrustReport(r.Context(), recommenderID),
	})
}

// handleGetTokenPerformance returns the latest scoring snapshot for a token.
func (s *Server) handleGetTokenPerformance(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	tokenAddress := vars["address"]
	if tokenAddress == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "token address is required")
		return
	}

	perf, err := s.perfReader.Get(r.Context(), tokenAddress)
	if err != nil {
		status, code := mapServiceError(err)
		respondError(w, status, code, "failed to load token performance")
		return
	}

	respondJSON(w, http.StatusOK, perf)
}
