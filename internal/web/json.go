package web

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/sweeney/pelican/internal/logic"
	"github.com/sweeney/pelican/internal/status"
)

// PressResponse is the JSON reply to POST /press.
type PressResponse struct {
	Side    string `json:"side"`
	Outcome string `json:"outcome"`
	Pending string `json:"pending"`
}

// ErrorResponse is the JSON reply for a rejected request.
type ErrorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

// handlePress feeds a simulated button edge into the arbiter. The request
// is serviced at the controller's next evaluation like a physical press.
func (s *Server) handlePress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "use POST"})
		return
	}
	side, err := logic.ParseSide(r.URL.Query().Get("side"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	outcome := s.press(side)
	log.Printf("web: press side %s: %s", side, outcome)
	writeJSON(w, http.StatusOK, PressResponse{
		Side:    side.String(),
		Outcome: string(outcome),
		Pending: s.tracker.Snapshot().Pending.String(),
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
