package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/Caqil/harn-ledger/pkg/pbft"
)

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid input")
		return
	}

	res, err := s.engine.Submit(r.Context(), req.Node, req.Record)
	if err != nil {
		msg := err.Error()
		if errors.Is(err, pbft.ErrInvalidInput) {
			msg = "Invalid input"
		}
		writeError(w, statusFor(err), msg)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("sequence") == "" {
		writeJSON(w, http.StatusOK, s.engine.SystemStatus())
		return
	}

	seq, err := strconv.ParseUint(q.Get("sequence"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid sequence")
		return
	}
	var view uint64
	if v := q.Get("view"); v != "" {
		if view, err = strconv.ParseUint(v, 10, 64); err != nil {
			writeError(w, http.StatusBadRequest, "invalid view")
			return
		}
	}

	res, err := s.engine.Status(seq, view, q.Get("node"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleViewChange(w http.ResponseWriter, r *http.Request) {
	var req ViewChangeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid input")
		return
	}

	res, err := s.engine.ViewChange(req.Node, req.View)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, res)
	case errors.Is(err, pbft.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "Invalid input")
	case errors.Is(err, pbft.ErrNotNextPrimary):
		writeError(w, http.StatusForbidden, "Only next primary can initiate view change")
	default:
		writeError(w, statusFor(err), err.Error())
	}
}

func (s *Server) handleFault(w http.ResponseWriter, r *http.Request) {
	var req FaultRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid input")
		return
	}

	if err := s.engine.SetFaulty(req.Node, req.Faulty); err != nil {
		writeFailure(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, FaultResponse{Success: true, Node: req.Node, Faulty: req.Faulty})
}
