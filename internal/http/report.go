package http

import (
	"context"
	"net/http"
	"strconv"

	"ledger/internal/log"
)

// ReportFunc renders the current statement as a PDF and suggests a
// download name for it.
type ReportFunc func(ctx context.Context) (pdf []byte, filename string, err error)

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	pdf, filename, err := s.report(r.Context())
	if err != nil {
		s.writeStoreError(w, r, "render report failed", log.OpExport, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(pdf)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}
