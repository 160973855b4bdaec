package http

import (
	"net/http"

	"ledger/internal/core"
	"ledger/internal/log"
)

type (
	listResponse struct {
		Version      uint64             `json:"version"`
		Filter       string             `json:"filter"`
		Transactions []core.Transaction `json:"transactions"`
	}

	idResponse struct {
		ID string `json:"id"`
	}

	rangeResponse struct {
		Start  string `json:"start,omitempty"`
		End    string `json:"end,omitempty"`
		Shared bool   `json:"shared,omitempty"`
	}

	categoryInfo struct {
		Name  core.Category `json:"name"`
		Color string        `json:"color"`
		Icon  string        `json:"icon"`
	}
)

// Presentation metadata in category display order.
var (
	categoryColors = []string{"#8884d8", "#82ca9d", "#ffc658", "#ff8042", "#8dd1e1", "#a4de6c", "#d0ed57", "#ffc0cb", "#ffbb28", "#00C49F"}
	categoryIcons  = []string{"Fastfood", "LocalTaxi", "CurrencyRupee", "CardGiftcard", "VolunteerActivism", "Movie", "ShoppingCart", "Receipt", "LocalHospital", "Category"}
)

func (s *Server) handleViews(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(s.ledger.Views()).Write(w)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	state, err := ParseListFilter(r.URL.Query(), s.loc)
	if err != nil {
		ErrorResponse(err).Write(w)
		return
	}
	filter := state.Filter()
	version := s.ledger.ListVersion()
	records := s.pages.Lookup(version, filter.Key(), func() []core.Transaction {
		records, _ := s.ledger.Transactions(state)
		return records
	})
	if records == nil {
		records = []core.Transaction{}
	}
	NewJSONResponse().Body(listResponse{Version: version, Filter: filter.Key(), Transactions: records}).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		BadRequestError("malformed request body").Write(w)
		return
	}
	session := s.ledger.NewTransaction()
	defer session.Cancel()
	if err := applySessionFields(p, session); err != nil {
		ErrorResponse(err).Write(w)
		return
	}
	id, err := session.Commit(r.Context())
	if err != nil {
		s.writeStoreError(w, r, "create transaction failed", log.OpCreate, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "transaction created",
		log.FieldOperation, log.OpCreate,
		log.FieldTxID, id)
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/transactions/"+id).
		Body(idResponse{ID: id}).
		Write(w)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	t, err := s.ledger.Transaction(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeStoreError(w, r, "read transaction failed", log.OpRead, err)
		return
	}
	NewJSONResponse().Body(t).Write(w)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		BadRequestError("malformed request body").Write(w)
		return
	}
	if p.Empty() {
		BadRequestError("request body has no fields").Write(w)
		return
	}
	session, err := s.ledger.EditTransaction(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, r, "load transaction failed", log.OpRead, err)
		return
	}
	defer session.Cancel()
	if err := applySessionFields(p, session); err != nil {
		ErrorResponse(err).Write(w)
		return
	}
	if _, err := session.Commit(r.Context()); err != nil {
		s.writeStoreError(w, r, "update transaction failed", log.OpUpdate, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "transaction updated",
		log.FieldOperation, log.OpUpdate,
		log.FieldTxID, id)
	NewJSONResponse().Body(idResponse{ID: id}).Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.DeleteTransaction(r.Context(), r.PathValue("id")); err != nil {
		s.writeStoreError(w, r, "delete transaction failed", log.OpDelete, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleGetChartRange(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(s.rangeOf(s.ledger.ChartRange())).Write(w)
}

func (s *Server) handleSetChartRange(w http.ResponseWriter, r *http.Request) {
	scope, err := ParseScope(w, r, s.loc)
	if err != nil {
		ErrorResponse(err).Write(w)
		return
	}
	if scope == nil {
		scope = &core.Scope{}
	}
	if err := s.ledger.SetChartRange(r.Context(), *scope); err != nil {
		s.writeStoreError(w, r, "set chart range failed", log.OpSubscribe, err)
		return
	}
	NewJSONResponse().Body(s.rangeOf(*scope)).Write(w)
}

func (s *Server) handleGetListRange(w http.ResponseWriter, r *http.Request) {
	scope := s.ledger.ListRange()
	if scope == nil {
		NewJSONResponse().Body(rangeResponse{Shared: true}).Write(w)
		return
	}
	NewJSONResponse().Body(s.rangeOf(*scope)).Write(w)
}

func (s *Server) handleSetListRange(w http.ResponseWriter, r *http.Request) {
	scope, err := ParseScope(w, r, s.loc)
	if err != nil {
		ErrorResponse(err).Write(w)
		return
	}
	if err := s.ledger.SetListRange(r.Context(), scope); err != nil {
		s.writeStoreError(w, r, "set list range failed", log.OpSubscribe, err)
		return
	}
	if scope == nil {
		NewJSONResponse().Body(rangeResponse{Shared: true}).Write(w)
		return
	}
	NewJSONResponse().Body(s.rangeOf(*scope)).Write(w)
}

func (s *Server) handleClearListRange(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.SetListRange(r.Context(), nil); err != nil {
		s.writeStoreError(w, r, "clear list range failed", log.OpSubscribe, err)
		return
	}
	NewJSONResponse().Body(rangeResponse{Shared: true}).Write(w)
}

func handleCategories(w http.ResponseWriter, r *http.Request) {
	cats := core.Categories()
	out := make([]categoryInfo, len(cats))
	for i, c := range cats {
		out[i] = categoryInfo{Name: c, Color: categoryColors[i%len(categoryColors)], Icon: categoryIcons[i%len(categoryIcons)]}
	}
	NewJSONResponse().Header("Cache-Control", "public, max-age=3600").Body(out).Write(w)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.ledger.Profile(r.Context())
	if err != nil {
		s.writeStoreError(w, r, "load profile failed", log.OpRead, err)
		return
	}
	NewJSONResponse().Body(p).Write(w)
}

// writeStoreError logs failures that are not the caller's fault and writes
// the mapped error response.
func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, msg, op string, err error) {
	if status := StatusFor(err); status >= http.StatusInternalServerError {
		log.NewStructuredLogger(log.FromContext(r.Context())).LogError(r.Context(), msg, err, log.ComponentHTTP, op, nil)
	}
	ErrorResponse(err).Write(w)
}

func (s *Server) rangeOf(scope core.Scope) rangeResponse {
	var out rangeResponse
	if !scope.Start.IsZero() {
		out.Start = scope.Start.In(s.loc).Format(dateLayout)
	}
	if !scope.End.IsZero() {
		out.End = scope.End.In(s.loc).Format(dateLayout)
	}
	return out
}
