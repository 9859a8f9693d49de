// Package dashboard serves the single-page financial dashboard. Every
// request reloads the data file and recomputes the KPIs; nothing is kept
// between requests.
package dashboard

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"

	"github.com/KaramelBytes/aicfo/internal/advisor"
	"github.com/KaramelBytes/aicfo/internal/analysis"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Title is the page heading.
const Title = "AI CFO – Cashflow & Decisions"

//go:embed templates/*.html.tmpl
var templateFS embed.FS

// Recommender produces a recommendation for one table snapshot.
type Recommender interface {
	Recommend(ctx context.Context, t *analysis.Table, k analysis.KPIs) *advisor.Recommendation
}

type Server struct {
	dataFile string
	advisor  Recommender
	log      logrus.FieldLogger
	page     *template.Template
}

// New parses the page template and returns a Server reading dataFile.
func New(dataFile string, rec Recommender, log logrus.FieldLogger) (*Server, error) {
	page, err := template.ParseFS(templateFS, "templates/page.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse page template: %w", err)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{dataFile: dataFile, advisor: rec, log: log, page: page}, nil
}

// Router wires the page, trigger, and JSON routes.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(requestLogger(s.log))
	r.HandleFunc("/", s.handlePage).Methods(http.MethodGet)
	r.HandleFunc("/recommend", s.handleRecommend).Methods(http.MethodPost)
	r.HandleFunc("/api/kpis", s.handleKPIs).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	return r
}

type kpiView struct {
	AvgProfit    string `json:"avg_profit"`
	StartingCash string `json:"starting_cash"`
	Runway       string `json:"runway"`
}

type resultView struct {
	ID        string
	Outcome   advisor.Outcome
	Narrative template.HTML
	Error     string
	Fallback  template.HTML
}

type pageView struct {
	Title     string
	DataFile  string
	LoadError string
	Table     *analysis.Table
	KPIError  string
	KPIs      kpiView
	Result    *resultView
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, false)
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, true)
}

// render runs the page top to bottom: load, KPIs, then the recommendation
// when triggered. A load or KPI failure stops everything after it.
func (s *Server) render(w http.ResponseWriter, r *http.Request, trigger bool) {
	view := pageView{Title: Title, DataFile: s.dataFile}

	tbl, err := analysis.LoadTable(s.dataFile)
	if err != nil {
		s.log.WithError(err).WithField("data_file", s.dataFile).Error("load data file")
		view.LoadError = err.Error()
		s.writePage(w, http.StatusInternalServerError, view)
		return
	}
	view.Table = tbl

	k, err := analysis.ComputeKPIs(tbl)
	if err != nil {
		s.log.WithError(err).Warn("compute kpis")
		view.KPIError = err.Error()
		s.writePage(w, http.StatusUnprocessableEntity, view)
		return
	}
	view.KPIs = kpiView{AvgProfit: k.AvgProfitText(), StartingCash: k.StartingCashText(), Runway: k.RunwayText()}

	if trigger {
		res, err := s.resultView(s.advisor.Recommend(r.Context(), tbl, k))
		if err != nil {
			http.Error(w, fmt.Sprintf("render recommendation: %v", err), http.StatusInternalServerError)
			return
		}
		view.Result = res
	}
	s.writePage(w, http.StatusOK, view)
}

func (s *Server) resultView(rec *advisor.Recommendation) (*resultView, error) {
	res := &resultView{ID: rec.ID, Outcome: rec.Outcome, Error: rec.ErrorText()}
	var err error
	switch rec.Outcome {
	case advisor.OutcomeSuccess:
		res.Narrative, err = renderMarkdown(rec.Narrative)
	case advisor.OutcomeFallback:
		res.Fallback, err = renderMarkdown(rec.Fallback)
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Server) writePage(w http.ResponseWriter, status int, view pageView) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.page.Execute(w, view); err != nil {
		s.log.WithError(err).Error("execute page template")
	}
}

type kpiResponse struct {
	Periods          int       `json:"periods"`
	Profits          []float64 `json:"profits"`
	AvgProfit        float64   `json:"avg_profit"`
	StartingCash     float64   `json:"starting_cash"`
	Runway           *float64  `json:"runway"`
	RunwayApplicable bool      `json:"runway_applicable"`
	Formatted        kpiView   `json:"formatted"`
}

func (s *Server) handleKPIs(w http.ResponseWriter, r *http.Request) {
	tbl, err := analysis.LoadTable(s.dataFile)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	k, err := analysis.ComputeKPIs(tbl)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		return
	}
	out := kpiResponse{
		Periods:          k.Periods,
		Profits:          k.Profits,
		AvgProfit:        k.AvgProfit,
		StartingCash:     k.StartingCash,
		RunwayApplicable: k.RunwayApplicable,
		Formatted:        kpiView{AvgProfit: k.AvgProfitText(), StartingCash: k.StartingCashText(), Runway: k.RunwayText()},
	}
	if k.RunwayApplicable {
		rw := k.Runway
		out.Runway = &rw
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
