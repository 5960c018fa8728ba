// ABOUTME: HTTP debug handler for browsing live measurements
// ABOUTME: Registers named roots and serves scan reports

// Package sizeui provides an HTTP handler for interactive memory
// measurement: long-lived values are registered under names, scans are
// triggered from the browser, and each successful scan is browsable as
// a report with per-type statistics. Mount it on a debug mux:
//
//	var h sizeui.Handler
//	h.Add("cache", cache)
//	mux.Handle("/memsize/", http.StripPrefix("/memsize", &h))
package sizeui

import (
	"net/http"
	"reflect"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/prateek/deepsize"
	"github.com/prateek/deepsize/snapshot"
)

// Handler serves the measurement UI. The zero value is ready to use.
type Handler struct {
	init    sync.Once
	router  *httprouter.Router
	mu      sync.Mutex
	roots   map[string]any
	reports map[int]*Report
	nextID  int
}

// Report is the outcome of one scan.
type Report struct {
	ID         int
	RootName   string
	Date       time.Time
	Duration   time.Duration
	Total      uint64
	Objects    int
	Interfered bool
	Types      []snapshot.TypeStat
}

// Add registers a root for scanning. The value must be a non-nil
// pointer so the UI always measures the live object rather than a copy.
func (h *Handler) Add(name string, v any) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		panic("sizeui: root must be a non-nil pointer")
	}
	h.mu.Lock()
	if h.roots == nil {
		h.roots = make(map[string]any)
	}
	h.roots[name] = v
	h.mu.Unlock()
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.init.Do(func() {
		h.reports = make(map[int]*Report)
		h.router = httprouter.New()
		h.router.GET("/", h.handleIndex)
		h.router.POST("/scan/:root", h.handleScan)
		h.router.GET("/report/:id", h.handleReport)
	})
	h.router.ServeHTTP(w, r)
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	serveHTML(w, indexTemplate, http.StatusOK, h.pageInfo(nil))
}

func (h *Handler) handleScan(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	name := p.ByName("root")
	report, ok := h.scan(name)
	if !ok {
		serveHTML(w, notFoundTemplate, http.StatusNotFound, h.pageInfo("no such root: "+name))
		return
	}
	w.Header().Set("Location", "../report/"+strconv.Itoa(report.ID))
	w.WriteHeader(http.StatusSeeOther)
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	id, err := strconv.Atoi(p.ByName("id"))
	h.mu.Lock()
	report := h.reports[id]
	h.mu.Unlock()
	if err != nil || report == nil {
		serveHTML(w, notFoundTemplate, http.StatusNotFound, h.pageInfo("report not found"))
		return
	}
	serveHTML(w, reportTemplate, http.StatusOK, h.pageInfo(report))
}

// scan measures the named root and files a report. A measurement that
// was interfered with by the collector still produces a report, marked
// as such, so the outcome is visible in the UI.
func (h *Handler) scan(name string) (*Report, bool) {
	h.mu.Lock()
	val, ok := h.roots[name]
	h.mu.Unlock()
	if !ok {
		return nil, false
	}

	snap := snapshot.New()
	start := time.Now()
	total, err := deepsize.MeasureInto(val, snap)
	report := &Report{
		RootName: name,
		Date:     start.Truncate(time.Second),
		Duration: time.Since(start),
	}
	if err != nil {
		report.Interfered = true
	} else {
		report.Total = total
		report.Objects = snap.NumObjects()
		report.Types = snapshot.TypeStats(snap)
	}

	h.mu.Lock()
	report.ID = h.nextID
	h.nextID++
	h.reports[report.ID] = report
	h.mu.Unlock()
	return report, true
}

// pageInfo assembles the state every template renders: the sorted root
// names, the filed reports, and page-specific data.
func (h *Handler) pageInfo(data any) *pageData {
	h.mu.Lock()
	roots := make([]string, 0, len(h.roots))
	for name := range h.roots {
		roots = append(roots, name)
	}
	reports := make([]*Report, 0, len(h.reports))
	for _, rep := range h.reports {
		reports = append(reports, rep)
	}
	h.mu.Unlock()

	sort.Strings(roots)
	sort.Slice(reports, func(i, j int) bool { return reports[i].ID < reports[j].ID })
	return &pageData{Roots: roots, Reports: reports, Data: data}
}

type pageData struct {
	Roots   []string
	Reports []*Report
	Data    any
}
