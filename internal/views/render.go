package views

import (
	"errors"
	"html/template"
	"io"
	"io/fs"
	"strconv"
	"time"

	"github.com/speedwagon-io/sensorwatch/internal/model"
	"github.com/speedwagon-io/sensorwatch/internal/state"
)

var dashboardTmpl *template.Template

// loadTemplatesFromFS is split out so tests can feed broken file systems.
func loadTemplatesFromFS(fsys fs.FS, dir string) error {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		return err
	}
	tmpl, err := template.ParseFS(sub, "*.html")
	if err != nil {
		return err
	}
	dashboardTmpl = tmpl
	return nil
}

// LoadTemplates parses the embedded templates. Call once at startup.
func LoadTemplates() error {
	return loadTemplatesFromFS(viewsFS, "templates")
}

type Row struct {
	ID          string
	CreatedAt   string
	DHTTempC    string
	DHTRH       string
	BMETempC    string
	BMERH       string
	PressureHPa string
	Error       string
	Band        model.Band
	Active      bool
}

type PredictionView struct {
	Loading   bool
	Available bool
	Value     string
	Band      model.Band
}

type DashboardData struct {
	Title      string
	Rows       []Row
	Summary    []string
	Prediction PredictionView
	// RefreshSeconds drives the meta refresh; zero disables it.
	RefreshSeconds int
}

func BuildDashboard(snap state.Snapshot, refresh time.Duration) *DashboardData {
	data := &DashboardData{
		Title:          "Real-Time Monitoring & Error Management System",
		Rows:           make([]Row, 0, len(snap.Readings)),
		Summary:        make([]string, 0, len(snap.Summary)),
		RefreshSeconds: int(refresh / time.Second),
	}

	for _, r := range snap.Readings {
		row := Row{
			ID:          r.ID,
			CreatedAt:   formatCreatedAt(r.CreatedAt),
			DHTTempC:    formatNumber(r.DHTTempC),
			DHTRH:       formatNumber(r.DHTRH),
			BMETempC:    formatNumber(r.BMETempC),
			BMERH:       formatNumber(r.BMERH),
			PressureHPa: formatNumber(r.PressureHPa),
			Band:        r.ErrorBand(),
			Active:      snap.SelectedID != "" && r.ID == snap.SelectedID,
		}
		if r.RHErrorPred != nil {
			row.Error = model.FormatError(*r.RHErrorPred)
		}
		data.Rows = append(data.Rows, row)
	}

	for _, e := range snap.Summary {
		data.Summary = append(data.Summary, e.Text())
	}

	data.Prediction.Loading = snap.LoadingPrediction
	if p := snap.Prediction; p != nil && p.Value != nil {
		data.Prediction.Available = true
		data.Prediction.Value = model.FormatError(*p.Value)
		data.Prediction.Band = p.Band()
	}

	return data
}

func RenderDashboard(w io.Writer, data *DashboardData) error {
	if dashboardTmpl == nil {
		return errors.New("dashboard template not loaded: call views.LoadTemplates during startup")
	}
	return dashboardTmpl.ExecuteTemplate(w, "dashboard.html", data)
}

func formatNumber(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatCreatedAt(s string) string {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02 15:04:05")
		}
	}
	return s
}
