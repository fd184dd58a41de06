// Package storage keeps scenario runs on disk: metadata.json, log.csv and
// one YAML file per linear model.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/san-kum/aerotrim/internal/linearize"
	"github.com/san-kum/aerotrim/internal/scenario"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type StageSummary struct {
	Name          string   `json:"name"`
	Entered       float64  `json:"entered"`
	Exited        float64  `json:"exited"`
	TrimConverged *bool    `json:"trim_converged,omitempty"`
	TrimCost      float64  `json:"trim_cost,omitempty"`
	Models        []string `json:"models,omitempty"`
	Error         string   `json:"error,omitempty"`
}

type RunMetadata struct {
	ID        string             `json:"id"`
	Scenario  string             `json:"scenario"`
	Model     string             `json:"model"`
	Timestamp time.Time          `json:"timestamp"`
	Elapsed   float64            `json:"elapsed"`
	Completed bool               `json:"completed"`
	Records   int                `json:"records"`
	Stages    []StageSummary     `json:"stages"`
	Metrics   map[string]float64 `json:"metrics"`
}

// Summarize builds the metadata recorded for a report.
func Summarize(model string, r *scenario.Report) RunMetadata {
	meta := RunMetadata{
		ID:        r.RunID,
		Scenario:  r.Scenario,
		Model:     model,
		Timestamp: time.Now().UTC(),
		Elapsed:   r.Elapsed,
		Completed: r.Completed,
		Records:   r.Log.Len(),
		Metrics:   r.Metrics,
	}
	for _, st := range r.Stages {
		sum := StageSummary{Name: st.Name, Entered: st.Entered, Exited: st.Exited}
		if st.Trim != nil {
			ok := st.Trim.Converged
			sum.TrimConverged = &ok
			sum.TrimCost = st.Trim.Cost
		}
		sum.Models = modelNames(st)
		if st.Err != nil {
			sum.Error = st.Err.Error()
		}
		meta.Stages = append(meta.Stages, sum)
	}
	return meta
}

func modelNames(st *scenario.StageReport) []string {
	names := make([]string, 0, len(st.Models))
	for n := range st.Models {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Save writes a report under its run id and returns the id.
func (s *Store) Save(model string, r *scenario.Report) (string, error) {
	runDir := filepath.Join(s.baseDir, r.RunID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := Summarize(model, r)
	if err := writeFile(filepath.Join(runDir, "metadata.json"), func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(meta)
	}); err != nil {
		return "", err
	}

	if err := writeFile(filepath.Join(runDir, "log.csv"), func(w io.Writer) error {
		return WriteCSV(w, r.Log)
	}); err != nil {
		return "", err
	}

	for _, st := range r.Stages {
		for _, name := range modelNames(st) {
			m := st.Models[name]
			path := filepath.Join(runDir, fmt.Sprintf("%s-%s.yaml", st.Name, name))
			if err := writeFile(path, func(w io.Writer) error {
				return WriteModel(w, m)
			}); err != nil {
				return "", err
			}
		}
	}
	return r.RunID, nil
}

func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteCSV writes a log with a time and stage column ahead of the logged
// properties.
func WriteCSV(w io.Writer, l *scenario.Log) error {
	cw := csv.NewWriter(w)
	header := append([]string{"sim-time-sec", "stage"}, l.Columns...)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range l.Records {
		row := make([]string, 0, len(header))
		row = append(row, strconv.FormatFloat(r.Time, 'f', 6, 64), r.Stage)
		for _, v := range r.Values {
			row = append(row, strconv.FormatFloat(v, 'g', -1, 64))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

type modelFile struct {
	States []string    `yaml:"states"`
	Derivs []string    `yaml:"derivatives"`
	Inputs []string    `yaml:"inputs"`
	A      [][]float64 `yaml:"a,flow"`
	B      [][]float64 `yaml:"b,flow"`
}

func rows(m *mat.Dense) [][]float64 {
	r, _ := m.Dims()
	out := make([][]float64, r)
	for i := range out {
		out[i] = mat.Row(nil, i, m)
	}
	return out
}

func WriteModel(w io.Writer, m *linearize.Model) error {
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(modelFile{
		States: m.States,
		Derivs: m.Derivs,
		Inputs: m.Inputs,
		A:      rows(m.A),
		B:      rows(m.B),
	})
}

func ReadModel(r io.Reader) (*linearize.Model, error) {
	var f modelFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, err
	}
	n, k := len(f.States), len(f.Inputs)
	if n == 0 || k == 0 {
		return nil, fmt.Errorf("model needs states and inputs")
	}
	if len(f.A) != n || len(f.B) != n || len(f.Derivs) != n {
		return nil, fmt.Errorf("model has %d states but %d rows", n, len(f.A))
	}
	m := &linearize.Model{
		A:      mat.NewDense(n, n, nil),
		B:      mat.NewDense(n, k, nil),
		States: f.States,
		Derivs: f.Derivs,
		Inputs: f.Inputs,
	}
	for i := 0; i < n; i++ {
		if len(f.A[i]) != n || len(f.B[i]) != k {
			return nil, fmt.Errorf("row %d has the wrong width", i)
		}
		m.A.SetRow(i, f.A[i])
		m.B.SetRow(i, f.B[i])
	}
	return m, nil
}

// LoadModel reads the model a stage produced for a linearization preset.
func (s *Store) LoadModel(runID, stage, preset string) (*linearize.Model, error) {
	f, err := os.Open(filepath.Join(s.baseDir, runID, fmt.Sprintf("%s-%s.yaml", stage, preset)))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadModel(f)
}

// List returns stored runs, newest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}
	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].Timestamp.After(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		return nil, err
	}
	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// LoadLog reads a stored log back.
func (s *Store) LoadLog(runID string) (*scenario.Log, error) {
	f, err := os.Open(filepath.Join(s.baseDir, runID, "log.csv"))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	l, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", runID, err)
	}
	l.RunID = runID
	return l, nil
}

func ReadCSV(r io.Reader) (*scenario.Log, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 || len(records[0]) < 2 {
		return nil, fmt.Errorf("missing header")
	}
	l := &scenario.Log{Columns: records[0][2:]}
	for i, rec := range records[1:] {
		t, err := strconv.ParseFloat(rec[0], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+2, err)
		}
		row := scenario.Record{Time: t, Stage: rec[1], Values: make([]float64, len(rec)-2)}
		for j, field := range rec[2:] {
			if row.Values[j], err = strconv.ParseFloat(field, 64); err != nil {
				return nil, fmt.Errorf("line %d: %w", i+2, err)
			}
		}
		l.Records = append(l.Records, row)
	}
	return l, nil
}

// ExportJSON writes the metadata and the full log as one JSON document.
func ExportJSON(w io.Writer, model string, r *scenario.Report) error {
	type export struct {
		RunMetadata
		Columns []string    `json:"columns"`
		Times   []float64   `json:"times"`
		Values  [][]float64 `json:"values"`
	}
	out := export{
		RunMetadata: Summarize(model, r),
		Columns:     r.Log.Columns,
		Times:       r.Log.Times(),
		Values:      make([][]float64, len(r.Log.Records)),
	}
	for i, rec := range r.Log.Records {
		out.Values[i] = rec.Values
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
