package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/san-kum/aerotrim/internal/linearize"
	"github.com/san-kum/aerotrim/internal/scenario"
	"github.com/san-kum/aerotrim/internal/trim"
	"gonum.org/v1/gonum/mat"
)

func testReport() *scenario.Report {
	l := scenario.NewLog([]string{"velocities/u-fps", "attitude/theta-rad"})
	l.Records = []scenario.Record{
		{Time: 0, Stage: "hold", Values: []float64{0, 0}},
		{Time: 0.01, Stage: "roll", Values: []float64{0.125, 1e-7}},
	}
	return &scenario.Report{
		RunID:    l.RunID,
		Scenario: "takeoff",
		Log:      l,
		Metrics:  map[string]float64{"steadiness": 0.5},
		Elapsed:  0.02,
		Stages: []*scenario.StageReport{
			{Name: "hold", Entered: 0, Exited: 0.01},
			{
				Name:    "roll",
				Entered: 0.01,
				Exited:  0.02,
				Trim:    &trim.Result{Converged: true, Cost: 1e-9},
				Models: map[string]*linearize.Model{
					"short-period": {
						A:      mat.NewDense(2, 2, []float64{-2, 1, -1, -1}),
						B:      mat.NewDense(2, 1, []float64{0, 1}),
						States: []string{"ic/alpha-rad", "ic/q-rad_sec"},
						Derivs: []string{"aero/alphadot-rad_sec", "accelerations/qdot-rad_sec2"},
						Inputs: []string{"fcs/elevator-cmd-norm"},
					},
				},
				Err: errors.New("linearize lateral: unknown property"),
			},
		},
	}
}

func TestStoreSaveLoad(t *testing.T) {
	tmpDir := t.TempDir()
	st := New(tmpDir)
	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	r := testReport()
	runID, err := st.Save("c172-linear", r)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if runID != r.RunID {
		t.Errorf("run id = %q, want %q", runID, r.RunID)
	}

	meta, err := st.Load(runID)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if meta.Model != "c172-linear" || meta.Scenario != "takeoff" {
		t.Errorf("meta = %+v", meta)
	}
	if meta.Records != 2 {
		t.Errorf("records = %d", meta.Records)
	}
	if meta.Metrics["steadiness"] != 0.5 {
		t.Errorf("steadiness = %f", meta.Metrics["steadiness"])
	}
	roll := meta.Stages[1]
	if roll.TrimConverged == nil || !*roll.TrimConverged {
		t.Error("trim result should be summarized")
	}
	if len(roll.Models) != 1 || roll.Models[0] != "short-period" {
		t.Errorf("models = %v", roll.Models)
	}
	if !strings.Contains(roll.Error, "lateral") {
		t.Errorf("error = %q", roll.Error)
	}
	if meta.Stages[0].TrimConverged != nil {
		t.Error("stage without trim should omit it")
	}

	l, err := st.LoadLog(runID)
	if err != nil {
		t.Fatalf("load log failed: %v", err)
	}
	if len(l.Records) != 2 || l.Records[1].Stage != "roll" {
		t.Fatalf("records = %+v", l.Records)
	}
	theta, _ := l.Column("attitude/theta-rad")
	if theta[1] != 1e-7 {
		t.Errorf("theta = %g, want exact round trip", theta[1])
	}

	m, err := st.LoadModel(runID, "roll", "short-period")
	if err != nil {
		t.Fatalf("load model failed: %v", err)
	}
	if !mat.Equal(m.A, r.Stages[1].Models["short-period"].A) {
		t.Errorf("A = %v", mat.Formatted(m.A))
	}
	if m.Inputs[0] != "fcs/elevator-cmd-norm" {
		t.Errorf("inputs = %v", m.Inputs)
	}
}

func TestStoreList(t *testing.T) {
	tmpDir := t.TempDir()
	st := New(tmpDir)

	runs, err := st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("expected 0 runs, got %d", len(runs))
	}

	if err := st.Init(); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if _, err := st.Save("c172-linear", testReport()); err != nil {
			t.Fatalf("save failed: %v", err)
		}
	}
	if err := os.Mkdir(filepath.Join(tmpDir, "not-a-run"), 0755); err != nil {
		t.Fatal(err)
	}

	runs, err = st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 2 {
		t.Errorf("expected 2 runs, got %d", len(runs))
	}
}

func TestStoreFileStructure(t *testing.T) {
	tmpDir := t.TempDir()
	st := New(tmpDir)
	if err := st.Init(); err != nil {
		t.Fatal(err)
	}
	runID, err := st.Save("c172-linear", testReport())
	if err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"metadata.json", "log.csv", "roll-short-period.yaml"} {
		if _, err := os.Stat(filepath.Join(tmpDir, runID, name)); err != nil {
			t.Errorf("%s not created: %v", name, err)
		}
	}

	data, err := os.ReadFile(filepath.Join(tmpDir, runID, "log.csv"))
	if err != nil {
		t.Fatal(err)
	}
	header := strings.SplitN(string(data), "\n", 2)[0]
	if header != "sim-time-sec,stage,velocities/u-fps,attitude/theta-rad" {
		t.Errorf("header = %q", header)
	}
}

func TestReadModelRejectsRaggedRows(t *testing.T) {
	doc := "states: [a, b]\nderivatives: [ad, bd]\ninputs: [u]\na: [[1, 2], [3]]\nb: [[0], [1]]\n"
	if _, err := ReadModel(strings.NewReader(doc)); err == nil {
		t.Error("expected error for ragged A")
	}
}

func TestExportJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := ExportJSON(&buf, "c172-linear", testReport()); err != nil {
		t.Fatal(err)
	}
	var out struct {
		Scenario string      `json:"scenario"`
		Columns  []string    `json:"columns"`
		Times    []float64   `json:"times"`
		Values   [][]float64 `json:"values"`
	}
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if out.Scenario != "takeoff" || len(out.Columns) != 2 || len(out.Times) != 2 || out.Values[1][0] != 0.125 {
		t.Errorf("export = %+v", out)
	}
}
