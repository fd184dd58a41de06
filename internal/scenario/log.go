package scenario

import (
	"github.com/google/uuid"
)

// Record is one logged step.
type Record struct {
	Time   float64
	Stage  string
	Values []float64
}

// Log holds the per-step samples of a run, one value per column.
type Log struct {
	RunID   string
	Columns []string
	Records []Record
}

func NewLog(columns []string) *Log {
	return &Log{
		RunID:   uuid.NewString(),
		Columns: append([]string(nil), columns...),
	}
}

func (l *Log) append(t float64, stage string, sample map[string]float64) {
	values := make([]float64, len(l.Columns))
	for i, c := range l.Columns {
		values[i] = sample[c]
	}
	l.Records = append(l.Records, Record{Time: t, Stage: stage, Values: values})
}

func (l *Log) Len() int { return len(l.Records) }

func (l *Log) Times() []float64 {
	out := make([]float64, len(l.Records))
	for i, r := range l.Records {
		out[i] = r.Time
	}
	return out
}

// Column returns the series logged for name.
func (l *Log) Column(name string) ([]float64, bool) {
	idx := -1
	for i, c := range l.Columns {
		if c == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, false
	}
	out := make([]float64, len(l.Records))
	for i, r := range l.Records {
		out[i] = r.Values[idx]
	}
	return out, true
}

// Last returns the most recent record.
func (l *Log) Last() (Record, bool) {
	if len(l.Records) == 0 {
		return Record{}, false
	}
	return l.Records[len(l.Records)-1], true
}
