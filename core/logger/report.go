package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"google.golang.org/protobuf/encoding/protojson"
)

// ReadJSONLinesLog parses a newline delimited JSON log.
func ReadJSONLinesLog(r io.Reader, handler func(le *LogEntry)) error {
	decoder := json.NewDecoder(r)
	for decoder.More() {
		var rawEntry json.RawMessage
		if err := decoder.Decode(&rawEntry); err != nil {
			return err
		}

		var logEntry LogEntry
		if err := protojson.Unmarshal(rawEntry, &logEntry); err != nil {
			return err
		}

		handler(&logEntry)
	}
	return nil
}

// Report holds statistics about the logged events.
type Report struct {
	LogEntries     int        `json:"log_entries"`
	Sessions       StrCounter `json:"sessions"`
	InvalidEntries StrCounter `json:"unknown_log_entries,omitempty"`

	Jobs            JobReport  `json:"job_report"`
	UnknownCommands StrCounter `json:"unknown_commands"`
	SyntaxErrors    int        `json:"syntax_errors"`
}

// JobReport summarizes background jobs.
type JobReport struct {
	Started   int          `json:"started"`
	Completed int          `json:"completed"`
	Outcomes  *PathCounter `json:"outcomes"`
}

func (r *JobReport) init() {
	if r.Outcomes == nil {
		r.Outcomes = NewPathCounter("how", "value")
	}
}

func (r *JobReport) update(le *LogEntry) {
	r.init()
	r.Completed++

	if signal := intField(le, "signal"); signal != 0 {
		r.Outcomes.Increment("signal", fmt.Sprintf("%d", signal))
		return
	}
	r.Outcomes.Increment("exit", fmt.Sprintf("%d", intField(le, "code")))
}

func (r *Report) Update(le *LogEntry) {
	r.LogEntries++

	switch eventType := stringField(le, FieldType); eventType {
	case EventSessionStart:
		r.Sessions.Increment(stringField(le, FieldSessionID))
	case EventJobStarted:
		r.Jobs.Started++
	case EventJobCompleted:
		r.Jobs.update(le)
	case EventCommandNotFound:
		r.UnknownCommands.Increment(stringField(le, "program"))
	case EventSyntaxError:
		r.SyntaxErrors++
	default:
		r.InvalidEntries.Increment(eventType)
	}
}

func stringField(le *LogEntry, name string) string {
	return le.GetFields()[name].GetStringValue()
}

func intField(le *LogEntry, name string) int {
	return int(le.GetFields()[name].GetNumberValue())
}

// StrCounter counts the number of strings seen.
type StrCounter struct {
	internal map[string]int
}

// Increment adds one to the given key.
func (s *StrCounter) Increment(toAdd string) {
	if s.internal == nil {
		s.internal = make(map[string]int)
	}

	s.internal[toAdd]++
}

// Get returns the count for key.
func (s *StrCounter) Get(key string) int {
	return s.internal[key]
}

// Len returns the number of distinct keys.
func (s *StrCounter) Len() int {
	return len(s.internal)
}

// MarshalJSON implemnts custom JSON marshaler.
func (s StrCounter) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.internal)
}

func NewPathCounter(cols ...string) *PathCounter {
	return &PathCounter{
		cols:     cols,
		internal: make(map[string]int),
	}
}

// PathCounter counts tuples of strings.
type PathCounter struct {
	cols     []string
	internal map[string]int
}

// Increment adds one to the given key.
func (ctr *PathCounter) Increment(toAdd ...string) {
	if len(toAdd) != len(ctr.cols) {
		panic("wrong number of columns to add")
	}

	ctr.internal[toKey(toAdd...)]++
}

// Get returns the count for the given tuple.
func (ctr *PathCounter) Get(vals ...string) int {
	return ctr.internal[toKey(vals...)]
}

// MarshalJSON implemnts custom JSON marshaler.
func (ctr *PathCounter) MarshalJSON() ([]byte, error) {
	type Count struct {
		Count  int               `json:"count"`
		Fields map[string]string `json:"event"`
		Path   string            `json:"-"`
	}

	out := []Count{}
	for k, v := range ctr.internal {
		count := Count{
			Count:  v,
			Path:   k,
			Fields: make(map[string]string),
		}

		splitPath := fromKey(k)
		for colNum, colVal := range ctr.cols {
			count.Fields[colVal] = splitPath[colNum]
		}

		out = append(out, count)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count == out[j].Count {
			return out[i].Path < out[j].Path
		}
		return out[i].Count > out[j].Count
	})

	return json.Marshal(out)
}

func toKey(vals ...string) string {
	key, _ := json.Marshal(vals)
	return string(key)
}

func fromKey(key string) (out []string) {
	json.Unmarshal([]byte(key), &out)
	return
}
