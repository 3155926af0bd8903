// Package casefile is the persisted case representation: a YAML document of
// device records, timed events, and run parameters. Records are opaque
// key-value maps per device instance; all validation is deferred to system
// setup.
package casefile

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/KhaledAleikish/andes/pkg/analysis"
	"github.com/KhaledAleikish/andes/pkg/system"
)

type DeviceRecord struct {
	Model  string         `yaml:"model"`
	Idx    string         `yaml:"idx,omitempty"`
	Params map[string]any `yaml:"params,omitempty"`
}

type EventRecord struct {
	Time  float64 `yaml:"time"`
	Model string  `yaml:"model"`
	Idx   string  `yaml:"idx"`
	Field string  `yaml:"field"`
	Value float64 `yaml:"value"`
}

type TranSpec struct {
	TStop float64 `yaml:"tstop"`
	TStep float64 `yaml:"tstep"`
}

type Case struct {
	Name    string         `yaml:"name"`
	Devices []DeviceRecord `yaml:"devices"`
	Events  []EventRecord  `yaml:"events,omitempty"`
	Tran    TranSpec       `yaml:"tran,omitempty"`
}

func Parse(data []byte) (*Case, error) {
	c := &Case{}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parsing case: %v", err)
	}
	return c, nil
}

func Load(path string) (*Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading case file: %v", err)
	}
	return Parse(data)
}

func (c *Case) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling case: %v", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Add appends one device record. Validation happens at system setup, so case
// preparation scripts can enter records freely.
func (c *Case) Add(model, idx string, params map[string]any) {
	c.Devices = append(c.Devices, DeviceRecord{Model: model, Idx: idx, Params: params})
}

// Build instantiates every device record into a fresh system. The system is
// returned un-setup so the caller controls when validation runs.
func (c *Case) Build() (*system.System, error) {
	sys := system.New()
	for i, rec := range c.Devices {
		if err := sys.Add(rec.Model, rec.Idx, rec.Params); err != nil {
			return nil, fmt.Errorf("device record %d: %v", i, err)
		}
	}
	return sys, nil
}

// EventList converts the event records for the transient driver.
func (c *Case) EventList() []analysis.Event {
	out := make([]analysis.Event, 0, len(c.Events))
	for _, ev := range c.Events {
		out = append(out, analysis.Event{
			Time: ev.Time, Model: ev.Model, Idx: ev.Idx,
			Field: ev.Field, Value: ev.Value,
		})
	}
	return out
}
