// Package registry reads the employee roster document. The registry is
// an external collaborator from the core's perspective: the core only
// validates executor names against it and looks up which model tier an
// agent runs on.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"
)

// Employee describes one named agent.
type Employee struct {
	Role      string    `json:"role"`
	Model     string    `json:"model"` // execution profile / model tier
	CreatedAt time.Time `json:"created_at"`
}

// document mirrors the employees.json layout.
type document struct {
	Employees map[string]Employee `json:"employees"`
}

// ErrUnknownEmployee marks a lookup for a name the roster does not have.
var ErrUnknownEmployee = errors.New("unknown employee")

// Registry provides read access to the roster file.
type Registry struct {
	path string
}

// New creates a registry backed by the document at the given path.
func New(path string) *Registry {
	return &Registry{path: path}
}

// load reads the roster. A missing file reads as an empty roster.
func (r *Registry) load() (map[string]Employee, error) {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]Employee{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read employee registry: %w", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse employee registry: %w", err)
	}
	if doc.Employees == nil {
		doc.Employees = map[string]Employee{}
	}
	return doc.Employees, nil
}

// Lookup returns the employee for the given agent name.
func (r *Registry) Lookup(name string) (*Employee, error) {
	emps, err := r.load()
	if err != nil {
		return nil, err
	}
	e, ok := emps[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEmployee, name)
	}
	return &e, nil
}

// List returns all employee names in sorted order.
func (r *Registry) List() ([]string, error) {
	emps, err := r.load()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(emps))
	for name := range emps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// WriteEmpty creates an empty roster document if none exists. Used by
// project scaffolding; the core never writes employees.
func WriteEmpty(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	data, err := json.MarshalIndent(document{Employees: map[string]Employee{}}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
