// Package input loads the search task list that drives a run.
package input

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dvergara/leadtap/internal/model"
)

// Store reads SearchTasks from a YAML file:
//
//	- country: US
//	  region: Tampa, FL
//	  category: Legal Services
//
// Row order is preserved; it is the resume order.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// ReadAll returns the ordered task list. Rows with every field blank are
// skipped; rows missing a required field are an error, so a typo in the
// input file surfaces before the browser launches.
func (s *Store) ReadAll() ([]model.SearchTask, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("reading tasks file: %w", err)
	}

	var rows []model.SearchTask
	if err := yaml.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("parsing tasks file: %w", err)
	}

	tasks := make([]model.SearchTask, 0, len(rows))
	for i, row := range rows {
		row.Country = strings.TrimSpace(row.Country)
		row.Region = strings.TrimSpace(row.Region)
		row.Category = strings.TrimSpace(row.Category)

		if row.Country == "" && row.Region == "" && row.Category == "" {
			continue
		}
		if row.Country == "" || row.Region == "" || row.Category == "" {
			return nil, fmt.Errorf("task %d: country, region and category are all required", i+1)
		}
		row.Status = model.StatusPending
		tasks = append(tasks, row)
	}
	return tasks, nil
}
