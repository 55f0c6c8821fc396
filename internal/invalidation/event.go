// Package invalidation describes dataset update notifications and decides
// which of them still need applying.
package invalidation

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Event announces that a published dataset changed upstream. Dataset is the
// source name used by the catalog ("shops-toronto", "parking-york",
// "bikeshare-toronto").
type Event struct {
	Version  int       `json:"version"`
	Op       string    `json:"op"`
	Dataset  string    `json:"dataset"`
	Revision uint64    `json:"revision"`
	TS       time.Time `json:"ts"`
	Source   string    `json:"source,omitempty"`
}

func (e Event) Validate() error {
	if e.Version != 1 {
		return fmt.Errorf("version must be 1")
	}
	switch e.Op {
	case "update", "delete":
	default:
		return fmt.Errorf("op must be update|delete")
	}
	if strings.TrimSpace(e.Dataset) == "" {
		return fmt.Errorf("dataset is required")
	}
	if e.Revision == 0 {
		return fmt.Errorf("revision must be positive")
	}
	if e.TS.IsZero() {
		return fmt.Errorf("ts is required")
	}
	return nil
}

// Dedupe remembers the newest revision applied per dataset.
type Dedupe struct {
	mu  sync.Mutex
	lru *lru.Cache[string, uint64]
}

func NewDedupe(size int) *Dedupe {
	if size <= 0 {
		size = 256
	}
	c, _ := lru.New[string, uint64](size)
	return &Dedupe{lru: c}
}

// ShouldApply reports whether rev is newer than the last revision seen for
// dataset, and records it when it is.
func (d *Dedupe) ShouldApply(dataset string, rev uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if last, ok := d.lru.Get(dataset); ok && rev <= last {
		return false
	}
	d.lru.Add(dataset, rev)
	return true
}

// Forget drops the recorded revision so a retried message is applied again.
func (d *Dedupe) Forget(dataset string, rev uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if last, ok := d.lru.Get(dataset); ok && last == rev {
		d.lru.Remove(dataset)
	}
}

// ErrUnknownDataset is returned by invalidation targets for names they do not
// serve.
var ErrUnknownDataset = errors.New("unknown dataset")
